package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/khanglvm/graphrag-agent/internal/domain"
)

type fakeVectors struct {
	hits []domain.RetrievalHit
	err  error
}

func (f *fakeVectors) SimilaritySearch(ctx context.Context, query string, topK int, threshold float64) ([]domain.RetrievalHit, error) {
	return f.hits, f.err
}

type fakeGraph struct {
	rows   []map[string]any
	err    error
	calls  int
	params map[string]any
}

func (g *fakeGraph) Query(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	g.calls++
	g.params = params
	return g.rows, g.err
}

func (g *fakeGraph) Schema(ctx context.Context) (string, error) { return "", nil }

func hit(text string, entity any) domain.RetrievalHit {
	meta := map[string]any{}
	if entity != nil {
		meta["entity_id"] = entity
	}
	return domain.RetrievalHit{Text: text, Score: 0.9, Metadata: meta}
}

func TestFuseEmptySemanticSkipsGraph(t *testing.T) {
	graph := &fakeGraph{}
	fuser := NewFuser(&fakeVectors{}, graph, 0.7)

	result, err := fuser.Fuse(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Fuse failed: %v", err)
	}
	if graph.calls != 0 {
		t.Errorf("graph queried %d times with no entities", graph.calls)
	}
	if len(result.GraphEdges) != 0 {
		t.Errorf("expected no edges, got %d", len(result.GraphEdges))
	}
}

func TestFuseHitsWithoutEntitiesSkipGraph(t *testing.T) {
	graph := &fakeGraph{}
	fuser := NewFuser(&fakeVectors{hits: []domain.RetrievalHit{hit("a", nil)}}, graph, 0)

	result, err := fuser.Fuse(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("Fuse failed: %v", err)
	}
	if graph.calls != 0 {
		t.Error("graph should not be queried when hits carry no entity ids")
	}
	if len(result.SemanticHits) != 1 {
		t.Errorf("expected semantic hit to be kept, got %d", len(result.SemanticHits))
	}
}

func TestFuseDeduplicatesEntitiesInOrder(t *testing.T) {
	vectors := &fakeVectors{hits: []domain.RetrievalHit{
		hit("a", "7"), hit("b", int64(3)), hit("c", "7"), hit("d", nil), hit("e", float64(3)), hit("f", "9"),
	}}
	graph := &fakeGraph{rows: []map[string]any{
		{"entity": "Alice", "relation": "KNOWS", "related": "Bob"},
	}}

	result, err := NewFuser(vectors, graph, 0).Fuse(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("Fuse failed: %v", err)
	}

	want := []string{"7", "3", "9"}
	if fmt.Sprint(result.EntityIDs) != fmt.Sprint(want) {
		t.Errorf("EntityIDs = %v, want %v", result.EntityIDs, want)
	}
	if fmt.Sprint(graph.params["ids"]) != fmt.Sprint(want) {
		t.Errorf("graph ids param = %v, want %v", graph.params["ids"], want)
	}
	if graph.params["limit"] != int64(DefaultEdgeCap) {
		t.Errorf("limit param = %v, want %d", graph.params["limit"], DefaultEdgeCap)
	}
	if len(result.GraphEdges) != 1 || result.GraphEdges[0] != (domain.GraphEdge{Source: "Alice", Relation: "KNOWS", Target: "Bob"}) {
		t.Errorf("unexpected edges: %+v", result.GraphEdges)
	}
}

func TestFuseCapsEdges(t *testing.T) {
	rows := make([]map[string]any, 25)
	for i := range rows {
		rows[i] = map[string]any{"entity": "a", "relation": "R", "related": i}
	}
	graph := &fakeGraph{rows: rows}
	vectors := &fakeVectors{hits: []domain.RetrievalHit{hit("a", "1")}}

	result, err := NewFuser(vectors, graph, 0).Fuse(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("Fuse failed: %v", err)
	}
	if len(result.GraphEdges) != DefaultEdgeCap {
		t.Errorf("expected %d edges, got %d", DefaultEdgeCap, len(result.GraphEdges))
	}
	if result.GraphEdges[3].Target != "3" {
		t.Errorf("non-string target not rendered: %+v", result.GraphEdges[3])
	}
}

func TestFuseGraphFailureKeepsSemanticHits(t *testing.T) {
	vectors := &fakeVectors{hits: []domain.RetrievalHit{hit("a", "1"), hit("b", "2")}}
	graph := &fakeGraph{err: errors.New("neo4j unavailable")}

	result, err := NewFuser(vectors, graph, 0).Fuse(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("graph failure must not fail Fuse: %v", err)
	}
	if !result.Degraded() {
		t.Error("expected degraded result")
	}
	if len(result.SemanticHits) != 2 {
		t.Errorf("expected semantic hits preserved, got %d", len(result.SemanticHits))
	}
	if len(result.GraphEdges) != 0 {
		t.Errorf("expected no edges, got %d", len(result.GraphEdges))
	}
}

func TestFuseSemanticFailurePropagates(t *testing.T) {
	graph := &fakeGraph{}
	vectors := &fakeVectors{err: errors.New("qdrant down")}

	if _, err := NewFuser(vectors, graph, 0).Fuse(context.Background(), "q", 5); err == nil {
		t.Error("expected semantic failure to propagate")
	}
	if graph.calls != 0 {
		t.Error("graph should not be queried after semantic failure")
	}
}

func TestFuseNilGraph(t *testing.T) {
	vectors := &fakeVectors{hits: []domain.RetrievalHit{hit("a", "1")}}
	result, err := NewFuser(vectors, nil, 0).Fuse(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("Fuse failed: %v", err)
	}
	if len(result.GraphEdges) != 0 || result.Degraded() {
		t.Errorf("unexpected result with nil graph: %+v", result)
	}
}
