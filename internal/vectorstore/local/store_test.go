package local

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/khanglvm/graphrag-agent/internal/domain"
	"github.com/khanglvm/graphrag-agent/internal/search"
	"github.com/khanglvm/graphrag-agent/internal/storage"
)

// axisEmbedder maps each keyword to one axis of a 3-d space.
type axisEmbedder struct {
	calls int
	err   error
}

func (e *axisEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 3)
		lower := strings.ToLower(t)
		if strings.Contains(lower, "acme") {
			v[0] = 1
		}
		if strings.Contains(lower, "rocket") {
			v[1] = 1
		}
		if strings.Contains(lower, "paris") {
			v[2] = 1
		}
		out[i] = v
	}
	return out, nil
}

func newStore(t *testing.T, emb domain.Embedder) *Store {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, emb, "test-model")
}

func TestSearchOrdersByDistance(t *testing.T) {
	s := newStore(t, &axisEmbedder{})
	ctx := context.Background()

	err := s.AddDocuments(ctx, []domain.Document{
		{ID: "a", Text: "Acme", Metadata: map[string]any{"entity_id": "a"}},
		{ID: "b", Text: "Acme rocket", Metadata: map[string]any{"entity_id": "b"}},
		{ID: "c", Text: "Paris", Metadata: map[string]any{"entity_id": "c"}},
	})
	if err != nil {
		t.Fatalf("AddDocuments failed: %v", err)
	}

	hits, err := s.Search(ctx, "acme", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if hits[0].Text != "Acme" || hits[1].Text != "Acme rocket" || hits[2].Text != "Paris" {
		t.Errorf("unexpected order: %q %q %q", hits[0].Text, hits[1].Text, hits[2].Text)
	}
	if math.Abs(hits[0].Raw) > 1e-9 {
		t.Errorf("identical vectors should have distance 0, got %f", hits[0].Raw)
	}
	if math.Abs(hits[2].Raw-1) > 1e-9 {
		t.Errorf("orthogonal vectors should have distance 1, got %f", hits[2].Raw)
	}

	ranked, _ := search.NewSemanticSearcher(s).SimilaritySearch(ctx, "acme", 5, 0.7)
	if len(ranked) != 2 {
		t.Errorf("threshold 0.7 should keep 2 hits, got %d", len(ranked))
	}
}

func TestStatsReportsDimension(t *testing.T) {
	s := newStore(t, &axisEmbedder{})
	ctx := context.Background()

	stats, _ := s.Stats(ctx)
	if stats.Count != 0 {
		t.Errorf("expected empty store, got %+v", stats)
	}

	s.AddDocuments(ctx, []domain.Document{{ID: "a", Text: "Acme"}})
	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Count != 1 || stats.Dimension != 3 || stats.Backend != "local" {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestEmbedFailure(t *testing.T) {
	emb := &axisEmbedder{err: errors.New("quota exceeded")}
	s := newStore(t, emb)

	if _, err := s.Search(context.Background(), "acme", 5); err == nil {
		t.Error("expected search error")
	}
	if err := s.AddDocuments(context.Background(), []domain.Document{{ID: "a", Text: "x"}}); err == nil {
		t.Error("expected add error")
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Errorf("same direction = %f", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{-1, 0}); math.Abs(got+1) > 1e-9 {
		t.Errorf("opposite direction = %f", got)
	}
	if got := cosineSimilarity([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Errorf("zero vector = %f", got)
	}
	if got := cosineSimilarity([]float32{1}, []float32{1, 0}); got != 0 {
		t.Errorf("length mismatch = %f", got)
	}
}
