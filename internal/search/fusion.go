package search

import (
	"context"
	"fmt"

	"github.com/khanglvm/graphrag-agent/internal/domain"
)

// DefaultEdgeCap bounds the graph neighborhood fetched per query.
const DefaultEdgeCap = 10

// NeighborhoodQuery fetches relationships incident to a set of entities.
// Entity ids may be element ids or legacy integer ids rendered as strings.
const NeighborhoodQuery = `MATCH (n)-[r]-(m)
WHERE elementId(n) IN $ids OR toString(id(n)) IN $ids
RETURN coalesce(n.name, toString(id(n))) AS entity,
       type(r) AS relation,
       coalesce(m.name, toString(id(m))) AS related
LIMIT $limit`

// FusedResult holds semantic hits and graph edges side by side.
// The two lists are on different scales and are never merged into one score.
type FusedResult struct {
	SemanticHits []domain.RetrievalHit
	GraphEdges   []domain.GraphEdge

	// EntityIDs are the distinct entities that seeded graph expansion.
	EntityIDs []string

	// GraphErr is set when expansion failed after a successful semantic step.
	GraphErr error
}

// Degraded reports whether graph expansion failed.
func (r FusedResult) Degraded() bool {
	return r.GraphErr != nil
}

// Fuser runs hybrid retrieval over a vector store and a graph store.
type Fuser struct {
	vectors   domain.VectorStore
	graph     domain.GraphStore
	threshold float64
	edgeCap   int
}

// NewFuser creates a Fuser. A nil graph disables expansion.
func NewFuser(vectors domain.VectorStore, graph domain.GraphStore, threshold float64) *Fuser {
	return &Fuser{
		vectors:   vectors,
		graph:     graph,
		threshold: threshold,
		edgeCap:   DefaultEdgeCap,
	}
}

// WithEdgeCap overrides the neighborhood cap.
func (f *Fuser) WithEdgeCap(n int) *Fuser {
	if n > 0 {
		f.edgeCap = n
	}
	return f
}

// Fuse runs semantic search, then expands the hits' entities in the graph.
func (f *Fuser) Fuse(ctx context.Context, query string, topK int) (FusedResult, error) {
	hits, err := f.vectors.SimilaritySearch(ctx, query, topK, f.threshold)
	if err != nil {
		return FusedResult{}, err
	}

	result := FusedResult{
		SemanticHits: hits,
		GraphEdges:   []domain.GraphEdge{},
		EntityIDs:    collectEntityIDs(hits),
	}

	if len(result.EntityIDs) == 0 || f.graph == nil {
		return result, nil
	}

	edges, err := f.expand(ctx, result.EntityIDs)
	if err != nil {
		result.GraphErr = err
		return result, nil
	}
	result.GraphEdges = edges
	return result, nil
}

func (f *Fuser) expand(ctx context.Context, ids []string) ([]domain.GraphEdge, error) {
	rows, err := f.graph.Query(ctx, NeighborhoodQuery, map[string]any{
		"ids":   ids,
		"limit": int64(f.edgeCap),
	})
	if err != nil {
		return nil, fmt.Errorf("graph expansion failed: %w", err)
	}

	edges := make([]domain.GraphEdge, 0, len(rows))
	for _, row := range rows {
		if len(edges) == f.edgeCap {
			break
		}
		edges = append(edges, domain.GraphEdge{
			Source:   field(row, "entity"),
			Relation: field(row, "relation"),
			Target:   field(row, "related"),
		})
	}
	return edges, nil
}

// collectEntityIDs returns distinct entity ids in first-seen order.
func collectEntityIDs(hits []domain.RetrievalHit) []string {
	seen := make(map[string]struct{}, len(hits))
	ids := make([]string, 0, len(hits))
	for _, hit := range hits {
		id, ok := hit.EntityID()
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func field(row map[string]any, key string) string {
	v, ok := row[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
