package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/khanglvm/graphrag-agent/internal/domain"
)

// DefaultTopK is used when a caller passes a non-positive topK.
const DefaultTopK = 5

// ScoredHit is a backend result before normalization.
type ScoredHit struct {
	Text     string
	Raw      float64
	Metadata map[string]any
}

// Backend is a vector or keyword index reporting native scores.
// Results must come back in the backend's own best-first order.
type Backend interface {
	Search(ctx context.Context, query string, limit int) ([]ScoredHit, error)
	Metric() Metric
}

// SemanticSearcher adapts a Backend to domain.VectorStore.
type SemanticSearcher struct {
	backend Backend
}

// NewSemanticSearcher wraps backend.
func NewSemanticSearcher(backend Backend) *SemanticSearcher {
	return &SemanticSearcher{backend: backend}
}

// Backend returns the wrapped backend.
func (s *SemanticSearcher) Backend() Backend {
	return s.backend
}

// SimilaritySearch implements domain.VectorStore.
func (s *SemanticSearcher) SimilaritySearch(ctx context.Context, query string, topK int, threshold float64) ([]domain.RetrievalHit, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	raw, err := s.backend.Search(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	return Rank(raw, s.backend.Metric(), threshold, topK)
}

// Rank normalizes raw hits, drops those below threshold and returns at most
// topK, highest score first. Equal scores keep backend order.
func Rank(raw []ScoredHit, metric Metric, threshold float64, topK int) ([]domain.RetrievalHit, error) {
	hits := make([]domain.RetrievalHit, 0, len(raw))
	for _, r := range raw {
		score, err := Normalize(metric, r.Raw)
		if err != nil {
			return nil, err
		}
		if score < threshold {
			continue
		}
		hits = append(hits, domain.RetrievalHit{
			Text:     r.Text,
			Score:    score,
			Metadata: r.Metadata,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}
