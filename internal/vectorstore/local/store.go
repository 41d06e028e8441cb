// Package local keeps document embeddings in the SQLite database and scans
// them in process. It suits knowledge bases of a few thousand entities.
package local

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/khanglvm/graphrag-agent/internal/domain"
	"github.com/khanglvm/graphrag-agent/internal/search"
	"github.com/khanglvm/graphrag-agent/internal/storage"
)

// embedBatchSize bounds texts per embedding request.
const embedBatchSize = 100

// DocumentStore persists documents with their vectors.
type DocumentStore interface {
	SaveDocuments(ctx context.Context, docs []storage.StoredDocument) error
	LoadDocuments(ctx context.Context) ([]storage.StoredDocument, error)
	CountDocuments(ctx context.Context) (int, error)
}

// Store is an exhaustive cosine-distance search.Backend.
type Store struct {
	docs     DocumentStore
	embedder domain.Embedder
	model    string

	mu     sync.RWMutex
	cache  []storage.StoredDocument
	loaded bool
}

var (
	_ search.Backend         = (*Store)(nil)
	_ domain.DocumentIndexer = (*Store)(nil)
)

// New creates a store. model is recorded next to each vector.
func New(docs DocumentStore, embedder domain.Embedder, model string) *Store {
	return &Store{docs: docs, embedder: embedder, model: model}
}

// Metric implements search.Backend.
func (s *Store) Metric() search.Metric {
	return search.MetricCosineDistance
}

// Search implements search.Backend.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]search.ScoredHit, error) {
	if limit <= 0 {
		limit = search.DefaultTopK
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 query", len(vectors))
	}
	qv := vectors[0]

	docs, err := s.documents(ctx)
	if err != nil {
		return nil, err
	}

	hits := make([]search.ScoredHit, 0, len(docs))
	for _, d := range docs {
		if len(d.Vector) != len(qv) {
			continue
		}
		hits = append(hits, search.ScoredHit{
			Text:     d.Text,
			Raw:      1 - cosineSimilarity(qv, d.Vector),
			Metadata: d.Metadata,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Raw < hits[j].Raw
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *Store) documents(ctx context.Context) ([]storage.StoredDocument, error) {
	s.mu.RLock()
	if s.loaded {
		docs := s.cache
		s.mu.RUnlock()
		return docs, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.cache, nil
	}

	docs, err := s.docs.LoadDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	s.cache = docs
	s.loaded = true
	return docs, nil
}

// AddDocuments embeds and stores docs.
func (s *Store) AddDocuments(ctx context.Context, docs []domain.Document) error {
	stored := make([]storage.StoredDocument, 0, len(docs))

	for start := 0; start < len(docs); start += embedBatchSize {
		end := min(start+embedBatchSize, len(docs))
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = d.Text
		}

		vectors, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed documents: %w", err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(batch))
		}

		for i, d := range batch {
			stored = append(stored, storage.StoredDocument{Document: d, Vector: vectors[i], Model: s.model})
		}
	}

	if err := s.docs.SaveDocuments(ctx, stored); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache = nil
	s.loaded = false
	s.mu.Unlock()
	return nil
}

// Stats implements domain.DocumentIndexer.
func (s *Store) Stats(ctx context.Context) (domain.IndexStats, error) {
	count, err := s.docs.CountDocuments(ctx)
	if err != nil {
		return domain.IndexStats{}, err
	}

	stats := domain.IndexStats{Backend: "local", Count: count}
	if count > 0 {
		docs, err := s.documents(ctx)
		if err != nil {
			return domain.IndexStats{}, err
		}
		if len(docs) > 0 {
			stats.Dimension = len(docs[0].Vector)
		}
	}
	return stats, nil
}

// cosineSimilarity computes cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct float64
	var normA float64
	var normB float64

	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
