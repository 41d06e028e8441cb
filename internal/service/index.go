package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/khanglvm/graphrag-agent/internal/domain"
	"github.com/khanglvm/graphrag-agent/internal/observability"
)

// ExportLimit bounds how many graph entities one IndexGraph call exports.
const ExportLimit = 1000

// ErrIndexingUnavailable is returned when no vector backend or graph
// export is configured.
var ErrIndexingUnavailable = errors.New("vector indexing is not configured")

// EntityExporter reads graph entities as indexable documents.
type EntityExporter interface {
	ExportEntities(ctx context.Context, limit int) ([]domain.Document, error)
}

// IndexResult reports what IndexGraph did.
type IndexResult struct {
	Indexed  int  `json:"indexed"`
	Existing int  `json:"existing"`
	Skipped  bool `json:"skipped"`
}

// IndexGraph copies named or described graph entities into the vector
// backend. A backend that already holds documents is left alone unless
// force is set.
func (s *Service) IndexGraph(ctx context.Context, force bool) (*IndexResult, error) {
	if s.indexer == nil || s.exporter == nil {
		return nil, ErrIndexingUnavailable
	}
	log := observability.LoggerFromContext(ctx)

	stats, err := s.indexer.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read index stats: %w", err)
	}
	if stats.Count > 0 && !force {
		log.Info("index already populated", "count", stats.Count)
		return &IndexResult{Existing: stats.Count, Skipped: true}, nil
	}

	docs, err := s.exporter.ExportEntities(ctx, ExportLimit)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		log.Warn("graph has no named or described entities to index")
		return &IndexResult{Existing: stats.Count}, nil
	}

	if err := s.indexer.AddDocuments(ctx, docs); err != nil {
		return nil, fmt.Errorf("failed to index documents: %w", err)
	}

	log.Info("graph indexed", "documents", len(docs))
	return &IndexResult{Indexed: len(docs), Existing: stats.Count}, nil
}

// Stats summarizes the vector index and the conversation store.
type Stats struct {
	Index    *domain.IndexStats `json:"index,omitempty"`
	Sessions int                `json:"sessions"`
	Tools    []string           `json:"tools"`
}

// Stats reports index and session counts.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	out := &Stats{Tools: s.Tools()}

	if s.indexer != nil {
		idx, err := s.indexer.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read index stats: %w", err)
		}
		out.Index = &idx
	}

	sessions, err := s.memory.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	out.Sessions = len(sessions)
	return out, nil
}
