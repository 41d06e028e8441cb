// Package keyword is a full-text retrieval backend built on bleve.
package keyword

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/index/scorch"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/khanglvm/graphrag-agent/internal/domain"
	"github.com/khanglvm/graphrag-agent/internal/observability"
	"github.com/khanglvm/graphrag-agent/internal/search"
)

const (
	fieldText     = "text"
	fieldMetadata = "metadata"
)

// Index is a bleve-backed search.Backend.
type Index struct {
	bleveIndex bleve.Index
	mu         sync.RWMutex
	indexPath  string
}

var (
	_ search.Backend         = (*Index)(nil)
	_ domain.DocumentIndexer = (*Index)(nil)
)

// New creates an in-memory index.
func New() (*Index, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}
	return &Index{bleveIndex: index}, nil
}

// NewWithPath opens or creates a persistent scorch index at indexPath.
func NewWithPath(indexPath string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(indexPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	index, err := bleve.NewUsing(indexPath, buildIndexMapping(), scorch.Name, scorch.Name, nil)
	if err != nil {
		index, err = bleve.Open(indexPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open/create index: %w", err)
		}
	}

	return &Index{bleveIndex: index, indexPath: indexPath}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	textField := bleve.NewTextFieldMapping()
	textField.Store = true
	docMapping.AddFieldMappingsAt(fieldText, textField)

	// Metadata is kept as a JSON string for retrieval only.
	metaField := bleve.NewTextFieldMapping()
	metaField.Index = false
	metaField.IncludeInAll = false
	docMapping.AddFieldMappingsAt(fieldMetadata, metaField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}

// Metric implements search.Backend.
func (i *Index) Metric() search.Metric {
	return search.MetricBM25
}

// Search implements search.Backend.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]search.ScoredHit, error) {
	if limit <= 0 {
		limit = search.DefaultTopK
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	match := bleve.NewMatchQuery(query)
	match.SetField(fieldText)

	req := bleve.NewSearchRequestOptions(match, limit, 0, false)
	req.Fields = []string{fieldText, fieldMetadata}

	results, err := i.bleveIndex.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	return convertBleveResults(results), nil
}

func convertBleveResults(results *bleve.SearchResult) []search.ScoredHit {
	hits := make([]search.ScoredHit, 0, len(results.Hits))

	for _, hit := range results.Hits {
		text, _ := hit.Fields[fieldText].(string)

		var meta map[string]any
		if raw, ok := hit.Fields[fieldMetadata].(string); ok && raw != "" {
			if err := json.Unmarshal([]byte(raw), &meta); err != nil {
				observability.Logger().Warn("dropping unreadable metadata", "doc", hit.ID, "error", err)
				meta = nil
			}
		}

		hits = append(hits, search.ScoredHit{
			Text:     text,
			Raw:      hit.Score,
			Metadata: meta,
		})
	}

	return hits
}

// AddDocuments indexes docs in one batch. Existing ids are replaced.
func (i *Index) AddDocuments(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	batch := i.bleveIndex.NewBatch()
	for _, d := range docs {
		meta, err := json.Marshal(d.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", d.ID, err)
		}
		doc := map[string]any{
			fieldText:     d.Text,
			fieldMetadata: string(meta),
		}
		if err := batch.Index(d.ID, doc); err != nil {
			return fmt.Errorf("failed to index document %s: %w", d.ID, err)
		}
	}

	if err := i.bleveIndex.Batch(batch); err != nil {
		return fmt.Errorf("failed to batch index documents: %w", err)
	}
	return nil
}

// Stats implements domain.DocumentIndexer.
func (i *Index) Stats(ctx context.Context) (domain.IndexStats, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	count, err := i.bleveIndex.DocCount()
	if err != nil {
		return domain.IndexStats{}, fmt.Errorf("failed to get doc count: %w", err)
	}

	return domain.IndexStats{
		Backend:    "keyword",
		Collection: i.indexPath,
		Count:      int(count),
	}, nil
}

// Close releases the index.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.bleveIndex != nil {
		return i.bleveIndex.Close()
	}
	return nil
}
