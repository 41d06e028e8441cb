package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/khanglvm/graphrag-agent/internal/domain"
	"github.com/khanglvm/graphrag-agent/internal/llm"
	"github.com/khanglvm/graphrag-agent/internal/memory"
	"github.com/khanglvm/graphrag-agent/internal/service"
	"github.com/khanglvm/graphrag-agent/internal/storage/memstore"
	"github.com/khanglvm/graphrag-agent/internal/tools"
)

type fakeIndexer struct {
	docs []domain.Document
}

func (i *fakeIndexer) AddDocuments(ctx context.Context, docs []domain.Document) error {
	i.docs = append(i.docs, docs...)
	return nil
}

func (i *fakeIndexer) Stats(ctx context.Context) (domain.IndexStats, error) {
	return domain.IndexStats{Backend: "fake", Count: len(i.docs)}, nil
}

type fakeExporter struct {
	docs  []domain.Document
	limit int
}

func (e *fakeExporter) ExportEntities(ctx context.Context, limit int) ([]domain.Document, error) {
	e.limit = limit
	return e.docs, nil
}

func newIndexService(t *testing.T, indexer *fakeIndexer, exporter *fakeExporter) *service.Service {
	t.Helper()
	registry, err := tools.NewDefaultRegistry(&fakeGraph{}, nil, 0.7, 0)
	if err != nil {
		t.Fatalf("NewDefaultRegistry failed: %v", err)
	}
	deps := service.Deps{
		Model:  llm.NewScripted(),
		Tools:  registry,
		Memory: memory.New(memstore.New(), 0),
	}
	if indexer != nil {
		deps.Indexer = indexer
	}
	if exporter != nil {
		deps.Exporter = exporter
	}
	return service.New(deps, service.Options{})
}

func TestIndexGraph(t *testing.T) {
	ctx := context.Background()
	indexer := &fakeIndexer{}
	exporter := &fakeExporter{docs: []domain.Document{
		{ID: "1", Text: "Person: Alice - engineer"},
		{ID: "2", Text: "Company: Acme - widgets"},
	}}
	svc := newIndexService(t, indexer, exporter)

	res, err := svc.IndexGraph(ctx, false)
	if err != nil {
		t.Fatalf("IndexGraph returned error: %v", err)
	}
	if res.Indexed != 2 || res.Skipped {
		t.Errorf("unexpected result %+v", res)
	}
	if exporter.limit != service.ExportLimit {
		t.Errorf("expected export limit %d, got %d", service.ExportLimit, exporter.limit)
	}

	res, err = svc.IndexGraph(ctx, false)
	if err != nil {
		t.Fatalf("IndexGraph returned error: %v", err)
	}
	if !res.Skipped || res.Existing != 2 {
		t.Errorf("expected populated index to be skipped, got %+v", res)
	}

	res, err = svc.IndexGraph(ctx, true)
	if err != nil {
		t.Fatalf("forced IndexGraph returned error: %v", err)
	}
	if res.Skipped || len(indexer.docs) != 4 {
		t.Errorf("expected forced reindex, got %+v with %d docs", res, len(indexer.docs))
	}
}

func TestIndexGraph_Unavailable(t *testing.T) {
	svc := newIndexService(t, nil, nil)

	_, err := svc.IndexGraph(context.Background(), false)
	if !errors.Is(err, service.ErrIndexingUnavailable) {
		t.Errorf("expected ErrIndexingUnavailable, got %v", err)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	svc := newIndexService(t, &fakeIndexer{docs: []domain.Document{{ID: "1"}}}, &fakeExporter{})

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.Index == nil || stats.Index.Count != 1 {
		t.Errorf("unexpected index stats %+v", stats.Index)
	}
	if stats.Sessions != 0 {
		t.Errorf("expected 0 sessions, got %d", stats.Sessions)
	}
	if len(stats.Tools) != 2 {
		t.Errorf("expected 2 tools, got %v", stats.Tools)
	}
}
