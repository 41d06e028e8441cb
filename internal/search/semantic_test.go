package search

import (
	"context"
	"errors"
	"math"
	"testing"
)

type stubBackend struct {
	hits   []ScoredHit
	metric Metric
	err    error
	limit  int
}

func (b *stubBackend) Search(ctx context.Context, query string, limit int) ([]ScoredHit, error) {
	b.limit = limit
	return b.hits, b.err
}

func (b *stubBackend) Metric() Metric { return b.metric }

func TestRankCosineDistanceThreshold(t *testing.T) {
	raw := []ScoredHit{
		{Text: "a", Raw: 0.2},
		{Text: "b", Raw: 0.5},
		{Text: "c", Raw: 1.8},
	}

	all, err := Rank(raw, MetricCosineDistance, 0, 10)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	want := []float64{0.9, 0.75, 0.1}
	if len(all) != len(want) {
		t.Fatalf("expected %d hits, got %d", len(want), len(all))
	}
	for i, w := range want {
		if math.Abs(all[i].Score-w) > 1e-9 {
			t.Errorf("hit %d score = %v, want %v", i, all[i].Score, w)
		}
	}

	kept, err := Rank(raw, MetricCosineDistance, 0.7, 10)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if len(kept) != 2 {
		t.Fatalf("expected 2 hits above 0.7, got %d", len(kept))
	}
	if kept[0].Text != "a" || kept[1].Text != "b" {
		t.Errorf("unexpected order: %q, %q", kept[0].Text, kept[1].Text)
	}
	for _, h := range kept {
		if h.Score < 0.7 {
			t.Errorf("hit %q below threshold: %v", h.Text, h.Score)
		}
	}
}

func TestRankStableTies(t *testing.T) {
	raw := []ScoredHit{
		{Text: "first", Raw: 1},
		{Text: "better", Raw: 0},
		{Text: "second", Raw: 1},
		{Text: "third", Raw: 1},
	}

	hits, err := Rank(raw, MetricEuclidean, 0, 10)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	order := []string{"better", "first", "second", "third"}
	for i, text := range order {
		if hits[i].Text != text {
			t.Errorf("position %d = %q, want %q", i, hits[i].Text, text)
		}
	}
}

func TestRankTruncatesToTopK(t *testing.T) {
	raw := []ScoredHit{{Text: "a", Raw: 3}, {Text: "b", Raw: 2}, {Text: "c", Raw: 1}}

	hits, err := Rank(raw, MetricBM25, 0, 2)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Text != "a" {
		t.Errorf("expected best hit first, got %q", hits[0].Text)
	}
}

func TestSemanticSearcherDefaultsAndErrors(t *testing.T) {
	backend := &stubBackend{metric: MetricCosineDistance, hits: []ScoredHit{{Text: "x", Raw: 0.1}}}
	searcher := NewSemanticSearcher(backend)

	hits, err := searcher.SimilaritySearch(context.Background(), "q", 0, 0.5)
	if err != nil {
		t.Fatalf("SimilaritySearch failed: %v", err)
	}
	if backend.limit != DefaultTopK {
		t.Errorf("expected default limit %d, got %d", DefaultTopK, backend.limit)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}

	backend.err = errors.New("connection refused")
	if _, err := searcher.SimilaritySearch(context.Background(), "q", 3, 0); err == nil {
		t.Error("expected backend error to propagate")
	}
}
