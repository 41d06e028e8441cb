package search

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		metric Metric
		raw    float64
		want   float64
	}{
		{"cosine distance identical", MetricCosineDistance, 0, 1},
		{"cosine distance orthogonal", MetricCosineDistance, 1, 0.5},
		{"cosine distance opposite", MetricCosineDistance, 2, 0},
		{"cosine distance out of range", MetricCosineDistance, 2.5, 0},
		{"cosine similarity max", MetricCosineSimilarity, 1, 1},
		{"cosine similarity min", MetricCosineSimilarity, -1, 0},
		{"euclidean zero", MetricEuclidean, 0, 1},
		{"euclidean one", MetricEuclidean, 1, 0.5},
		{"euclidean negative", MetricEuclidean, -3, 1},
		{"squared euclidean four", MetricSquaredEuclidean, 4, 1.0 / 3.0},
		{"bm25 zero", MetricBM25, 0, 0},
		{"bm25 three", MetricBM25, 3, 0.75},
		{"bm25 infinite", MetricBM25, math.Inf(1), 1},
		{"nan", MetricEuclidean, math.NaN(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.metric, tt.raw)
			if err != nil {
				t.Fatalf("Normalize returned error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Normalize(%s, %v) = %v, want %v", tt.metric, tt.raw, got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("Normalize(%s, %v) = %v outside [0,1]", tt.metric, tt.raw, got)
			}
		})
	}
}

func TestNormalizeUnknownMetric(t *testing.T) {
	if _, err := Normalize(Metric("manhattan"), 1); err == nil {
		t.Error("expected error for unknown metric")
	}
}

func TestNormalizeMonotonic(t *testing.T) {
	for _, metric := range []Metric{MetricCosineDistance, MetricEuclidean, MetricSquaredEuclidean} {
		prev := 2.0
		for d := 0.0; d <= 2.0; d += 0.1 {
			got, _ := Normalize(metric, d)
			if got > prev {
				t.Errorf("%s: similarity increased with distance at d=%v", metric, d)
			}
			prev = got
		}
	}
}

func TestParseMetric(t *testing.T) {
	tests := map[string]Metric{
		"cosine":            MetricCosineDistance,
		"cosine_similarity": MetricCosineSimilarity,
		"l2":                MetricEuclidean,
		"euclidean":         MetricEuclidean,
		"squared_l2":        MetricSquaredEuclidean,
		"bm25":              MetricBM25,
	}
	for in, want := range tests {
		got, err := ParseMetric(in)
		if err != nil {
			t.Errorf("ParseMetric(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseMetric(%q) = %s, want %s", in, got, want)
		}
	}

	if _, err := ParseMetric("hamming"); err == nil {
		t.Error("expected error for unknown metric name")
	}
}
