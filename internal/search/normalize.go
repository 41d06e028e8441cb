/*
Package search turns store-native scores into comparable similarities and
fuses semantic hits with graph neighborhoods.

Every backend reports raw scores in its own metric. Normalize maps them onto
[0,1] where higher is more similar:

	cosine_distance    d in [0,2]     (2 - d) / 2
	cosine_similarity  s in [-1,1]    (1 + s) / 2
	euclidean          d >= 0         1 / (1 + d)
	squared_euclidean  d >= 0         1 / (1 + sqrt(d))
	bm25               s >= 0         s / (1 + s)

Thresholds are always compared against the normalized value.
*/
package search

import (
	"fmt"
	"math"
)

// Metric names the native scoring scale of a backend.
type Metric string

const (
	MetricCosineDistance   Metric = "cosine_distance"
	MetricCosineSimilarity Metric = "cosine_similarity"
	MetricEuclidean        Metric = "euclidean"
	MetricSquaredEuclidean Metric = "squared_euclidean"
	MetricBM25             Metric = "bm25"
)

// ParseMetric accepts the config spellings of a metric.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "cosine", "cosine_distance":
		return MetricCosineDistance, nil
	case "cosine_similarity":
		return MetricCosineSimilarity, nil
	case "l2", "euclid", "euclidean":
		return MetricEuclidean, nil
	case "squared_l2", "squared_euclidean":
		return MetricSquaredEuclidean, nil
	case "bm25":
		return MetricBM25, nil
	default:
		return "", fmt.Errorf("unknown metric %q", s)
	}
}

// Normalize converts a raw score to a similarity in [0,1].
func Normalize(metric Metric, raw float64) (float64, error) {
	if math.IsNaN(raw) {
		return 0, nil
	}

	var sim float64
	switch metric {
	case MetricCosineDistance:
		sim = (2 - raw) / 2
	case MetricCosineSimilarity:
		sim = (1 + raw) / 2
	case MetricEuclidean:
		if raw < 0 {
			raw = 0
		}
		sim = 1 / (1 + raw)
	case MetricSquaredEuclidean:
		if raw < 0 {
			raw = 0
		}
		sim = 1 / (1 + math.Sqrt(raw))
	case MetricBM25:
		if raw < 0 {
			raw = 0
		}
		if math.IsInf(raw, 1) {
			return 1, nil
		}
		sim = raw / (1 + raw)
	default:
		return 0, fmt.Errorf("unknown metric %q", metric)
	}

	return clamp01(sim), nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
