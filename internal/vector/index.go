// Package vector provides vector index and similarity search.
package vector

import (
	"context"
	"fmt"
)

// Metric is the similarity measure an index ranks by.
type Metric string

const (
	// MetricCosine ranks by cosine similarity; Score is in [-1, 1].
	MetricCosine Metric = "cosine"
	// MetricL2 ranks by Euclidean distance; Score is the negated distance.
	MetricL2 Metric = "l2"
)

// ParseMetric validates a configured metric name. Empty means cosine.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricCosine, "":
		return MetricCosine, nil
	case MetricL2:
		return MetricL2, nil
	default:
		return "", fmt.Errorf("unknown metric: %s (supported: cosine, l2)", s)
	}
}

// VectorIndex stores vectors under their insertion position and returns the nearest ones.
type VectorIndex interface {
	// Add appends vectors; the i-th vector ever added gets ID i.
	Add(ctx context.Context, vectors [][]float32) error
	// Search returns at most k results, best first. Equal scores keep insertion order.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Size() int
	Dimensions() int
	Metric() Metric
	Close() error
}

// VectorResult is a single vector search hit. Higher Score is always better.
type VectorResult struct {
	ID    int
	Score float64
}
