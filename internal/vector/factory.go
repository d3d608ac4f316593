package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses in-memory brute-force search. Good for the few thousand chunks of a document batch.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeFAISS uses a FAISS flat index.
	// Requires FAISS library and build tag -tags=faiss.
	IndexTypeFAISS IndexType = "faiss"
)

// Options selects the index implementation and metric for a build.
type Options struct {
	IndexType string
	Metric    string
}

// NewVectorIndex creates a vector index of the specified type.
// Supported types: "memory" (default), "faiss".
// FAISS requires building with -tags=faiss and having FAISS library installed.
func NewVectorIndex(opts Options, dimensions int) (VectorIndex, error) {
	metric, err := ParseMetric(opts.Metric)
	if err != nil {
		return nil, err
	}
	switch IndexType(opts.IndexType) {
	case IndexTypeMemory, "":
		return NewMemoryIndex(dimensions, metric)
	case IndexTypeFAISS:
		return NewFAISSIndex(dimensions, metric)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, faiss)", opts.IndexType)
	}
}

// IsFAISSAvailable returns true if FAISS support is compiled in.
// This is determined by the build tag -tags=faiss.
func IsFAISSAvailable() bool {
	idx, err := NewFAISSIndex(1, MetricCosine)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
