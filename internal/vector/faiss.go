//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"unsafe"
)

// FAISSIndex is a vector index backed by an exact FAISS flat index. Cosine uses
// IndexFlatIP over unit-normalized vectors; l2 uses IndexFlatL2.
type FAISSIndex struct {
	index      *C.FaissIndex
	dimensions int
	metric     Metric
	mu         sync.RWMutex
}

// NewFAISSIndex creates a FAISS flat index with the given dimension and metric.
func NewFAISSIndex(dimensions int, metric Metric) (*FAISSIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	m, err := ParseMetric(string(metric))
	if err != nil {
		return nil, err
	}

	var index *C.FaissIndex
	switch m {
	case MetricL2:
		var flat *C.FaissIndexFlatL2
		if ret := C.faiss_IndexFlatL2_new_with(&flat, C.idx_t(dimensions)); ret != 0 {
			return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
		}
		index = (*C.FaissIndex)(unsafe.Pointer(flat))
	default:
		var flat *C.FaissIndexFlatIP
		if ret := C.faiss_IndexFlatIP_new_with(&flat, C.idx_t(dimensions)); ret != 0 {
			return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
		}
		index = (*C.FaissIndex)(unsafe.Pointer(flat))
	}

	return &FAISSIndex{index: index, dimensions: dimensions, metric: m}, nil
}

// faissLastError returns the last FAISS error message.
func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// prepare returns the vector as FAISS should see it for this index's metric.
func (f *FAISSIndex) prepare(v []float32) []float32 {
	if f.metric == MetricCosine {
		return Normalized(v)
	}
	return v
}

// Add appends vectors; FAISS assigns sequential labels matching insertion order.
func (f *FAISSIndex) Add(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}

	n := len(vectors)
	flatVectors := make([]float32, n*f.dimensions)
	for i, vec := range vectors {
		if len(vec) != f.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), f.dimensions)
		}
		copy(flatVectors[i*f.dimensions:(i+1)*f.dimensions], f.prepare(vec))
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index == nil {
		return fmt.Errorf("FAISS index closed")
	}

	ret := C.faiss_Index_add(
		f.index,
		C.idx_t(n),
		(*C.float)(unsafe.Pointer(&flatVectors[0])),
	)
	if ret != 0 {
		return fmt.Errorf("failed to add vectors to FAISS index: %s", faissLastError())
	}
	return nil
}

// Search returns the top-k vectors for the index metric.
func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), f.dimensions)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if k <= 0 || f.index == nil {
		return nil, nil
	}
	ntotal := int(C.faiss_Index_ntotal(f.index))
	if ntotal == 0 {
		return nil, nil
	}
	// Ask for every candidate that could tie with the k-th so ties resolve by label.
	if k > ntotal {
		k = ntotal
	}
	fetch := ntotal

	q := f.prepare(query)
	distances := make([]float32, fetch)
	labels := make([]int64, fetch)
	ret := C.faiss_Index_search(
		f.index,
		1,
		(*C.float)(unsafe.Pointer(&q[0])),
		C.idx_t(fetch),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}

	results := make([]*VectorResult, 0, fetch)
	for i := 0; i < fetch; i++ {
		if labels[i] < 0 {
			continue
		}
		score := float64(distances[i])
		if f.metric == MetricL2 {
			// IndexFlatL2 reports squared distances.
			score = -math.Sqrt(score)
		}
		results = append(results, &VectorResult{ID: int(labels[i]), Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Size returns the number of vectors in the index.
func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.index == nil {
		return 0
	}
	return int(C.faiss_Index_ntotal(f.index))
}

// Dimensions returns the vector dimension.
func (f *FAISSIndex) Dimensions() int {
	return f.dimensions
}

// Metric returns the ranking metric.
func (f *FAISSIndex) Metric() Metric {
	return f.metric
}

// Close frees the FAISS index resources.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}
