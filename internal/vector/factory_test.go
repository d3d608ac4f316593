package vector

import (
	"context"
	"testing"
)

func TestNewVectorIndex_Memory(t *testing.T) {
	idx, err := NewVectorIndex(Options{IndexType: "memory", Metric: "l2"}, 3)
	if err != nil {
		t.Fatalf("NewVectorIndex(memory): %v", err)
	}
	defer idx.Close()

	ctx := context.Background()
	if err := idx.Add(ctx, [][]float32{{1, 0, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if idx.Size() != 1 {
		t.Errorf("Size=%d, want 1", idx.Size())
	}
	if idx.Metric() != MetricL2 || idx.Dimensions() != 3 {
		t.Errorf("metric/dim = %s/%d", idx.Metric(), idx.Dimensions())
	}
}

func TestNewVectorIndex_Defaults(t *testing.T) {
	idx, err := NewVectorIndex(Options{}, 3)
	if err != nil {
		t.Fatalf("NewVectorIndex(''): %v", err)
	}
	defer idx.Close()

	if idx.Size() != 0 {
		t.Errorf("Size=%d, want 0", idx.Size())
	}
	if idx.Metric() != MetricCosine {
		t.Errorf("default metric = %s", idx.Metric())
	}
}

func TestNewVectorIndex_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		dim  int
	}{
		{"unknown type", Options{IndexType: "annoy"}, 3},
		{"unknown metric", Options{Metric: "hamming"}, 3},
		{"zero dimension", Options{IndexType: "memory"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewVectorIndex(tt.opts, tt.dim); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestIsFAISSAvailable(t *testing.T) {
	// The result depends on build tags.
	t.Logf("FAISS available: %v", IsFAISSAvailable())
}

func TestNewVectorIndex_FAISS(t *testing.T) {
	if !IsFAISSAvailable() {
		t.Skip("FAISS not available (build with -tags=faiss)")
	}

	idx, err := NewVectorIndex(Options{IndexType: "faiss"}, 3)
	if err != nil {
		t.Fatalf("NewVectorIndex(faiss): %v", err)
	}
	defer idx.Close()

	ctx := context.Background()
	if err := idx.Add(ctx, [][]float32{{1, 0, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if idx.Size() != 1 {
		t.Errorf("Size=%d, want 1", idx.Size())
	}
}
