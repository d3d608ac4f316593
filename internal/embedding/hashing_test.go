package embedding

import (
	"context"
	"math"
	"testing"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestHashingEmbedder_UnitLength(t *testing.T) {
	e := NewHashingEmbedder(64)
	v, err := e.Embed(context.Background(), "Diabetes management requires insulin.")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 64 {
		t.Fatalf("len = %d", len(v))
	}
	if n := math.Sqrt(dot(v, v)); math.Abs(n-1) > 1e-5 {
		t.Errorf("norm = %f, want 1", n)
	}
}

func TestHashingEmbedder_Deterministic(t *testing.T) {
	e := NewHashingEmbedder(32)
	a, _ := e.Embed(context.Background(), "same text")
	b, _ := e.Embed(context.Background(), "Same TEXT!")
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("embedding should ignore case and punctuation and be deterministic")
		}
	}
}

func TestHashingEmbedder_SharedWordsScoreHigher(t *testing.T) {
	ctx := context.Background()
	e := NewHashingEmbedder(1024)
	q, _ := e.Embed(ctx, "What treats diabetes?")
	diabetes, _ := e.Embed(ctx, "Diabetes management requires insulin.")
	hypertension, _ := e.Embed(ctx, "Hypertension is treated with diuretics.")
	if dot(q, diabetes) <= dot(q, hypertension) {
		t.Errorf("diabetes chunk should score higher: %f vs %f", dot(q, diabetes), dot(q, hypertension))
	}
}

func TestHashingEmbedder_Empty(t *testing.T) {
	e := NewHashingEmbedder(8)
	v, err := e.Embed(context.Background(), "  ")
	if err != nil {
		t.Fatal(err)
	}
	for _, x := range v {
		if x != 0 {
			t.Fatal("text without words should embed to the zero vector")
		}
	}
}

func TestHashingEmbedder_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHashingEmbedder(8).EmbedBatch(ctx, []string{"a"}); err == nil {
		t.Error("expected context error")
	}
}

func TestHashingEmbedder_Defaults(t *testing.T) {
	e := NewHashingEmbedder(0)
	if e.Dimensions() != 384 {
		t.Errorf("Dimensions() = %d", e.Dimensions())
	}
	if e.Name() != "hashing/384" {
		t.Errorf("Name() = %q", e.Name())
	}
}
