// Package embedding turns text into dense vectors. Providers: feature hashing (offline),
// ONNX Runtime (local model), Ollama and OpenAI-compatible HTTP APIs, plus an LRU cache wrapper.
package embedding

import (
	"context"
	"errors"
)

// ErrEmbedding is wrapped by every provider failure.
var ErrEmbedding = errors.New("embedding failed")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// Name identifies the provider and model. Vectors from embedders with different
	// names are not comparable.
	Name() string
	Close() error
}

// embedEach implements EmbedBatch for providers without a native batch call.
func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
