package embedding

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/hyperjump/docuchat/pkg/utils"
)

// HashingEmbedder maps text to a bag-of-words vector using signed feature hashing.
// It needs no model or network, is deterministic, and texts sharing words score higher
// under cosine similarity. It is the offline default and the embedder used in tests.
type HashingEmbedder struct {
	dimensions int
}

// NewHashingEmbedder returns a hashing embedder producing vectors of the given dimensions.
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashingEmbedder{dimensions: dimensions}
}

// Embed returns the unit-length hashed word vector of text. Text without words yields
// the zero vector.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	for _, w := range Words(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimensions))
		if sum>>63 == 1 {
			emb[idx]--
		} else {
			emb[idx]++
		}
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

// Dimensions returns the embedding dimension.
func (e *HashingEmbedder) Dimensions() int {
	return e.dimensions
}

// Name returns "hashing/<dimensions>".
func (e *HashingEmbedder) Name() string {
	return fmt.Sprintf("hashing/%d", e.dimensions)
}

// Close is a no-op for HashingEmbedder.
func (e *HashingEmbedder) Close() error {
	return nil
}
