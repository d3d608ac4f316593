package retrieval

import (
	"context"
	"fmt"

	"github.com/hyperjump/docuchat/internal/embedding"
	"github.com/hyperjump/docuchat/internal/models"
)

// Retriever embeds a query and returns the most similar chunks of an index.
type Retriever struct {
	embedder embedding.Embedder
}

// NewRetriever returns a retriever. embedder must be the one the queried indexes were built with.
func NewRetriever(embedder embedding.Embedder) *Retriever {
	return &Retriever{embedder: embedder}
}

// Retrieve returns up to k chunks of idx ordered best first. Equal scores keep chunk
// insertion order. k <= 0 yields an empty result and an index smaller than k yields all
// its chunks.
func (r *Retriever) Retrieve(ctx context.Context, idx *Index, query string, k int) (*models.RetrievalResult, error) {
	result := &models.RetrievalResult{Query: query, Chunks: []*models.ScoredChunk{}}
	if k <= 0 {
		return result, nil
	}
	if name := r.embedder.Name(); name != idx.embedder {
		return nil, fmt.Errorf("%w: index built with %s, query uses %s", ErrEmbedderMismatch, idx.embedder, name)
	}

	qv, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(qv) != idx.dimensions {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d", ErrEmbedderMismatch, len(qv), idx.dimensions)
	}

	hits, err := idx.vectors.Search(ctx, qv, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	for i, h := range hits {
		if h.ID < 0 || h.ID >= len(idx.chunks) {
			return nil, fmt.Errorf("vector index returned unknown id %d", h.ID)
		}
		result.Chunks = append(result.Chunks, &models.ScoredChunk{
			Chunk: idx.chunks[h.ID],
			Score: h.Score,
			Rank:  i + 1,
		})
	}
	return result, nil
}
