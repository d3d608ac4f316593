// Package retrieval builds a searchable index over chunks and answers top-K similarity
// queries against it.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/docuchat/internal/embedding"
	"github.com/hyperjump/docuchat/internal/models"
	"github.com/hyperjump/docuchat/internal/vector"
	"go.uber.org/zap"
)

// ErrEmbedderMismatch is returned when an index is queried with a different embedder than
// the one that built it.
var ErrEmbedderMismatch = errors.New("embedder does not match index")

// Index pairs a vector index with the chunks it was built from. Vector i belongs to
// chunks[i]. An Index is immutable once built.
type Index struct {
	vectors    vector.VectorIndex
	chunks     []*models.Chunk
	embedder   string
	dimensions int
	builtAt    time.Time
}

// Size returns the number of indexed chunks.
func (idx *Index) Size() int { return len(idx.chunks) }

// Dimensions returns the vector dimension.
func (idx *Index) Dimensions() int { return idx.dimensions }

// Embedder returns the name of the embedder that produced the vectors.
func (idx *Index) Embedder() string { return idx.embedder }

// Metric returns the similarity metric.
func (idx *Index) Metric() vector.Metric { return idx.vectors.Metric() }

// BuiltAt returns when the build finished.
func (idx *Index) BuiltAt() time.Time { return idx.builtAt }

// Sources returns the distinct chunk sources in first-seen order.
func (idx *Index) Sources() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range idx.chunks {
		if !seen[c.Source] {
			seen[c.Source] = true
			out = append(out, c.Source)
		}
	}
	return out
}

// Close releases the underlying vector index.
func (idx *Index) Close() error {
	return idx.vectors.Close()
}

// Builder embeds chunks and loads them into a fresh vector index.
type Builder struct {
	embedder embedding.Embedder
	opts     vector.Options
	logger   *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBuilderLogger sets the logger. If not set, a no-op logger is used.
func WithBuilderLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = l
	}
}

// NewBuilder returns a builder using embedder and the given vector index options.
func NewBuilder(embedder embedding.Embedder, opts vector.Options, options ...BuilderOption) *Builder {
	b := &Builder{embedder: embedder, opts: opts, logger: zap.NewNop()}
	for _, o := range options {
		o(b)
	}
	return b
}

// Build embeds every chunk and returns a new index. Zero chunks is an
// *models.EmptyInputError; there is never an empty usable index.
func (b *Builder) Build(ctx context.Context, chunks []*models.Chunk) (*Index, error) {
	if len(chunks) == 0 {
		return nil, &models.EmptyInputError{}
	}
	start := time.Now()

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("failed to embed chunks: got %d vectors for %d chunks", len(vecs), len(chunks))
	}
	dim := len(vecs[0])
	if dim == 0 {
		return nil, fmt.Errorf("failed to embed chunks: embedder returned empty vectors")
	}
	for i, v := range vecs {
		if len(v) != dim {
			return nil, fmt.Errorf("failed to embed chunks: chunk %d has dimension %d, expected %d", i, len(v), dim)
		}
	}

	vi, err := vector.NewVectorIndex(b.opts, dim)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector index: %w", err)
	}
	if err := vi.Add(ctx, vecs); err != nil {
		_ = vi.Close()
		return nil, fmt.Errorf("failed to add vectors: %w", err)
	}

	stored := make([]*models.Chunk, len(chunks))
	copy(stored, chunks)
	idx := &Index{
		vectors:    vi,
		chunks:     stored,
		embedder:   b.embedder.Name(),
		dimensions: dim,
		builtAt:    time.Now(),
	}
	b.logger.Debug("index built",
		zap.Int("chunks", len(chunks)),
		zap.Int("dimensions", dim),
		zap.String("embedder", idx.embedder),
		zap.String("metric", string(vi.Metric())),
		zap.Duration("took", time.Since(start)))
	return idx, nil
}
