// Package chunker splits extracted text into overlapping, size-bounded chunks for embedding.
package chunker

import (
	"errors"
	"fmt"
	"strconv"
	"unicode"

	"github.com/google/uuid"
	"github.com/hyperjump/docuchat/internal/models"
)

const (
	// DefaultChunkSize is the default maximum number of characters per chunk.
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the default number of characters shared by adjacent chunks.
	DefaultChunkOverlap = 200
)

// ErrInvalidParams is returned by New when size or overlap are out of range.
var ErrInvalidParams = errors.New("invalid chunk parameters")

var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("docuchat:chunk"))

// Chunker splits text into windows of at most chunkSize characters (runes). Each window
// after the first starts chunkOverlap characters before the end of the previous one.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// SourceText is the extracted text of one document.
type SourceText struct {
	Source string
	Text   string
}

// New returns a chunker. chunkSize must be positive and 0 <= chunkOverlap < chunkSize.
func New(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidParams, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidParams, chunkSize, chunkOverlap)
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Size returns the maximum chunk length in characters.
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap returns the number of characters adjacent chunks share.
func (c *Chunker) Overlap() int { return c.chunkOverlap }

// Split returns the chunk texts for text. Empty text yields no chunks; text no longer than
// the chunk size yields exactly one chunk equal to text.
//
// Cuts prefer, in order: a paragraph break, a line break, a sentence end, whitespace, and
// finally a hard cut at the size limit. The separator stays at the end of the chunk it closes.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	n := len(runes)
	if n <= c.chunkSize {
		return []string{text}
	}
	var out []string
	start := 0
	for {
		limit := start + c.chunkSize
		if limit >= n {
			out = append(out, string(runes[start:]))
			return out
		}
		end := c.cut(runes, start, limit)
		out = append(out, string(runes[start:end]))
		start = end - c.chunkOverlap
	}
}

// cut picks the exclusive end of the window starting at start. The end is always in
// (start+overlap, limit] so the next window makes progress.
func (c *Chunker) cut(runes []rune, start, limit int) int {
	minEnd := start + c.chunkOverlap + 1
	for _, isBoundary := range boundaries {
		for end := limit; end >= minEnd; end-- {
			if isBoundary(runes, start, end) {
				return end
			}
		}
	}
	return limit
}

// boundaries are ordered from the largest semantic unit to the smallest.
// Each reports whether a boundary of its kind ends exactly before runes[end].
var boundaries = []func(runes []rune, start, end int) bool{
	func(r []rune, start, end int) bool { // paragraph
		return end-2 >= start && r[end-1] == '\n' && r[end-2] == '\n'
	},
	func(r []rune, start, end int) bool { // line
		return r[end-1] == '\n'
	},
	func(r []rune, start, end int) bool { // sentence
		return end-2 >= start && isSentenceEnd(r[end-2]) && unicode.IsSpace(r[end-1])
	},
	func(r []rune, _, end int) bool { // word
		return unicode.IsSpace(r[end-1])
	},
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// Chunk splits one document's text into chunks tagged with the source and their order.
func (c *Chunker) Chunk(source, text string) []*models.Chunk {
	parts := c.Split(text)
	if len(parts) == 0 {
		return nil
	}
	chunks := make([]*models.Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = &models.Chunk{
			ID:      ChunkID(source, i),
			Source:  source,
			Index:   i,
			Content: p,
		}
	}
	return chunks
}

// ChunkAll chunks each document independently and concatenates the results in input order.
func (c *Chunker) ChunkAll(docs []SourceText) []*models.Chunk {
	var all []*models.Chunk
	for _, d := range docs {
		all = append(all, c.Chunk(d.Source, d.Text)...)
	}
	return all
}

// ChunkID returns the stable ID of the index-th chunk of source.
func ChunkID(source string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(source+"#"+strconv.Itoa(index))).String()
}
