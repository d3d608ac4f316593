package models

import "time"

// ScoredChunk is one retrieved chunk with its similarity score and 1-based rank.
// For the l2 metric the score is the negated distance, so higher is always better.
type ScoredChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// RetrievalResult holds the chunks retrieved for one query, best first.
type RetrievalResult struct {
	Query  string         `json:"query"`
	Chunks []*ScoredChunk `json:"chunks"`
}

// Contents returns the text of each retrieved chunk in order.
func (r *RetrievalResult) Contents() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.Chunks))
	for i, sc := range r.Chunks {
		out[i] = sc.Chunk.Content
	}
	return out
}

// Len returns the number of retrieved chunks.
func (r *RetrievalResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Chunks)
}

// Answer is the outcome of one question: the stored assistant message and the chunks
// the answer was grounded on.
type Answer struct {
	Message   *Message         `json:"message"`
	Retrieved *RetrievalResult `json:"retrieved"`
	Model     string           `json:"model"`
	Took      time.Duration    `json:"took_ns"`
}
