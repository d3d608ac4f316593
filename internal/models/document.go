// Package models defines core data structures for documents, chunks, retrieval results, and transcripts.
package models

import "time"

// Document is an uploaded file: raw bytes plus the filename it came from.
// It only lives for the duration of a build.
type Document struct {
	Source  string `json:"source"`
	Content []byte `json:"-"`
}

// Chunk is a bounded-length fragment of one document's text, used as the retrieval unit.
// Chunks are never modified after the chunker creates them.
type Chunk struct {
	ID      string `json:"id"`
	Source  string `json:"source"`
	Index   int    `json:"index"`
	Content string `json:"content"`
}

// SkippedDocument records a document that contributed no chunks to a build.
type SkippedDocument struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// BuildReport summarizes one build phase.
type BuildReport struct {
	Documents  int               `json:"documents"`
	Skipped    []SkippedDocument `json:"skipped,omitempty"`
	Chunks     int               `json:"chunks"`
	Dimensions int               `json:"dimensions"`
	Took       time.Duration     `json:"took_ns"`
}
