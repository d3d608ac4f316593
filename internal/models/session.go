package models

import "time"

// SessionStatus describes a session's live index and transcript.
type SessionStatus struct {
	ID         string     `json:"id"`
	Ready      bool       `json:"ready"`
	Documents  []string   `json:"documents,omitempty"`
	Chunks     int        `json:"chunks"`
	Dimensions int        `json:"dimensions,omitempty"`
	Embedder   string     `json:"embedder,omitempty"`
	BuiltAt    *time.Time `json:"built_at,omitempty"`
	Messages   int        `json:"messages"`
	CreatedAt  time.Time  `json:"created_at"`
}
