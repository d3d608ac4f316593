package models

import (
	"fmt"
	"strings"
)

const (
	// DefaultTopK matches the number of chunks handed to the model when a request does not say.
	DefaultTopK = 4
	// MaxTopK caps how many chunks one question may pull into the prompt.
	MaxTopK = 50
)

// AskRequest is a user question for one session.
type AskRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

// Validate trims the question and normalizes TopK. defaultK is used when TopK is unset;
// values <= 0 fall back to DefaultTopK.
func (q *AskRequest) Validate(defaultK int) error {
	q.Question = strings.TrimSpace(q.Question)
	if q.Question == "" {
		return fmt.Errorf("%w: question cannot be empty", ErrInvalidQuestion)
	}
	if defaultK <= 0 {
		defaultK = DefaultTopK
	}
	if q.TopK <= 0 {
		q.TopK = defaultK
	}
	if q.TopK > MaxTopK {
		q.TopK = MaxTopK
	}
	return nil
}
