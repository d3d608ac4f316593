package models

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a session ID is unknown.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidQuestion is returned for blank questions.
	ErrInvalidQuestion = errors.New("invalid question")

	// ErrUnsupportedProvider is returned by factories for unknown provider names.
	ErrUnsupportedProvider = errors.New("unsupported provider")
)

// NotReadyMessage is shown to the user when a question arrives before any documents were processed.
const NotReadyMessage = "Please upload and process documents first!"

// EmptyInputError is returned when an index is requested from zero chunks.
type EmptyInputError struct {
	// Documents is how many documents the batch held before chunking.
	Documents int
}

func (e *EmptyInputError) Error() string {
	if e.Documents == 0 {
		return "cannot build index: no documents were provided"
	}
	return fmt.Sprintf("cannot build index: %d document(s) produced no text chunks", e.Documents)
}

// IndexNotReadyError is returned when a session is queried before a successful build.
type IndexNotReadyError struct {
	SessionID string
}

func (e *IndexNotReadyError) Error() string {
	return NotReadyMessage
}

// AnswerGenerationError wraps a chat model failure for a given question.
type AnswerGenerationError struct {
	Question string
	Err      error
}

func (e *AnswerGenerationError) Error() string {
	return fmt.Sprintf("failed to generate answer for %q: %v", e.Question, e.Err)
}

func (e *AnswerGenerationError) Unwrap() error { return e.Err }

// ExtractionError wraps a failure to pull text out of one document.
type ExtractionError struct {
	Source string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract text from %s: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
