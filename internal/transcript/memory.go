package transcript

import (
	"context"
	"sync"

	"github.com/hyperjump/docuchat/internal/models"
)

// MemoryStore keeps transcripts in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]*models.Message
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]*models.Message)}
}

// Append adds a copy of msg to the session transcript.
func (s *MemoryStore) Append(ctx context.Context, sessionID string, msg *models.Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	m := *msg
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], &m)
	return nil
}

// List returns copies of the session's messages, oldest first.
func (s *MemoryStore) List(ctx context.Context, sessionID string) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.sessions[sessionID]
	out := make([]*models.Message, len(msgs))
	for i, m := range msgs {
		c := *m
		out[i] = &c
	}
	return out, nil
}

// Clear drops the session transcript.
func (s *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}
