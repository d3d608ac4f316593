// Package transcript keeps the ordered chat history of each session.
package transcript

import (
	"context"
	"fmt"

	"github.com/hyperjump/docuchat/internal/config"
	"github.com/hyperjump/docuchat/internal/models"
)

// Store appends and lists transcript messages per session. Messages come back in the
// order they were appended.
type Store interface {
	Append(ctx context.Context, sessionID string, msg *models.Message) error
	List(ctx context.Context, sessionID string) ([]*models.Message, error)
	Clear(ctx context.Context, sessionID string) error
	Close() error
}

// New opens the store selected by cfg.Driver.
func New(cfg config.TranscriptConfig) (Store, error) {
	switch cfg.Driver {
	case "memory", "":
		return NewMemoryStore(), nil
	case "sqlite":
		s, err := NewSQLiteStore(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: transcript driver %q", models.ErrUnsupportedProvider, cfg.Driver)
	}
}

func validate(msg *models.Message) error {
	if msg == nil {
		return fmt.Errorf("message is nil")
	}
	if !msg.Role.Valid() {
		return fmt.Errorf("invalid message role %q", msg.Role)
	}
	return nil
}
