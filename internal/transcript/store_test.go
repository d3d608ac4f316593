package transcript

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/docuchat/internal/config"
	"github.com/hyperjump/docuchat/internal/models"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	file, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "transcripts.db"))
	if err != nil {
		t.Fatal(err)
	}
	all := map[string]Store{
		"memory":      NewMemoryStore(),
		"sqlite":      sq,
		"sqlite-file": file,
	}
	t.Cleanup(func() {
		for _, s := range all {
			_ = s.Close()
		}
	})
	return all
}

func TestStore_AppendList(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 9, 5, 0, 0, time.UTC)
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Append(ctx, "s1", models.NewMessage(models.RoleUser, "What treats diabetes?", at)); err != nil {
				t.Fatal(err)
			}
			if err := s.Append(ctx, "s2", models.NewMessage(models.RoleUser, "other session", at)); err != nil {
				t.Fatal(err)
			}
			if err := s.Append(ctx, "s1", models.NewMessage(models.RoleAssistant, "Insulin.", at.Add(time.Minute))); err != nil {
				t.Fatal(err)
			}

			msgs, err := s.List(ctx, "s1")
			if err != nil {
				t.Fatal(err)
			}
			if len(msgs) != 2 {
				t.Fatalf("got %d messages, want 2", len(msgs))
			}
			if msgs[0].Role != models.RoleUser || msgs[1].Role != models.RoleAssistant {
				t.Errorf("order = %s, %s", msgs[0].Role, msgs[1].Role)
			}
			if msgs[0].Timestamp != "09:05" || msgs[1].Timestamp != "09:06" {
				t.Errorf("timestamps = %s, %s", msgs[0].Timestamp, msgs[1].Timestamp)
			}
			if msgs[1].Content != "Insulin." {
				t.Errorf("content = %q", msgs[1].Content)
			}
		})
	}
}

func TestStore_EmptyAndClear(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			msgs, err := s.List(ctx, "nobody")
			if err != nil {
				t.Fatal(err)
			}
			if msgs == nil || len(msgs) != 0 {
				t.Errorf("unknown session should list empty, got %v", msgs)
			}
			_ = s.Append(ctx, "s", models.NewMessage(models.RoleUser, "hi", time.Now()))
			if err := s.Clear(ctx, "s"); err != nil {
				t.Fatal(err)
			}
			if msgs, _ := s.List(ctx, "s"); len(msgs) != 0 {
				t.Errorf("cleared session still has %d messages", len(msgs))
			}
		})
	}
}

func TestStore_RejectsInvalidRole(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Append(ctx, "s", &models.Message{Role: "system", Content: "x"}); err == nil {
				t.Error("expected invalid role error")
			}
			if err := s.Append(ctx, "s", nil); err == nil {
				t.Error("expected nil message error")
			}
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	msg := models.NewMessage(models.RoleUser, "original", time.Now())
	_ = s.Append(ctx, "s", msg)
	msg.Content = "mutated"
	msgs, _ := s.List(ctx, "s")
	msgs[0].Content = "also mutated"
	again, _ := s.List(ctx, "s")
	if again[0].Content != "original" {
		t.Errorf("stored message changed to %q", again[0].Content)
	}
}

func TestNew(t *testing.T) {
	s, err := New(config.TranscriptConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, ok := s.(*SQLiteStore); !ok {
		t.Errorf("got %T", s)
	}
	if _, err := New(config.TranscriptConfig{Driver: "redis"}); !errors.Is(err, models.ErrUnsupportedProvider) {
		t.Errorf("error = %v", err)
	}
}
