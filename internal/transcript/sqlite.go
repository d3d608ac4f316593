package transcript

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/docuchat/internal/models"
)

// SQLiteStore keeps transcripts in SQLite. The default DSN is an in-memory database, so
// transcripts still end with the process.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens or creates the database at dsn and initializes the schema.
// For file paths, parent directories are created if they do not exist.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	inMemory := strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
	if !inMemory && !strings.HasPrefix(dsn, "file:") {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if inMemory {
		// Every pooled connection to :memory: would be a separate database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
		content TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, seq);
	`
	_, err := db.Exec(schema)
	return err
}

type messageRow struct {
	SessionID string `db:"session_id"`
	models.Message
}

// Append inserts msg at the end of the session transcript.
func (s *SQLiteStore) Append(ctx context.Context, sessionID string, msg *models.Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	row := messageRow{SessionID: sessionID, Message: *msg}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO messages (session_id, role, content, timestamp)
		VALUES (:session_id, :role, :content, :timestamp)`, row)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// List returns the session's messages, oldest first.
func (s *SQLiteStore) List(ctx context.Context, sessionID string) ([]*models.Message, error) {
	var msgs []*models.Message
	err := s.db.SelectContext(ctx, &msgs, `
		SELECT role, content, timestamp FROM messages
		WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	return msgs, nil
}

// Clear deletes the session transcript.
func (s *SQLiteStore) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
