package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/hyperjump/docuchat/internal/extract"
	"github.com/hyperjump/docuchat/internal/models"
	"github.com/hyperjump/docuchat/internal/session"
	"go.uber.org/zap"
)

// Feed keeps one session's index in step with a directory: every Sync reads all matching
// files and rebuilds the session from scratch.
type Feed struct {
	dir     string
	allow   func(ext string) bool
	session *session.Session
	logger  *zap.Logger

	mu       sync.Mutex
	lastSync time.Time
	lastErr  error
}

// NewFeed returns a feed for dir into sess. allow filters extensions; nil accepts every
// extension the extractor supports.
func NewFeed(dir string, allow func(ext string) bool, sess *session.Session, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{dir: dir, allow: allow, session: sess, logger: logger}
}

// Directory returns the directory the feed reads.
func (f *Feed) Directory() string { return f.dir }

// SessionID returns the ID of the session the feed rebuilds.
func (f *Feed) SessionID() string { return f.session.ID() }

// Sync rebuilds the session from the directory's current files. A failed sync leaves the
// previous index live.
func (f *Feed) Sync(ctx context.Context) (*models.BuildReport, error) {
	docs, err := extract.ReadDir(f.dir, f.allow)
	if err == nil {
		var report *models.BuildReport
		report, err = f.session.ProcessDocuments(ctx, docs)
		if err == nil {
			f.record(nil)
			f.logger.Info("directory synced",
				zap.String("dir", f.dir),
				zap.Int("documents", report.Documents),
				zap.Int("chunks", report.Chunks))
			return report, nil
		}
	}
	f.record(err)
	f.logger.Warn("directory sync failed", zap.String("dir", f.dir), zap.Error(err))
	return nil, err
}

// OnChange is a Watcher callback that syncs with a background context.
func (f *Feed) OnChange() {
	_, _ = f.Sync(context.Background())
}

// LastSync returns when the last sync finished and its error, if any.
func (f *Feed) LastSync() (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSync, f.lastErr
}

func (f *Feed) record(err error) {
	f.mu.Lock()
	f.lastSync = time.Now()
	f.lastErr = err
	f.mu.Unlock()
}
