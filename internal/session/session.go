// Package session ties the build phase (extract, chunk, index) and the query phase
// (retrieve, compose) to one conversation with its own index and transcript.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyperjump/docuchat/internal/answer"
	"github.com/hyperjump/docuchat/internal/chunker"
	"github.com/hyperjump/docuchat/internal/extract"
	"github.com/hyperjump/docuchat/internal/models"
	"github.com/hyperjump/docuchat/internal/retrieval"
	"github.com/hyperjump/docuchat/internal/transcript"
	"github.com/hyperjump/docuchat/pkg/utils"
	"go.uber.org/zap"
)

// ExtractPolicy decides what a build does with a document whose text cannot be extracted.
type ExtractPolicy string

const (
	// PolicySkip leaves the document out and reports it in BuildReport.Skipped.
	PolicySkip ExtractPolicy = "skip"
	// PolicyAbort fails the whole build; the previous index stays live.
	PolicyAbort ExtractPolicy = "abort"
)

// Components are the collaborators a session uses. They are shared read-only between
// sessions; Transcript is keyed by session ID.
type Components struct {
	Extractor  *extract.Extractor
	Chunker    *chunker.Chunker
	Builder    *retrieval.Builder
	Retriever  *retrieval.Retriever
	Composer   *answer.Composer
	Transcript transcript.Store
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = utils.NopIfNil(l) }
}

// WithPolicy sets the extraction failure policy. Default is PolicySkip.
func WithPolicy(p ExtractPolicy) Option {
	return func(s *Session) { s.policy = p }
}

// WithTopK sets how many chunks a question retrieves when the request does not say.
func WithTopK(k int) Option {
	return func(s *Session) { s.topK = k }
}

// WithClock overrides the time source used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session owns one live index and one transcript. Builds and questions are turns and
// run one at a time; the index pointer is swapped only once a new index is complete.
type Session struct {
	id        string
	createdAt time.Time
	c         Components
	policy    ExtractPolicy
	topK      int
	now       func() time.Time
	logger    *zap.Logger

	turn  sync.Mutex
	index atomic.Pointer[retrieval.Index]
}

// New returns an empty session. Questions fail with *models.IndexNotReadyError until
// ProcessDocuments succeeds.
func New(id string, c Components, opts ...Option) *Session {
	s := &Session{
		id:     id,
		c:      c,
		policy: PolicySkip,
		topK:   models.DefaultTopK,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.createdAt = s.now()
	return s
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Ready reports whether a question can be answered.
func (s *Session) Ready() bool { return s.index.Load() != nil }

// ProcessDocuments extracts, chunks and indexes docs, then replaces the live index with
// the result. On any error the previous index, if there was one, is kept unchanged.
func (s *Session) ProcessDocuments(ctx context.Context, docs []*models.Document) (*models.BuildReport, error) {
	s.turn.Lock()
	defer s.turn.Unlock()

	start := time.Now()
	report := &models.BuildReport{Documents: len(docs)}
	if len(docs) == 0 {
		return nil, &models.EmptyInputError{}
	}

	texts := make([]chunker.SourceText, 0, len(docs))
	for _, doc := range docs {
		text, err := s.c.Extractor.Extract(doc)
		if err != nil {
			if s.policy == PolicyAbort {
				s.logger.Warn("build aborted", zap.String("session", s.id), zap.String("source", doc.Source), zap.Error(err))
				return nil, err
			}
			s.skip(report, doc.Source, err.Error())
			continue
		}
		text = utils.CleanText(text)
		if utils.IsBlank(text) {
			s.skip(report, doc.Source, "no extractable text")
			continue
		}
		texts = append(texts, chunker.SourceText{Source: doc.Source, Text: text})
	}

	chunks := s.c.Chunker.ChunkAll(texts)
	if len(chunks) == 0 {
		return nil, &models.EmptyInputError{Documents: len(docs)}
	}
	idx, err := s.c.Builder.Build(ctx, chunks)
	if err != nil {
		var empty *models.EmptyInputError
		if errors.As(err, &empty) {
			empty.Documents = len(docs)
		}
		return nil, fmt.Errorf("failed to build index: %w", err)
	}

	if old := s.index.Swap(idx); old != nil {
		if err := old.Close(); err != nil {
			s.logger.Warn("failed to close previous index", zap.String("session", s.id), zap.Error(err))
		}
	}

	report.Chunks = idx.Size()
	report.Dimensions = idx.Dimensions()
	report.Took = time.Since(start)
	s.logger.Info("documents processed",
		zap.String("session", s.id),
		zap.Int("documents", report.Documents),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("chunks", report.Chunks),
		zap.Duration("took", report.Took))
	return report, nil
}

func (s *Session) skip(report *models.BuildReport, source, reason string) {
	report.Skipped = append(report.Skipped, models.SkippedDocument{Source: source, Reason: reason})
	s.logger.Warn("document skipped", zap.String("session", s.id), zap.String("source", source), zap.String("reason", reason))
}

// Ask answers one question. The user message is recorded first; the assistant message is
// recorded only when an answer was produced. Before any successful build it returns
// *models.IndexNotReadyError without retrieving anything.
func (s *Session) Ask(ctx context.Context, req models.AskRequest) (*models.Answer, error) {
	if err := req.Validate(s.topK); err != nil {
		return nil, err
	}

	s.turn.Lock()
	defer s.turn.Unlock()

	start := time.Now()
	stamp := s.now()
	if err := s.c.Transcript.Append(ctx, s.id, models.NewMessage(models.RoleUser, req.Question, stamp)); err != nil {
		return nil, fmt.Errorf("failed to record question: %w", err)
	}

	idx := s.index.Load()
	if idx == nil {
		return nil, &models.IndexNotReadyError{SessionID: s.id}
	}

	retrieved, err := s.c.Retriever.Retrieve(ctx, idx, req.Question, req.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}
	text, err := s.c.Composer.Compose(ctx, retrieved, req.Question)
	if err != nil {
		return nil, err
	}

	msg := models.NewMessage(models.RoleAssistant, text, stamp)
	if err := s.c.Transcript.Append(ctx, s.id, msg); err != nil {
		return nil, fmt.Errorf("failed to record answer: %w", err)
	}
	took := time.Since(start)
	s.logger.Debug("question answered",
		zap.String("session", s.id),
		zap.Int("top_k", req.TopK),
		zap.Int("retrieved", retrieved.Len()),
		zap.Duration("took", took))
	return &models.Answer{Message: msg, Retrieved: retrieved, Model: s.c.Composer.ModelName(), Took: took}, nil
}

// Transcript returns the session's messages in order.
func (s *Session) Transcript(ctx context.Context) ([]*models.Message, error) {
	return s.c.Transcript.List(ctx, s.id)
}

// Status describes the live index and transcript length.
func (s *Session) Status(ctx context.Context) (*models.SessionStatus, error) {
	msgs, err := s.c.Transcript.List(ctx, s.id)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcript: %w", err)
	}
	st := &models.SessionStatus{ID: s.id, Messages: len(msgs), CreatedAt: s.createdAt}
	if idx := s.index.Load(); idx != nil {
		builtAt := idx.BuiltAt()
		st.Ready = true
		st.Documents = idx.Sources()
		st.Chunks = idx.Size()
		st.Dimensions = idx.Dimensions()
		st.Embedder = idx.Embedder()
		st.BuiltAt = &builtAt
	}
	return st, nil
}

// Close drops the index and clears the transcript.
func (s *Session) Close(ctx context.Context) error {
	s.turn.Lock()
	defer s.turn.Unlock()

	var errs []error
	if idx := s.index.Swap(nil); idx != nil {
		errs = append(errs, idx.Close())
	}
	errs = append(errs, s.c.Transcript.Clear(ctx, s.id))
	return errors.Join(errs...)
}
