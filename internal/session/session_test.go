package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/docuchat/internal/answer"
	"github.com/hyperjump/docuchat/internal/chat"
	"github.com/hyperjump/docuchat/internal/chunker"
	"github.com/hyperjump/docuchat/internal/embedding"
	"github.com/hyperjump/docuchat/internal/extract"
	"github.com/hyperjump/docuchat/internal/models"
	"github.com/hyperjump/docuchat/internal/retrieval"
	"github.com/hyperjump/docuchat/internal/transcript"
	"github.com/hyperjump/docuchat/internal/vector"
)

// countingEmbedder counts query embeddings so tests can tell whether retrieval ran.
type countingEmbedder struct {
	*embedding.HashingEmbedder
	queries atomic.Int32
	fail    atomic.Bool
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.queries.Add(1)
	return c.HashingEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.fail.Load() {
		return nil, errors.New("embedding backend down")
	}
	return c.HashingEmbedder.EmbedBatch(ctx, texts)
}

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestSession(t *testing.T, model chat.Model, opts ...Option) (*Session, *countingEmbedder) {
	t.Helper()
	emb := &countingEmbedder{HashingEmbedder: embedding.NewHashingEmbedder(1024)}
	ch, err := chunker.New(chunker.DefaultChunkSize, chunker.DefaultChunkOverlap)
	if err != nil {
		t.Fatal(err)
	}
	c := Components{
		Extractor:  extract.NewExtractor(),
		Chunker:    ch,
		Builder:    retrieval.NewBuilder(emb, vector.Options{}),
		Retriever:  retrieval.NewRetriever(emb),
		Composer:   answer.NewComposer(model),
		Transcript: transcript.NewMemoryStore(),
	}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	s := New("s1", c, opts...)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, emb
}

func doc(source, text string) *models.Document {
	return &models.Document{Source: source, Content: []byte(text)}
}

func medicalDocs() []*models.Document {
	return []*models.Document{
		doc("diabetes.txt", "Diabetes management requires insulin."),
		doc("hypertension.txt", "Hypertension is treated with diuretics."),
	}
}

// recordingModel returns reply and remembers the last prompt.
type recordingModel struct {
	mu     sync.Mutex
	prompt string
	calls  int
	reply  string
	err    error
}

func (m *recordingModel) Invoke(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompt = prompt
	m.calls++
	return m.reply, m.err
}

func (m *recordingModel) Name() string { return "recording" }

func TestSession_AnswersFromRetrievedContext(t *testing.T) {
	model := &recordingModel{reply: "Insulin."}
	s, _ := newTestSession(t, model)
	ctx := context.Background()

	report, err := s.ProcessDocuments(ctx, medicalDocs())
	if err != nil {
		t.Fatalf("ProcessDocuments: %v", err)
	}
	if report.Documents != 2 || report.Chunks != 2 || len(report.Skipped) != 0 || report.Dimensions != 1024 {
		t.Errorf("unexpected report: %+v", report)
	}

	ans, err := s.Ask(ctx, models.AskRequest{Question: "What treats diabetes?", TopK: 1})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Message.Content != "Insulin." || ans.Message.Role != models.RoleAssistant {
		t.Errorf("unexpected answer message: %+v", ans.Message)
	}
	if ans.Retrieved.Len() != 1 || ans.Retrieved.Chunks[0].Chunk.Source != "diabetes.txt" {
		t.Fatalf("retrieved %+v, want the insulin chunk", ans.Retrieved.Contents())
	}
	if !strings.Contains(model.prompt, "Diabetes management requires insulin.") {
		t.Errorf("prompt missing insulin chunk:\n%s", model.prompt)
	}
	if !strings.Contains(model.prompt, answer.FallbackSentence) {
		t.Errorf("prompt missing fallback instruction:\n%s", model.prompt)
	}
	if strings.Contains(model.prompt, "diuretics") {
		t.Errorf("prompt should hold only the top chunk:\n%s", model.prompt)
	}
	if ans.Model != "recording" {
		t.Errorf("Model = %q", ans.Model)
	}

	msgs, err := s.Transcript(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("transcript has %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[0].Content != "What treats diabetes?" {
		t.Errorf("first message = %+v", msgs[0])
	}
	if msgs[1].Role != models.RoleAssistant || msgs[1].Content != "Insulin." {
		t.Errorf("second message = %+v", msgs[1])
	}
	for _, m := range msgs {
		if m.Timestamp != "09:30" {
			t.Errorf("timestamp = %q, want 09:30", m.Timestamp)
		}
	}
}

func TestSession_FallbackSentencePassedThrough(t *testing.T) {
	model := chat.ModelFunc(func(context.Context, string) (string, error) {
		return answer.FallbackSentence, nil
	})
	s, _ := newTestSession(t, model)
	ctx := context.Background()
	if _, err := s.ProcessDocuments(ctx, medicalDocs()); err != nil {
		t.Fatal(err)
	}
	ans, err := s.Ask(ctx, models.AskRequest{Question: "How tall is Mount Everest?"})
	if err != nil {
		t.Fatal(err)
	}
	if ans.Message.Content != answer.FallbackSentence {
		t.Errorf("got %q, want the fallback sentence verbatim", ans.Message.Content)
	}
}

func TestSession_AskBeforeBuild(t *testing.T) {
	model := &recordingModel{reply: "unused"}
	s, emb := newTestSession(t, model)
	ctx := context.Background()

	_, err := s.Ask(ctx, models.AskRequest{Question: "anything?"})
	var notReady *models.IndexNotReadyError
	if !errors.As(err, &notReady) {
		t.Fatalf("error = %v, want IndexNotReadyError", err)
	}
	if notReady.SessionID != "s1" || err.Error() != models.NotReadyMessage {
		t.Errorf("unexpected error: %+v %q", notReady, err.Error())
	}
	if emb.queries.Load() != 0 {
		t.Error("retriever ran before any build")
	}
	if model.calls != 0 {
		t.Error("model invoked before any build")
	}
	msgs, _ := s.Transcript(ctx)
	if len(msgs) != 1 || msgs[0].Role != models.RoleUser {
		t.Errorf("only the user message should be recorded, got %+v", msgs)
	}
	if s.Ready() {
		t.Error("Ready() = true before build")
	}
}

func TestSession_InvalidQuestion(t *testing.T) {
	s, _ := newTestSession(t, &recordingModel{})
	_, err := s.Ask(context.Background(), models.AskRequest{Question: "   "})
	if !errors.Is(err, models.ErrInvalidQuestion) {
		t.Fatalf("error = %v, want ErrInvalidQuestion", err)
	}
	msgs, _ := s.Transcript(context.Background())
	if len(msgs) != 0 {
		t.Errorf("blank question must not be recorded, got %d messages", len(msgs))
	}
}

func TestSession_EmptyBatch(t *testing.T) {
	s, _ := newTestSession(t, &recordingModel{})
	ctx := context.Background()

	tests := []struct {
		name    string
		docs    []*models.Document
		wantDoc int
	}{
		{"no documents", nil, 0},
		{"only blank documents", []*models.Document{doc("blank.txt", "  \n\t ")}, 1},
		{"only unreadable documents", []*models.Document{doc("broken.pdf", "not a pdf")}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ProcessDocuments(ctx, tt.docs)
			var empty *models.EmptyInputError
			if !errors.As(err, &empty) {
				t.Fatalf("error = %v, want EmptyInputError", err)
			}
			if empty.Documents != tt.wantDoc {
				t.Errorf("Documents = %d, want %d", empty.Documents, tt.wantDoc)
			}
		})
	}
	if s.Ready() {
		t.Error("session became ready from an empty batch")
	}
}

func TestSession_SkipPolicyReportsFailures(t *testing.T) {
	s, _ := newTestSession(t, &recordingModel{reply: "ok"})
	docs := append(medicalDocs(), doc("broken.pdf", "not a pdf"), doc("empty.md", ""))
	report, err := s.ProcessDocuments(context.Background(), docs)
	if err != nil {
		t.Fatalf("ProcessDocuments: %v", err)
	}
	if report.Documents != 4 || report.Chunks != 2 {
		t.Errorf("unexpected report: %+v", report)
	}
	if len(report.Skipped) != 2 || report.Skipped[0].Source != "broken.pdf" || report.Skipped[1].Source != "empty.md" {
		t.Errorf("Skipped = %+v", report.Skipped)
	}
}

func TestSession_AbortPolicyKeepsPreviousIndex(t *testing.T) {
	s, _ := newTestSession(t, &recordingModel{reply: "ok"}, WithPolicy(PolicyAbort))
	ctx := context.Background()
	if _, err := s.ProcessDocuments(ctx, medicalDocs()); err != nil {
		t.Fatal(err)
	}

	_, err := s.ProcessDocuments(ctx, []*models.Document{doc("new.txt", "Fresh content."), doc("broken.docx", "nope")})
	var exErr *models.ExtractionError
	if !errors.As(err, &exErr) || exErr.Source != "broken.docx" {
		t.Fatalf("error = %v, want ExtractionError for broken.docx", err)
	}
	st, err := s.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Ready || st.Chunks != 2 || strings.Join(st.Documents, ",") != "diabetes.txt,hypertension.txt" {
		t.Errorf("previous index not kept: %+v", st)
	}
}

func TestSession_FailedRebuildKeepsPreviousIndex(t *testing.T) {
	s, emb := newTestSession(t, &recordingModel{reply: "ok"})
	ctx := context.Background()
	if _, err := s.ProcessDocuments(ctx, medicalDocs()); err != nil {
		t.Fatal(err)
	}
	emb.fail.Store(true)
	if _, err := s.ProcessDocuments(ctx, []*models.Document{doc("other.txt", "Other text.")}); err == nil {
		t.Fatal("expected build error")
	}
	emb.fail.Store(false)

	ans, err := s.Ask(ctx, models.AskRequest{Question: "What treats diabetes?", TopK: 1})
	if err != nil {
		t.Fatal(err)
	}
	if ans.Retrieved.Chunks[0].Chunk.Source != "diabetes.txt" {
		t.Errorf("old index should still answer, got %s", ans.Retrieved.Chunks[0].Chunk.Source)
	}
}

func TestSession_RebuildReplacesIndex(t *testing.T) {
	s, _ := newTestSession(t, &recordingModel{reply: "ok"})
	ctx := context.Background()
	if _, err := s.ProcessDocuments(ctx, medicalDocs()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ProcessDocuments(ctx, []*models.Document{doc("asthma.txt", "Asthma is managed with inhalers.")}); err != nil {
		t.Fatal(err)
	}
	ans, err := s.Ask(ctx, models.AskRequest{Question: "Diabetes management requires insulin.", TopK: 5})
	if err != nil {
		t.Fatal(err)
	}
	for _, sc := range ans.Retrieved.Chunks {
		if sc.Chunk.Source != "asthma.txt" {
			t.Errorf("chunk from replaced batch retrieved: %s", sc.Chunk.Source)
		}
	}
}

func TestSession_AnswerFailureNotRecorded(t *testing.T) {
	model := &recordingModel{err: errors.New("quota exceeded")}
	s, _ := newTestSession(t, model)
	ctx := context.Background()
	if _, err := s.ProcessDocuments(ctx, medicalDocs()); err != nil {
		t.Fatal(err)
	}
	_, err := s.Ask(ctx, models.AskRequest{Question: "What treats diabetes?"})
	var genErr *models.AnswerGenerationError
	if !errors.As(err, &genErr) || genErr.Question != "What treats diabetes?" {
		t.Fatalf("error = %v, want AnswerGenerationError", err)
	}
	msgs, _ := s.Transcript(ctx)
	if len(msgs) != 1 || msgs[0].Role != models.RoleUser {
		t.Errorf("assistant message recorded after failure: %+v", msgs)
	}
}

func TestSession_ConcurrentAsksSerialized(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	model := chat.ModelFunc(func(context.Context, string) (string, error) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return "ok", nil
	})
	s, _ := newTestSession(t, model)
	ctx := context.Background()
	if _, err := s.ProcessDocuments(ctx, medicalDocs()); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Ask(ctx, models.AskRequest{Question: "What treats diabetes?"}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if maxInFlight.Load() != 1 {
		t.Errorf("max concurrent model calls = %d, want 1", maxInFlight.Load())
	}
	msgs, _ := s.Transcript(ctx)
	if len(msgs) != 8 {
		t.Fatalf("transcript has %d messages, want 8", len(msgs))
	}
	for i := 0; i < len(msgs); i += 2 {
		if msgs[i].Role != models.RoleUser || msgs[i+1].Role != models.RoleAssistant {
			t.Errorf("turns interleaved at %d: %s, %s", i, msgs[i].Role, msgs[i+1].Role)
		}
	}
}

func TestSession_StatusAndClose(t *testing.T) {
	s, _ := newTestSession(t, &recordingModel{reply: "ok"})
	ctx := context.Background()

	st, err := s.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Ready || st.BuiltAt != nil || st.ID != "s1" || !st.CreatedAt.Equal(fixedNow) {
		t.Errorf("unexpected initial status: %+v", st)
	}

	if _, err := s.ProcessDocuments(ctx, medicalDocs()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Ask(ctx, models.AskRequest{Question: "What treats diabetes?"}); err != nil {
		t.Fatal(err)
	}
	st, err = s.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Ready || st.Chunks != 2 || st.Messages != 2 || st.Embedder != "hashing/1024" || st.BuiltAt == nil {
		t.Errorf("unexpected status: %+v", st)
	}

	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Ready() {
		t.Error("Ready() after Close")
	}
	msgs, _ := s.Transcript(ctx)
	if len(msgs) != 0 {
		t.Errorf("transcript not cleared: %d", len(msgs))
	}
}
