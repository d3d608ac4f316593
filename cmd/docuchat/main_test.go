package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/docuchat/internal/answer"
	"github.com/hyperjump/docuchat/internal/chat"
	"github.com/hyperjump/docuchat/internal/chunker"
	"github.com/hyperjump/docuchat/internal/cli"
	"github.com/hyperjump/docuchat/internal/config"
	"github.com/hyperjump/docuchat/internal/embedding"
	"github.com/hyperjump/docuchat/internal/extract"
	"github.com/hyperjump/docuchat/internal/models"
	"github.com/hyperjump/docuchat/internal/retrieval"
	"github.com/hyperjump/docuchat/internal/server"
	"github.com/hyperjump/docuchat/internal/session"
	"github.com/hyperjump/docuchat/internal/transcript"
	"github.com/hyperjump/docuchat/internal/vector"
	"go.uber.org/zap"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after files are moved first",
			args:     []string{"a.pdf", "b.pdf", "-q", "what treats diabetes?"},
			expected: []string{"-q", "what treats diabetes?", "a.pdf", "b.pdf"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-k", "2", "a.pdf"},
			expected: []string{"-k", "2", "a.pdf"},
		},
		{
			name:     "files only returns unchanged",
			args:     []string{"a.pdf"},
			expected: []string{"a.pdf"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
retrieval:
  top_k: 6
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug || cfg.Retrieval.TopK != 6 {
		t.Errorf("cwd config.yaml not applied: %+v", cfg)
	}
}

func TestLoadConfig_defaultsWhenNothingFound(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("a system config exists at the default path")
	}
	chdir(t, t.TempDir())
	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved = %q, want empty for built-in defaults", resolved)
	}
	if cfg.Chunking.ChunkSize != 1000 || cfg.Retrieval.TopK != 4 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}

	if _, _, err := loadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("explicit missing path should fail")
	}
}

func TestInitializeComponents(t *testing.T) {
	cfg := config.Default()
	cfg.Chat.Provider = "ollama"
	cfg.Vector.IndexType = "faiss"
	cfg.Transcript.Driver = "sqlite"
	cfg.Transcript.DSN = ":memory:"

	c, err := initializeComponents(cfg, zap.NewNop(), true)
	if err != nil {
		t.Fatalf("initializeComponents: %v", err)
	}
	defer c.Close()

	if !strings.HasPrefix(c.Embedder.Name(), "hashing/") || c.Model.Name() == "" {
		t.Errorf("unexpected providers: %s, %s", c.Embedder.Name(), c.Model.Name())
	}
	sess := c.Sessions.Create()
	report, err := sess.ProcessDocuments(context.Background(), []*models.Document{{Source: "a.txt", Content: []byte("alpha beta gamma")}})
	if err != nil {
		t.Fatalf("ProcessDocuments: %v", err)
	}
	if report.Chunks != 1 {
		t.Errorf("Chunks = %d", report.Chunks)
	}
}

func TestInitializeComponents_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown embedder", func(c *config.Config) { c.Embedding.Provider = "word2vec"; c.Chat.Provider = "ollama" }},
		{"missing chat key", func(c *config.Config) { c.Chat.APIKeyEnv = "DOCUCHAT_TEST_UNSET_KEY" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			if _, err := initializeComponents(cfg, zap.NewNop(), false); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadDocuments(t *testing.T) {
	dir := t.TempDir()
	docsDir := filepath.Join(dir, "docs")
	if err := os.Mkdir(docsDir, 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		filepath.Join(dir, "single.txt"):     "single",
		filepath.Join(docsDir, "one.md"):     "one",
		filepath.Join(docsDir, "skip.exe"):   "MZ",
		filepath.Join(dir, "not-allowed.go"): "package x",
	}
	for p, c := range files {
		if err := os.WriteFile(p, []byte(c), 0600); err != nil {
			t.Fatal(err)
		}
	}
	allow := config.Default().Upload.AllowsExtension

	docs, err := loadDocuments([]string{filepath.Join(dir, "single.txt"), docsDir}, allow)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 || docs[0].Source != "single.txt" || docs[1].Source != "one.md" {
		t.Errorf("unexpected documents: %+v", docs)
	}

	if _, err := loadDocuments([]string{filepath.Join(dir, "not-allowed.go")}, allow); err == nil {
		t.Error("expected error for disallowed file")
	}
	if _, err := loadDocuments([]string{filepath.Join(dir, "missing.txt")}, allow); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestChunkFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte("abcdefghij"), 0600); err != nil {
		t.Fatal(err)
	}
	chunks, err := chunkFile(path, config.Default().Chunking, 4, 1)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, c := range chunks {
		got = append(got, c.Content)
	}
	if want := []string{"abcd", "defg", "ghij"}; !reflect.DeepEqual(got, want) {
		t.Errorf("chunks = %v, want %v", got, want)
	}

	chunks, err = chunkFile(path, config.Default().Chunking, 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Errorf("config defaults should keep short text whole, got %d chunks", len(chunks))
	}

	if _, err := chunkFile(path, config.Default().Chunking, 4, 4); !errors.Is(err, chunker.ErrInvalidParams) {
		t.Errorf("error = %v, want ErrInvalidParams", err)
	}
}

type stubAsker struct {
	questions []string
}

func (s *stubAsker) Ask(_ context.Context, req models.AskRequest) (*models.Answer, error) {
	s.questions = append(s.questions, req.Question)
	if req.Question == "fail" {
		return nil, &models.IndexNotReadyError{}
	}
	return &models.Answer{
		Message:   &models.Message{Role: models.RoleAssistant, Content: "answer to " + req.Question, Timestamp: "12:00"},
		Retrieved: &models.RetrievalResult{},
		Model:     "stub",
	}, nil
}

func TestRunREPL(t *testing.T) {
	stub := &stubAsker{}
	in := strings.NewReader("first\n\nfail\nsecond\nexit\nnever\n")
	var out bytes.Buffer
	if err := runREPL(context.Background(), stub, in, &out, 0, cli.OutputText); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(stub.questions, []string{"first", "fail", "second"}) {
		t.Errorf("questions = %v", stub.questions)
	}
	text := out.String()
	for _, want := range []string{"answer to first", "Error: " + models.NotReadyMessage, "answer to second"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestAskViaHTTP(t *testing.T) {
	emb := embedding.NewHashingEmbedder(1024)
	ch, err := chunker.New(chunker.DefaultChunkSize, chunker.DefaultChunkOverlap)
	if err != nil {
		t.Fatal(err)
	}
	var prompt string
	model := chat.ModelFunc(func(_ context.Context, p string) (string, error) {
		prompt = p
		return "Insulin.", nil
	})
	mgr := session.NewManager(session.Components{
		Extractor:  extract.NewExtractor(),
		Chunker:    ch,
		Builder:    retrieval.NewBuilder(emb, vector.Options{}),
		Retriever:  retrieval.NewRetriever(emb),
		Composer:   answer.NewComposer(model),
		Transcript: transcript.NewMemoryStore(),
	})
	defer mgr.Close(context.Background())
	srv := server.NewServer(mgr, &config.ServerConfig{}, config.Default().Upload, zap.NewNop(), nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	dir := t.TempDir()
	a := filepath.Join(dir, "diabetes.txt")
	b := filepath.Join(dir, "hypertension.txt")
	_ = os.WriteFile(a, []byte("Diabetes management requires insulin."), 0600)
	_ = os.WriteFile(b, []byte("Hypertension is treated with diuretics."), 0600)

	ans, err := askViaHTTP(ts.URL, []string{a, b}, "What treats diabetes?", 1)
	if err != nil {
		t.Fatalf("askViaHTTP: %v", err)
	}
	if ans.Message.Content != "Insulin." || ans.Retrieved.Len() != 1 || ans.Retrieved.Chunks[0].Chunk.Source != "diabetes.txt" {
		t.Errorf("unexpected answer: %+v", ans)
	}
	if !strings.Contains(prompt, "Diabetes management requires insulin.") {
		t.Errorf("prompt missing retrieved chunk:\n%s", prompt)
	}

	if _, err := askViaHTTP(ts.URL, []string{filepath.Join(dir, "missing.txt")}, "q", 1); err == nil {
		t.Error("expected error for missing file")
	}
}
