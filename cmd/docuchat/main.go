// Package main is the docuchat CLI entry point.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

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
	"github.com/hyperjump/docuchat/internal/watcher"
	"github.com/hyperjump/docuchat/pkg/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/docuchat/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// A missing default file yields the built-in defaults. Returns the config and the path
// that was actually loaded ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// API keys may live in a .env file next to the binary's working directory.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "serve", "server":
		runServe()
	case "ask":
		runAsk()
	case "chunk":
		runChunk()
	case "version", "--version", "-v":
		fmt.Printf("docuchat version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and builds a logger; debug forces debug logging on.
func setup(configPath string, debug bool) (*config.Config, string, *zap.Logger, bool) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved, logger, debugMode
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (builds, retrieval, file events)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger, debugMode := setup(*configPath, *debug)
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("embedding", cfg.Embedding.Provider),
		zap.String("chat", cfg.Chat.Provider),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc server.WatchService
	if cfg.Watch.Directory != "" {
		sess := components.Sessions.Create()
		feed := watcher.NewFeed(cfg.Watch.Directory, cfg.Upload.AllowsExtension, sess, logger)
		watchOpts := []watcher.WatcherOption{
			watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMillis) * time.Millisecond),
		}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		w := watcher.NewWatcher(cfg.Watch.Directory, cfg.Upload.Extensions, feed.OnChange, watchOpts...)
		if err := w.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		logger.Info("watching directory",
			zap.String("dir", cfg.Watch.Directory),
			zap.String("session", sess.ID()))
		feed.OnChange()
		watchSvc = feed
	}

	srv := server.NewServer(components.Sessions, &cfg.Server, cfg.Upload, logger, watchSvc)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// argsReorder moves any flags (and their values) that appear after the positional
// arguments to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so "docuchat ask a.pdf -q 'question'" would
// otherwise leave -q unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: docuchat ask [flags] <file|dir>...\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Without -q, questions are read from stdin one per line until EOF or "exit".

Examples:
  docuchat ask report.pdf -q "What treats diabetes?"
  docuchat ask ./docs                                # interactive
  docuchat ask --server http://localhost:8080 a.pdf -q "Summarize"
`)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	question := fs.String("q", "", "question to ask (omit for interactive mode)")
	topK := fs.Int("k", 0, "chunks to retrieve per question (0 = retrieval.top_k from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	serverURL := fs.String("server", "", "server URL; empty runs everything in-process")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() { printAskUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		printAskUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *serverURL != "" {
		if strings.TrimSpace(*question) == "" {
			fmt.Fprintln(os.Stderr, "-q is required with --server")
			os.Exit(1)
		}
		ans, err := askViaHTTP(*serverURL, fs.Args(), *question, *topK)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteAnswer(os.Stdout, ans, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, _, logger, debugMode := setup(*configPath, *debug)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	docs, err := loadDocuments(fs.Args(), cfg.Upload.AllowsExtension)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read documents: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	sess := components.Sessions.Create()
	report, err := sess.ProcessDocuments(ctx, docs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Processing failed: %v\n", err)
		os.Exit(1)
	}
	_ = cli.WriteReport(os.Stderr, report, cli.OutputText)

	if strings.TrimSpace(*question) != "" {
		ans, err := sess.Ask(ctx, models.AskRequest{Question: *question, TopK: *topK})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteAnswer(os.Stdout, ans, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := runREPL(ctx, sess, os.Stdin, os.Stdout, *topK, format); err != nil {
		fmt.Fprintf(os.Stderr, "Input failed: %v\n", err)
		os.Exit(1)
	}
}

// asker is the part of a session the REPL needs.
type asker interface {
	Ask(ctx context.Context, req models.AskRequest) (*models.Answer, error)
}

// runREPL answers one question per input line until EOF, "exit" or "quit". Failed
// questions are reported and the loop continues.
func runREPL(ctx context.Context, s asker, in io.Reader, out io.Writer, topK int, format cli.OutputFormat) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			fmt.Fprint(out, "> ")
			continue
		case "exit", "quit":
			return nil
		}
		ans, err := s.Ask(ctx, models.AskRequest{Question: line, TopK: topK})
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		} else if err := cli.WriteAnswer(out, ans, format); err != nil {
			return err
		}
		fmt.Fprint(out, "\n> ")
	}
	return scanner.Err()
}

// loadDocuments reads each path; directories contribute their allowed files.
func loadDocuments(paths []string, allow func(ext string) bool) ([]*models.Document, error) {
	var docs []*models.Document
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			dirDocs, err := extract.ReadDir(p, allow)
			if err != nil {
				return nil, err
			}
			docs = append(docs, dirDocs...)
			continue
		}
		if !allow(filepath.Ext(p)) {
			return nil, fmt.Errorf("file type not allowed: %s", p)
		}
		doc, err := extract.ReadFile(p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func askViaHTTP(serverURL string, paths []string, question string, topK int) (*models.Answer, error) {
	var created struct {
		ID string `json:"id"`
	}
	if err := doJSON(http.MethodPost, serverURL+"/api/v1/sessions", "", nil, &created); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	base := serverURL + "/api/v1/sessions/" + created.ID

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		fw, err := mw.CreateFormFile("files", filepath.Base(p))
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(content); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	if err := doJSON(http.MethodPost, base+"/documents", mw.FormDataContentType(), &body, nil); err != nil {
		return nil, fmt.Errorf("upload documents: %w", err)
	}

	reqBody, err := json.Marshal(models.AskRequest{Question: question, TopK: topK})
	if err != nil {
		return nil, err
	}
	var ans models.Answer
	if err := doJSON(http.MethodPost, base+"/messages", "application/json", bytes.NewReader(reqBody), &ans); err != nil {
		return nil, err
	}
	return &ans, nil
}

func doJSON(method, url, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func runChunk() {
	fs := flag.NewFlagSet("chunk", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	size := fs.Int("size", 0, "chunk size in characters (0 = chunking.chunk_size from config)")
	overlap := fs.Int("overlap", -1, "chunk overlap in characters (-1 = chunking.chunk_overlap from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: docuchat chunk [flags] <file>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	chunks, err := chunkFile(fs.Arg(0), cfg.Chunking, *size, *overlap)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chunking failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteChunks(os.Stdout, chunks, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// chunkFile extracts path and splits it. size <= 0 and overlap < 0 fall back to cfg.
func chunkFile(path string, cfg config.ChunkingConfig, size, overlap int) ([]*models.Chunk, error) {
	if size <= 0 {
		size = cfg.ChunkSize
	}
	if overlap < 0 {
		overlap = cfg.OverlapOrDefault()
	}
	ch, err := chunker.New(size, overlap)
	if err != nil {
		return nil, err
	}
	doc, err := extract.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text, err := extract.NewExtractor().Extract(doc)
	if err != nil {
		return nil, err
	}
	return ch.Chunk(doc.Source, utils.CleanText(text)), nil
}

// Components holds initialized services.
type Components struct {
	Embedder   embedding.Embedder
	Model      chat.Model
	Transcript transcript.Store
	Sessions   *session.Manager
}

func (c *Components) Close() {
	if c.Sessions != nil {
		_ = c.Sessions.Close(context.Background())
	}
	if c.Transcript != nil {
		_ = c.Transcript.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		// Fall back to the hashing embedder when the local model cannot load (e.g. no onnxruntime).
		if cfg.Embedding.Provider != "onnx" {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		logger.Warn("onnx embedder unavailable, falling back to hashing", zap.Error(err))
		fallback := cfg.Embedding
		fallback.Provider = "hashing"
		if embedder, err = embedding.New(fallback); err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
	}

	model, err := chat.New(cfg.Chat)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize chat model: %w", err)
	}

	store, err := transcript.New(cfg.Transcript)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize transcript store: %w", err)
	}

	ch, err := chunker.New(cfg.Chunking.ChunkSize, cfg.Chunking.OverlapOrDefault())
	if err != nil {
		_ = embedder.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize chunker: %w", err)
	}

	vecOpts := vector.Options{IndexType: cfg.Vector.IndexType, Metric: cfg.Vector.Metric}
	if vector.IndexType(cfg.Vector.IndexType) == vector.IndexTypeFAISS && !vector.IsFAISSAvailable() {
		logger.Warn("FAISS not available in this build, falling back to memory",
			zap.String("requested_type", cfg.Vector.IndexType))
		vecOpts.IndexType = string(vector.IndexTypeMemory)
	}
	logger.Info("vector index configured",
		zap.String("type", vecOpts.IndexType),
		zap.String("metric", vecOpts.Metric),
		zap.Bool("faiss_available", vector.IsFAISSAvailable()))

	var (
		builderOpts  []retrieval.BuilderOption
		composerOpts []answer.Option
	)
	if debug {
		builderOpts = append(builderOpts, retrieval.WithBuilderLogger(logger))
		composerOpts = append(composerOpts, answer.WithLogger(logger))
	}
	components := session.Components{
		Extractor:  extract.NewExtractor(),
		Chunker:    ch,
		Builder:    retrieval.NewBuilder(embedder, vecOpts, builderOpts...),
		Retriever:  retrieval.NewRetriever(embedder),
		Composer:   answer.NewComposer(model, composerOpts...),
		Transcript: store,
	}
	sessions := session.NewManager(components,
		session.WithLogger(logger),
		session.WithPolicy(session.ExtractPolicy(cfg.Upload.OnExtractError)),
		session.WithTopK(cfg.Retrieval.TopK),
	)

	return &Components{
		Embedder:   embedder,
		Model:      model,
		Transcript: store,
		Sessions:   sessions,
	}, nil
}

func printUsage() {
	fmt.Println(`docuchat - Chat with your documents

Usage:
  docuchat serve [flags]                 Start the HTTP server
  docuchat ask [flags] <file|dir>...     Process documents and answer questions
  docuchat chunk [flags] <file>          Show how a document is split into chunks
  docuchat version                       Show version
  docuchat help                          Show this help

Serve Flags:
  --config string    Config file path (default: /usr/local/etc/docuchat/config.yaml)
  --debug            Enable debug logging

Ask Flags:
  --config string    Config file path
  -q string          Question (omit for interactive mode)
  -k int             Chunks retrieved per question (default from config)
  --output string    Output format: text or json (default: text)
  --server string    Server URL; when set, documents are uploaded to a running server

Chunk Flags:
  --config string    Config file path
  --size int         Chunk size in characters (default from config)
  --overlap int      Chunk overlap in characters (default from config)
  --output string    Output format: text or json (default: text)

API keys are read from the environment variable named by chat.api_key_env
(GOOGLE_API_KEY for gemini); a .env file in the working directory is loaded first.

Examples:
  docuchat serve
  docuchat ask notes.pdf -q "What treats diabetes?"
  docuchat ask ./docs
  docuchat chunk --size 500 --overlap 100 report.docx`)
}
