// Package config provides configuration loading and structs for the docuchat server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Vector     VectorConfig     `yaml:"vector"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Chat       ChatConfig       `yaml:"chat"`
	Upload     UploadConfig     `yaml:"upload"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ChunkingConfig holds chunk size and overlap, both in characters.
type ChunkingConfig struct {
	ChunkSize    int  `yaml:"chunk_size"`
	ChunkOverlap *int `yaml:"chunk_overlap"`
}

// OverlapOrDefault returns the configured overlap; defaults to 200 when unset.
func (c *ChunkingConfig) OverlapOrDefault() int {
	if c.ChunkOverlap != nil {
		return *c.ChunkOverlap
	}
	return 200
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"` // hashing, onnx, ollama, openai
	ModelPath   string `yaml:"model_path"`
	Dimensions  int    `yaml:"dimensions"`
	MaxTokens   int    `yaml:"max_tokens"`
	CacheSize   int    `yaml:"cache_size"`
	BaseURL     string `yaml:"base_url"`
	Model       string `yaml:"model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// VectorConfig selects the similarity structure.
type VectorConfig struct {
	IndexType string `yaml:"index_type"` // memory, faiss
	Metric    string `yaml:"metric"`     // cosine, l2
}

// RetrievalConfig holds query-time settings.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// ChatConfig selects and configures the chat model that writes answers.
type ChatConfig struct {
	Provider    string   `yaml:"provider"` // gemini, openai, ollama
	Model       string   `yaml:"model"`
	BaseURL     string   `yaml:"base_url"`
	APIKeyEnv   string   `yaml:"api_key_env"`
	Temperature *float64 `yaml:"temperature"`
	TimeoutSecs int      `yaml:"timeout_secs"`
}

// TemperatureOrDefault returns the configured temperature; defaults to 0.7 when unset.
func (c *ChatConfig) TemperatureOrDefault() float64 {
	if c.Temperature != nil {
		return *c.Temperature
	}
	return 0.7
}

// UploadConfig bounds document batches and sets the extraction failure policy.
type UploadConfig struct {
	MaxFiles       int      `yaml:"max_files"`
	MaxFileBytes   int64    `yaml:"max_file_bytes"`
	Extensions     []string `yaml:"extensions"`
	OnExtractError string   `yaml:"on_extract_error"` // skip, abort
}

// AllowsExtension reports whether ext (with leading dot) may be uploaded.
func (u *UploadConfig) AllowsExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range u.Extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// TranscriptConfig selects where chat transcripts live for the lifetime of the process.
type TranscriptConfig struct {
	Driver string `yaml:"driver"` // memory, sqlite
	DSN    string `yaml:"dsn"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directory      string `yaml:"directory"`
	DebounceMillis int    `yaml:"debounce_millis"`
}

// Load reads and parses the config file at path, expands paths, applies defaults and validates.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	if cfg.Watch.Directory != "" {
		cfg.Watch.Directory = expandPath(cfg.Watch.Directory, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("invalid config: chunking.chunk_size must be positive")
	}
	if o := c.Chunking.OverlapOrDefault(); o < 0 || o >= c.Chunking.ChunkSize {
		return fmt.Errorf("invalid config: chunking.chunk_overlap must be in [0, %d)", c.Chunking.ChunkSize)
	}
	if !oneOf(c.Embedding.Provider, "hashing", "onnx", "ollama", "openai") {
		return fmt.Errorf("invalid config: unknown embedding.provider %q", c.Embedding.Provider)
	}
	if !oneOf(c.Vector.IndexType, "memory", "faiss") {
		return fmt.Errorf("invalid config: unknown vector.index_type %q", c.Vector.IndexType)
	}
	if !oneOf(c.Vector.Metric, "cosine", "l2") {
		return fmt.Errorf("invalid config: unknown vector.metric %q", c.Vector.Metric)
	}
	if !oneOf(c.Chat.Provider, "gemini", "openai", "ollama") {
		return fmt.Errorf("invalid config: unknown chat.provider %q", c.Chat.Provider)
	}
	if !oneOf(c.Upload.OnExtractError, "skip", "abort") {
		return fmt.Errorf("invalid config: upload.on_extract_error must be skip or abort, got %q", c.Upload.OnExtractError)
	}
	if !oneOf(c.Transcript.Driver, "memory", "sqlite") {
		return fmt.Errorf("invalid config: unknown transcript.driver %q", c.Transcript.Driver)
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
