package embedding

import (
	"fmt"
	"time"

	"github.com/hyperjump/docuchat/internal/config"
	"github.com/hyperjump/docuchat/internal/models"
)

// New creates the embedder selected by cfg.Provider, wrapped in an LRU cache when
// cfg.CacheSize is positive.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	var (
		inner Embedder
		err   error
	)
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	switch cfg.Provider {
	case "", "hashing":
		inner = NewHashingEmbedder(cfg.Dimensions)
	case "onnx":
		var e *ONNXEmbedder
		e, err = NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		inner = e
	case "ollama":
		inner = NewOllamaEmbedder(OllamaConfig{BaseURL: cfg.BaseURL, Model: cfg.Model, Timeout: timeout})
	case "openai":
		var e *OpenAIEmbedder
		e, err = NewOpenAIEmbedder(OpenAIConfig{
			BaseURL:   cfg.BaseURL,
			APIKeyEnv: cfg.APIKeyEnv,
			Model:     cfg.Model,
			Timeout:   timeout,
		})
		inner = e
	default:
		return nil, fmt.Errorf("%w: embedding provider %q", models.ErrUnsupportedProvider, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s embedder: %w", cfg.Provider, err)
	}
	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(inner, cfg.CacheSize), nil
	}
	return inner, nil
}
