package chat

import (
	"fmt"
	"os"
	"time"

	"github.com/hyperjump/docuchat/internal/config"
	"github.com/hyperjump/docuchat/internal/models"
)

// New creates the chat model selected by cfg.Provider. Remote providers read their API
// key from the environment variable named by cfg.APIKeyEnv.
func New(cfg config.ChatConfig) (Model, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	apiKey := ""
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}
	switch cfg.Provider {
	case "gemini", "":
		if apiKey == "" {
			return nil, fmt.Errorf("gemini: no API key in $%s", cfg.APIKeyEnv)
		}
		m, err := NewGemini(GeminiConfig{
			APIKey:      apiKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.TemperatureOrDefault(),
			Timeout:     timeout,
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	case "openai":
		if apiKey == "" {
			return nil, fmt.Errorf("openai: no API key in $%s", cfg.APIKeyEnv)
		}
		m, err := NewOpenAI(OpenAIConfig{
			APIKey:      apiKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.TemperatureOrDefault(),
			Timeout:     timeout,
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	case "ollama":
		return NewOllama(OllamaConfig{
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.TemperatureOrDefault(),
			Timeout:     timeout,
		}), nil
	default:
		return nil, fmt.Errorf("%w: chat provider %q", models.ErrUnsupportedProvider, cfg.Provider)
	}
}
