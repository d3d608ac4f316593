package chat

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OllamaConfig configures the Ollama chat client.
type OllamaConfig struct {
	Model       string
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
}

// Ollama calls a local Ollama server's non-streaming /api/chat endpoint.
type Ollama struct {
	model       string
	baseURL     string
	temperature float64
	client      *http.Client
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
	Error   string            `json:"error"`
}

// NewOllama returns an Ollama chat client.
func NewOllama(cfg OllamaConfig) *Ollama {
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Ollama{
		model:       cfg.Model,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: cfg.Timeout},
	}
}

// Invoke sends prompt as a single user message.
func (o *Ollama) Invoke(ctx context.Context, prompt string) (string, error) {
	body := ollamaChatRequest{
		Model:    o.model,
		Messages: []ollamaChatMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Options:  map[string]any{"temperature": o.temperature},
	}
	var resp ollamaChatResponse
	if err := postJSON(ctx, o.client, o.baseURL+"/api/chat", nil, body, &resp); err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama error: %s", resp.Error)
	}
	return resp.Message.Content, nil
}

// Name returns "ollama/<model>".
func (o *Ollama) Name() string { return "ollama/" + o.model }
