// Package chat calls the language model that writes answers. Each provider turns one
// prompt into one completion; no conversation state is kept between calls.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Model turns a prompt into generated text.
type Model interface {
	Invoke(ctx context.Context, prompt string) (string, error)
	// Name identifies the provider and model, e.g. "gemini/gemini-1.5-flash".
	Name() string
}

// ModelFunc adapts a plain function to Model.
type ModelFunc func(ctx context.Context, prompt string) (string, error)

// Invoke calls f.
func (f ModelFunc) Invoke(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Name returns "func".
func (f ModelFunc) Name() string { return "func" }

// postJSON sends body as JSON and decodes a 200 response into out. Non-200 responses
// become errors that carry the status and the start of the body.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
