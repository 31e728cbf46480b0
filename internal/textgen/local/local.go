// Package local implements the textgen Backend using a self-hosted model.
//
// It supports Ollama's /api/generate and any OpenAI-compatible chat endpoint
// (e.g., Ollama, vLLM, llama.cpp server).
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Bdento-1/coach-dual-cloud-render/internal/config"
)

// Backend calls a local LLM endpoint.
type Backend struct {
	endpoint string
	model    string
	client   *http.Client
}

// Option configures a Backend.
type Option func(*Backend)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) { b.client = c }
}

// New creates a new local backend from config.
func New(cfg config.LocalConfig, opts ...Option) *Backend {
	model := cfg.Model
	if model == "" {
		model = "llama3"
	}
	b := &Backend{
		endpoint: cfg.Endpoint,
		model:    model,
		client:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return "local" }

// Model returns the model name sent to the endpoint.
func (b *Backend) Model() string { return b.model }

// Complete sends the instruction and prompt to the local endpoint. An
// endpoint ending in /api/generate gets the Ollama request shape; anything
// else gets the OpenAI chat shape.
func (b *Backend) Complete(ctx context.Context, system, prompt string) (string, error) {
	var reqBody map[string]any
	if strings.HasSuffix(b.endpoint, "/api/generate") {
		reqBody = map[string]any{
			"model":  b.model,
			"system": system,
			"prompt": prompt,
			"stream": false,
		}
	} else {
		reqBody = map[string]any{
			"model": b.model,
			"messages": []map[string]string{
				{"role": "system", "content": system},
				{"role": "user", "content": prompt},
			},
			"stream": false,
		}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("local LLM request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("local LLM failed (status %d): %s", resp.StatusCode, respBody)
	}

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading LLM response: %w", err)
	}

	content, err := extractContent(respData)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// Close is a no-op for the local backend.
func (b *Backend) Close() error { return nil }

// extractContent reads either {"choices":[{"message":{"content":...}}]} or
// Ollama's {"response":...}.
func extractContent(data []byte) (string, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Response *string `json:"response"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decoding LLM response: %w", err)
	}
	if len(resp.Choices) > 0 {
		return resp.Choices[0].Message.Content, nil
	}
	if resp.Response != nil {
		return *resp.Response, nil
	}
	return "", fmt.Errorf("unrecognized LLM response: %.200s", data)
}
