// Package openai implements the textgen Backend using OpenAI's Chat
// Completions API.
package openai

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

const defaultBaseURL = "https://api.openai.com/v1"

// Backend calls the Chat Completions endpoint.
type Backend struct {
	apiKey       string
	organization string
	baseURL      string
	model        string
	client       *http.Client
}

// Option configures a Backend.
type Option func(*Backend)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) { b.client = c }
}

// New creates a new OpenAI backend from config.
func New(cfg config.OpenAITextConfig, opts ...Option) *Backend {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-5"
	}
	b := &Backend{
		apiKey:       cfg.APIKey,
		organization: cfg.Organization,
		baseURL:      base,
		model:        model,
		client:       &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return "openai" }

// Model returns the completion model.
func (b *Backend) Model() string { return b.model }

// Complete sends the instruction and prompt to the Chat Completions API.
func (b *Backend) Complete(ctx context.Context, system, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: b.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshalling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if b.organization != "" {
		req.Header.Set("OpenAI-Organization", b.organization)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("chat failed (status %d): %s", resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from chat API")
	}
	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

// Close is a no-op for the OpenAI backend.
func (b *Backend) Close() error { return nil }

// --- Internal types ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
