// Package openai implements the tts Synthesizer using OpenAI's speech API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Bdento-1/coach-dual-cloud-render/internal/config"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/tts"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini-tts"
	defaultVoice   = "alloy"

	minSpeed = 0.25
	maxSpeed = 4.0

	// maxAudioBytes bounds the response body read into memory.
	maxAudioBytes = 32 << 20
)

// Synthesizer calls POST /audio/speech.
type Synthesizer struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Synthesizer) { s.client = c }
}

// New creates an OpenAI synthesizer from config.
func New(cfg config.TTSProviderConfig, opts ...Option) *Synthesizer {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	s := &Synthesizer{
		apiKey:  cfg.APIKey,
		baseURL: base,
		model:   model,
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Name returns the backend identifier.
func (s *Synthesizer) Name() string { return "openai" }

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed,omitempty"`
}

// Synthesize converts text to MP3 audio.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.Opts) (*tts.Result, error) {
	if text == "" {
		return nil, tts.ErrEmptyText
	}
	voice := opts.Voice
	if voice == "" {
		voice = defaultVoice
	}

	bodyBytes, err := json.Marshal(speechRequest{
		Model:          s.model,
		Input:          text,
		Voice:          voice,
		ResponseFormat: "mp3",
		Speed:          clampSpeed(opts.Rate),
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/audio/speech", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating speech request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, tts.NewSynthesisError("openai", "", "request failed", err, true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, handleError(resp)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, tts.NewSynthesisError("openai", "", "reading audio", err, true)
	}
	if len(audio) == 0 {
		return nil, tts.NewSynthesisError("openai", "", "empty audio", nil, true)
	}
	return &tts.Result{Audio: audio, ContentType: tts.MIMEMpeg, Provider: "openai", Voice: voice}, nil
}

// Close is a no-op for the OpenAI synthesizer.
func (s *Synthesizer) Close() error { return nil }

func clampSpeed(rate float64) float64 {
	switch {
	case rate <= 0:
		return 0
	case rate < minSpeed:
		return minSpeed
	case rate > maxSpeed:
		return maxSpeed
	}
	return rate
}

func handleError(resp *http.Response) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}

	var cause error
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		cause = tts.ErrRateLimited
	case http.StatusBadRequest:
		cause = fmt.Errorf("bad request")
	}
	retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
	return tts.NewSynthesisError("openai", strconv.Itoa(resp.StatusCode), msg, cause, retryable)
}
