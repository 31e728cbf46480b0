// Package elevenlabs implements the tts Synthesizer using ElevenLabs'
// text-to-speech API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Bdento-1/coach-dual-cloud-render/internal/config"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/tts"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io/v1"
	defaultModel   = "eleven_multilingual_v2"

	// DefaultVoice is Rachel.
	DefaultVoice = "21m00Tcm4TlvDq8ikWAM"

	outputFormat = "mp3_44100_128"

	defaultStability       = 0.5
	defaultSimilarityBoost = 0.75

	// ElevenLabs accepts speed in [0.7, 1.2].
	minSpeed = 0.7
	maxSpeed = 1.2

	maxAudioBytes = 32 << 20
)

// Synthesizer calls POST /text-to-speech/{voice_id}.
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

// New creates an ElevenLabs synthesizer from config.
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
func (s *Synthesizer) Name() string { return "elevenlabs" }

type request struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id,omitempty"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// Synthesize converts text to MP3 audio.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, opts tts.Opts) (*tts.Result, error) {
	if text == "" {
		return nil, tts.ErrEmptyText
	}
	voice := opts.Voice
	if voice == "" {
		voice = DefaultVoice
	}

	bodyBytes, err := json.Marshal(request{
		Text:    text,
		ModelID: s.model,
		VoiceSettings: &voiceSettings{
			Stability:       defaultStability,
			SimilarityBoost: defaultSimilarityBoost,
			Speed:           clampSpeed(opts.Rate),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s", s.baseURL, url.PathEscape(voice), outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", tts.MIMEMpeg)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, tts.NewSynthesisError("elevenlabs", "", "request failed", err, true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, handleError(resp)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, tts.NewSynthesisError("elevenlabs", "", "reading audio", err, true)
	}
	if len(audio) == 0 {
		return nil, tts.NewSynthesisError("elevenlabs", "", "empty audio", nil, true)
	}
	return &tts.Result{Audio: audio, ContentType: tts.MIMEMpeg, Provider: "elevenlabs", Voice: voice}, nil
}

// Close is a no-op for the ElevenLabs synthesizer.
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
		Detail struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"detail"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	code := strconv.Itoa(resp.StatusCode)
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &errResp) == nil && errResp.Detail.Message != "" {
		msg = errResp.Detail.Message
		if errResp.Detail.Status != "" {
			code = errResp.Detail.Status
		}
	}

	var cause error
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		cause = tts.ErrRateLimited
	case http.StatusUnauthorized:
		cause = fmt.Errorf("invalid API key")
	case http.StatusNotFound:
		cause = tts.ErrInvalidVoice
	}
	retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
	return tts.NewSynthesisError("elevenlabs", code, msg, cause, retryable)
}
