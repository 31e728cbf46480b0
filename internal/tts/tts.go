// Package tts defines the interface for text-to-speech synthesis.
//
// Voicecoach speaks the filtered summary with a hosted synthesis provider.
// Audio is a best-effort addition: a synthesis failure never fails the
// request, the caller keeps the text and marks the response partial.
package tts

import (
	"context"
	"errors"
)

// MIMEMpeg is the content type every backend produces.
const MIMEMpeg = "audio/mpeg"

// Opts controls synthesis behavior.
type Opts struct {
	// Voice is the provider voice identity.
	Voice string

	// Rate is the speaking rate, 1.0 being the provider default.
	Rate float64
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Name returns the backend identifier (e.g., "openai", "elevenlabs").
	Name() string

	// Synthesize generates MP3 audio from the given text.
	Synthesize(ctx context.Context, text string, opts Opts) (*Result, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

// Result holds the output of TTS synthesis. The audio buffer is owned by the
// caller only until the response is encoded.
type Result struct {
	// Audio is the encoded audio.
	Audio []byte

	// ContentType is the MIME type of the audio (e.g., "audio/mpeg").
	ContentType string

	// Provider is the backend that produced the audio.
	Provider string

	// Voice is the voice actually used, which differs from the requested one
	// after a fallback.
	Voice string
}

// Common TTS errors.
var (
	// ErrEmptyText is returned when attempting to synthesize empty text.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrSynthesisFailed is wrapped by every *SynthesisError.
	ErrSynthesisFailed = errors.New("speech synthesis failed")

	// ErrRateLimited is returned when API rate limits are exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidVoice is returned when the requested voice is not available.
	ErrInvalidVoice = errors.New("invalid or unsupported voice")
)

// SynthesisError provides detailed error information from TTS providers.
type SynthesisError struct {
	// Provider is the TTS provider that returned the error.
	Provider string

	// Code is the provider-specific error code or HTTP status.
	Code string

	// Message is the error message.
	Message string

	// Cause is the underlying error (if any).
	Cause error

	// Retryable indicates if the error is transient and retry may succeed.
	Retryable bool
}

// Error implements the error interface.
func (e *SynthesisError) Error() string {
	if e.Cause != nil {
		return e.Provider + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Provider + ": " + e.Message
}

// Unwrap exposes ErrSynthesisFailed and the underlying error.
func (e *SynthesisError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrSynthesisFailed}
	}
	return []error{ErrSynthesisFailed, e.Cause}
}

// NewSynthesisError creates a new SynthesisError.
func NewSynthesisError(provider, code, message string, cause error, retryable bool) *SynthesisError {
	return &SynthesisError{
		Provider:  provider,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: retryable,
	}
}
