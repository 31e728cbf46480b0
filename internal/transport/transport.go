// Package transport defines the interface for pluggable inbound transports.
//
// Each transport (HTTP, gRPC) authenticates the caller, decodes the request
// and hands it to a Handler. Transports never call providers themselves; an
// unauthorized or malformed request is answered before the Handler runs.
package transport

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/Bdento-1/coach-dual-cloud-render/internal/message"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/tts"
)

// Error strings returned to callers.
const (
	ErrMsgUnauthorized = "unauthorized"
	ErrMsgInternal     = "internal error"
)

// Handler processes decoded requests. *pipeline.Pipeline implements it.
type Handler interface {
	// HandleAlert runs the guarded pipeline. It always returns a result.
	HandleAlert(ctx context.Context, a *message.Alert) *message.Result

	// Speak synthesizes caller-supplied text.
	Speak(ctx context.Context, req *message.SpeakRequest) (*tts.Result, error)
}

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "grpc", "http").
	Name() string

	// Listen starts accepting requests and passes them to the handler.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, handler Handler) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}

// Authorized compares the presented token with the configured one in
// constant time. An empty configured token rejects everything.
func Authorized(expected, presented string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.TrimSpace(presented))) == 1
}
