// Package textgen produces market-structure summaries with a hosted or
// self-hosted language model.
//
// A Backend makes exactly one provider call. Client wraps a Backend with the
// per-attempt timeout, rate limiting and the bounded retry policy. Voicecoach
// ships with two backends: OpenAI (cloud) and Local (Ollama or any
// OpenAI-compatible server).
package textgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/Bdento-1/coach-dual-cloud-render/internal/metrics"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/retry"
)

// Backend is one text-generation provider.
type Backend interface {
	// Name returns the backend identifier (e.g., "openai", "local").
	Name() string

	// Model returns the model the backend calls.
	Model() string

	// Complete sends one system instruction and one user prompt and returns
	// the model's text. An empty string is a valid answer.
	Complete(ctx context.Context, system, prompt string) (string, error)

	// Close releases any resources held by the backend.
	Close() error
}

// ErrUpstream is wrapped by every error Generate returns.
var ErrUpstream = errors.New("text generation upstream failure")

// UpstreamError reports that every attempt against the backend failed.
type UpstreamError struct {
	Backend  string
	Attempts int
	Err      error // last underlying error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("textgen %s: %d attempt(s) failed: %v", e.Backend, e.Attempts, e.Err)
}

func (e *UpstreamError) Unwrap() []error { return []error{ErrUpstream, e.Err} }

// Client calls a Backend under a retry policy.
type Client struct {
	backend Backend
	policy  retry.Policy
	timeout time.Duration
	limiter *rate.Limiter
	sleep   retry.Sleeper
	metrics *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit waits on a token bucket of rps requests per second before every
// attempt. rps <= 0 disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithSleeper replaces the backoff sleep, for tests.
func WithSleeper(s retry.Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

// WithMetrics records every attempt on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a Client. timeout bounds each attempt separately.
func NewClient(b Backend, p retry.Policy, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		backend: b,
		policy:  p,
		timeout: timeout,
		sleep:   retry.Sleep,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Backend returns the wrapped backend.
func (c *Client) Backend() Backend { return c.backend }

// Generate runs up to MaxAttempts backend calls and returns the first
// successful answer verbatim. After the last failure it returns an
// *UpstreamError carrying the last cause.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	text, err := retry.Do(ctx, c.policy, c.sleep, func(ctx context.Context, attempt int) (string, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("rate limiter: %w", err)
			}
		}

		attemptCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		start := time.Now()
		out, err := c.backend.Complete(attemptCtx, system, prompt)
		c.metrics.ObserveProvider(metrics.KindTextGen, c.backend.Name(), time.Since(start), err)
		if err != nil {
			return "", err
		}
		slog.Debug("text generated", "backend", c.backend.Name(), "attempt", attempt, "length", len(out))
		return out, nil
	})
	if err != nil {
		var rerr *retry.Error
		if errors.As(err, &rerr) {
			return "", &UpstreamError{Backend: c.backend.Name(), Attempts: rerr.Attempts, Err: rerr.Err}
		}
		return "", &UpstreamError{Backend: c.backend.Name(), Err: err}
	}
	return text, nil
}

// Close closes the backend.
func (c *Client) Close() error { return c.backend.Close() }
