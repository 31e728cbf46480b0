// Package retry implements bounded exponential backoff for outbound provider calls.
//
// A Policy describes how many attempts are allowed and how the delay between
// them grows. Do runs an operation under a Policy and reports the last error
// once every attempt has failed.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Multiplier bounds accepted by Validate.
const (
	MinMultiplier = 1.8
	MaxMultiplier = 2.0
)

// ErrExhausted is wrapped by the error Do returns when no attempt succeeded.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy configures attempts and backoff.
type Policy struct {
	// Name labels log lines (e.g. "textgen", "tts").
	Name string

	// MaxAttempts is the total number of calls, including the first one.
	MaxAttempts int

	// BaseDelay is the sleep after the first failed attempt.
	BaseDelay time.Duration

	// Multiplier grows the delay after every failed attempt.
	Multiplier float64

	// MaxDelay caps the delay. Zero means uncapped.
	MaxDelay time.Duration
}

// Validate reports whether the policy can be used.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry %q: max_attempts must be >= 1, got %d", p.Name, p.MaxAttempts)
	}
	if p.BaseDelay < 0 {
		return fmt.Errorf("retry %q: base_delay must not be negative", p.Name)
	}
	if p.Multiplier < MinMultiplier || p.Multiplier > MaxMultiplier {
		return fmt.Errorf("retry %q: multiplier must be within [%.1f, %.1f], got %g",
			p.Name, MinMultiplier, MaxMultiplier, p.Multiplier)
	}
	if p.MaxDelay < 0 {
		return fmt.Errorf("retry %q: max_delay must not be negative", p.Name)
	}
	return nil
}

// Delays returns the sleep durations between consecutive attempts.
// The slice has MaxAttempts-1 entries, is non-decreasing and never exceeds MaxDelay.
func (p Policy) Delays() []time.Duration {
	if p.MaxAttempts <= 1 {
		return nil
	}
	out := make([]time.Duration, 0, p.MaxAttempts-1)
	d := p.BaseDelay
	for i := 1; i < p.MaxAttempts; i++ {
		out = append(out, p.clamp(d))
		d = p.clamp(grow(d, p.Multiplier))
	}
	return out
}

// grow multiplies d, saturating at the largest Duration.
func grow(d time.Duration, m float64) time.Duration {
	next := float64(d) * m
	if next >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(next)
}

func (p Policy) clamp(d time.Duration) time.Duration {
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// permanentError marks a failure that another attempt cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do stops after the current attempt.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Error is returned by Do after the last attempt failed.
type Error struct {
	Policy   string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %d attempt(s) failed: %v", e.Policy, e.Attempts, e.Err)
}

// Unwrap exposes both the exhaustion sentinel and the last underlying error.
func (e *Error) Unwrap() []error { return []error{ErrExhausted, e.Err} }

// Do calls fn until it succeeds or the policy is exhausted. attempt is 1-based.
// A nil sleep uses Sleep. A successful call returns immediately, whatever its value.
// An error wrapped with Permanent ends the loop without further attempts.
func Do[T any](ctx context.Context, p Policy, sleep Sleeper, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	if sleep == nil {
		sleep = Sleep
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delays := p.Delays()

	var (
		zero    T
		lastErr error
		made    int
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		made = attempt
		v, err := fn(ctx, attempt)
		if err == nil {
			return v, nil
		}
		lastErr = err
		slog.Warn("provider call failed",
			"policy", p.Name, "attempt", attempt, "max_attempts", attempts, "error", err)

		var perm *permanentError
		if errors.As(err, &perm) {
			lastErr = perm.err
			break
		}
		if attempt == attempts {
			break
		}
		if serr := sleep(ctx, delays[attempt-1]); serr != nil {
			lastErr = errors.Join(lastErr, serr)
			break
		}
	}
	return zero, &Error{Policy: p.Name, Attempts: made, Err: lastErr}
}
