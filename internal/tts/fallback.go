package tts

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/Bdento-1/coach-dual-cloud-render/internal/metrics"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/retry"
)

// Fallback is a Synthesizer that tries a primary backend under a retry policy
// and then, once, an optional secondary backend.
//
// Voice identities are not portable across providers. The secondary call uses
// VoiceMap[voice] when present and DefaultVoice otherwise.
type Fallback struct {
	primary   Synthesizer
	secondary Synthesizer
	policy    retry.Policy
	timeout   time.Duration
	sleep     retry.Sleeper
	metrics   *metrics.Metrics

	voiceMap     map[string]string
	defaultVoice string
}

// FallbackOption configures a Fallback.
type FallbackOption func(*Fallback)

// WithSecondary sets the secondary backend and its voice translation.
func WithSecondary(s Synthesizer, defaultVoice string, voiceMap map[string]string) FallbackOption {
	return func(f *Fallback) {
		f.secondary = s
		f.defaultVoice = defaultVoice
		f.voiceMap = make(map[string]string, len(voiceMap))
		for k, v := range voiceMap {
			f.voiceMap[strings.ToLower(k)] = v
		}
	}
}

// WithSleeper replaces the backoff sleep, for tests.
func WithSleeper(s retry.Sleeper) FallbackOption {
	return func(f *Fallback) { f.sleep = s }
}

// WithMetrics records every provider call on m.
func WithMetrics(m *metrics.Metrics) FallbackOption {
	return func(f *Fallback) { f.metrics = m }
}

// NewFallback wraps primary. timeout bounds every single provider call.
func NewFallback(primary Synthesizer, p retry.Policy, timeout time.Duration, opts ...FallbackOption) *Fallback {
	f := &Fallback{
		primary: primary,
		policy:  p,
		timeout: timeout,
		sleep:   retry.Sleep,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Name returns the primary backend's name.
func (f *Fallback) Name() string { return f.primary.Name() }

// SecondaryVoice returns the voice the secondary backend is called with.
func (f *Fallback) SecondaryVoice(voice string) string {
	if v, ok := f.voiceMap[strings.ToLower(voice)]; ok && v != "" {
		return v
	}
	return f.defaultVoice
}

// Synthesize tries the primary, then the secondary. When both fail the error
// is a *SynthesisError joining both causes.
func (f *Fallback) Synthesize(ctx context.Context, text string, opts Opts) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, NewSynthesisError(f.primary.Name(), "", "nothing to synthesize", ErrEmptyText, false)
	}

	res, perr := retry.Do(ctx, f.policy, f.sleep, func(ctx context.Context, _ int) (*Result, error) {
		res, err := f.call(ctx, f.primary, text, opts)
		var serr *SynthesisError
		if errors.As(err, &serr) && !serr.Retryable {
			return nil, retry.Permanent(err)
		}
		return res, err
	})
	if perr == nil {
		return res, nil
	}
	if f.secondary == nil {
		return nil, NewSynthesisError(f.primary.Name(), "", "synthesis failed", perr, false)
	}

	alt := Opts{Voice: f.SecondaryVoice(opts.Voice), Rate: opts.Rate}
	slog.Warn("primary synthesis failed, trying secondary",
		"primary", f.primary.Name(), "secondary", f.secondary.Name(),
		"voice", opts.Voice, "secondary_voice", alt.Voice, "error", perr)

	res, serr := f.call(ctx, f.secondary, text, alt)
	if serr == nil {
		return res, nil
	}
	return nil, NewSynthesisError(f.primary.Name()+"+"+f.secondary.Name(), "", "all providers failed",
		errors.Join(perr, serr), false)
}

func (f *Fallback) call(ctx context.Context, s Synthesizer, text string, opts Opts) (*Result, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	start := time.Now()
	res, err := s.Synthesize(ctx, text, opts)
	f.metrics.ObserveProvider(metrics.KindTTS, s.Name(), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	if res.Provider == "" {
		res.Provider = s.Name()
	}
	if res.Voice == "" {
		res.Voice = opts.Voice
	}
	return res, nil
}

// Close closes both backends.
func (f *Fallback) Close() error {
	var errs []error
	errs = append(errs, f.primary.Close())
	if f.secondary != nil {
		errs = append(errs, f.secondary.Close())
	}
	return errors.Join(errs...)
}
