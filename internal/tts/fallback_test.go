package tts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bdento-1/coach-dual-cloud-render/internal/retry"
)

type fakeSynth struct {
	name   string
	err    error
	calls  int
	voices []string
}

func (f *fakeSynth) Name() string { return f.name }
func (f *fakeSynth) Close() error { return nil }

func (f *fakeSynth) Synthesize(_ context.Context, _ string, opts Opts) (*Result, error) {
	f.calls++
	f.voices = append(f.voices, opts.Voice)
	if f.err != nil {
		return nil, f.err
	}
	return &Result{Audio: []byte("mp3:" + f.name), ContentType: MIMEMpeg}, nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func policy(attempts int) retry.Policy {
	return retry.Policy{Name: "tts", MaxAttempts: attempts, BaseDelay: time.Millisecond, Multiplier: 2}
}

func TestFallback_PrimarySucceeds(t *testing.T) {
	primary := &fakeSynth{name: "openai"}
	secondary := &fakeSynth{name: "elevenlabs"}
	f := NewFallback(primary, policy(1), time.Second, WithSecondary(secondary, "rachel", nil))

	res, err := f.Synthesize(context.Background(), "สวัสดี", Opts{Voice: "alloy", Rate: 1})
	require.NoError(t, err)
	assert.Equal(t, "openai", res.Provider)
	assert.Equal(t, "alloy", res.Voice)
	assert.Equal(t, 0, secondary.calls)
}

func TestFallback_SecondaryCalledOnceWithMappedVoice(t *testing.T) {
	primary := &fakeSynth{name: "openai", err: errors.New("500")}
	secondary := &fakeSynth{name: "elevenlabs"}
	f := NewFallback(primary, policy(2), time.Second,
		WithSleeper(noSleep),
		WithSecondary(secondary, "rachel", map[string]string{"Verse": "antoni"}))

	res, err := f.Synthesize(context.Background(), "text", Opts{Voice: "verse", Rate: 1.05})
	require.NoError(t, err)
	assert.Equal(t, "elevenlabs", res.Provider)
	assert.Equal(t, "antoni", res.Voice)
	assert.Equal(t, 2, primary.calls)
	assert.Equal(t, 1, secondary.calls)

	_, err = f.Synthesize(context.Background(), "text", Opts{Voice: "alloy"})
	require.NoError(t, err)
	assert.Equal(t, []string{"antoni", "rachel"}, secondary.voices)
}

func TestFallback_BothFail(t *testing.T) {
	primary := &fakeSynth{name: "openai", err: ErrRateLimited}
	secondary := &fakeSynth{name: "elevenlabs", err: ErrInvalidVoice}
	f := NewFallback(primary, policy(1), time.Second, WithSecondary(secondary, "rachel", nil))

	_, err := f.Synthesize(context.Background(), "text", Opts{Voice: "alloy"})
	require.Error(t, err)

	var serr *SynthesisError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "openai+elevenlabs", serr.Provider)
	assert.ErrorIs(t, err, ErrSynthesisFailed)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.ErrorIs(t, err, ErrInvalidVoice)
	assert.Equal(t, 1, secondary.calls)
}

func TestFallback_NoSecondary(t *testing.T) {
	primary := &fakeSynth{name: "openai", err: errors.New("down")}
	f := NewFallback(primary, policy(1), time.Second)

	_, err := f.Synthesize(context.Background(), "text", Opts{})
	assert.ErrorIs(t, err, ErrSynthesisFailed)
	assert.Equal(t, 1, primary.calls)
}

func TestFallback_EmptyTextMakesNoCalls(t *testing.T) {
	primary := &fakeSynth{name: "openai"}
	f := NewFallback(primary, policy(3), time.Second)

	_, err := f.Synthesize(context.Background(), "  ", Opts{})
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.ErrorIs(t, err, ErrSynthesisFailed)
	assert.Equal(t, 0, primary.calls)
}

func TestFallback_SecondaryVoice(t *testing.T) {
	f := NewFallback(&fakeSynth{name: "p"}, policy(1), 0,
		WithSecondary(&fakeSynth{name: "s"}, "rachel", map[string]string{"alloy": "bella", "nova": ""}))

	assert.Equal(t, "bella", f.SecondaryVoice("ALLOY"))
	assert.Equal(t, "rachel", f.SecondaryVoice("nova"))
	assert.Equal(t, "rachel", f.SecondaryVoice("unknown"))
}

func TestFallback_NonRetryablePrimaryGoesStraightToSecondary(t *testing.T) {
	primary := &fakeSynth{name: "openai", err: NewSynthesisError("openai", "401", "invalid api key", nil, false)}
	secondary := &fakeSynth{name: "elevenlabs"}
	f := NewFallback(primary, policy(3), time.Second,
		WithSleeper(noSleep),
		WithSecondary(secondary, "rachel", nil))

	res, err := f.Synthesize(context.Background(), "text", Opts{Voice: "alloy"})
	require.NoError(t, err)
	assert.Equal(t, "elevenlabs", res.Provider)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestFallback_RetryablePrimaryUsesEveryAttempt(t *testing.T) {
	primary := &fakeSynth{name: "openai", err: NewSynthesisError("openai", "503", "overloaded", nil, true)}
	f := NewFallback(primary, policy(3), time.Second, WithSleeper(noSleep))

	_, err := f.Synthesize(context.Background(), "text", Opts{Voice: "alloy"})
	require.Error(t, err)
	assert.Equal(t, 3, primary.calls)
}
