// Package pipeline implements the guarded alert-to-speech pipeline.
//
// Stages run strictly in sequence for each request: safety identifier, text
// generation, policy filter, voice selection, pacing, synthesis, aggregation.
// Every provider failure has an explicit degradation branch, so HandleAlert
// always returns a well-formed result.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Bdento-1/coach-dual-cloud-render/internal/message"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/metrics"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/policy"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/safety"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/telemetry"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/textgen"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/tts"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/voice"
)

// TextGenerator produces raw text. *textgen.Client satisfies it.
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Options holds the pipeline's static settings.
type Options struct {
	// Namespace prefixes every safety identifier.
	Namespace string

	// Locale selects the numeral spelling table ("th" or "en").
	Locale string

	Metrics *metrics.Metrics
}

// Pipeline is safe for concurrent use; it holds no per-request state.
type Pipeline struct {
	gen      TextGenerator
	synth    tts.Synthesizer
	guard    *policy.Guard
	selector *voice.Selector
	opts     Options
}

// New creates a Pipeline.
func New(gen TextGenerator, synth tts.Synthesizer, guard *policy.Guard, selector *voice.Selector, opts Options) *Pipeline {
	return &Pipeline{
		gen:      gen,
		synth:    synth,
		guard:    guard,
		selector: selector,
		opts:     opts,
	}
}

// HandleAlert runs the full pipeline for a validated alert.
func (p *Pipeline) HandleAlert(ctx context.Context, a *message.Alert) *message.Result {
	start := time.Now()
	defer p.opts.Metrics.Track()()

	requestID := message.RequestID(ctx)
	safetyID := safety.Generate(p.opts.Namespace, a.Canonical())
	logger := slog.With("request_id", requestID, "safety_id", safetyID, "symbol", a.Symbol, "tf", a.Timeframe)

	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.alert", trace.WithAttributes(
		attribute.String("voicecoach.request_id", requestID),
		attribute.String("voicecoach.safety_id", safetyID),
		attribute.String("voicecoach.mode", string(a.Mode)),
	))
	defer span.End()
	logger.Info("alert received", "mode", a.Mode, "supplied_text", a.Text != "")

	text := p.text(ctx, logger, a)
	p.opts.Metrics.ObserveText(string(text.source), text.filtered)

	var renditions []rendition
	for _, slot := range slots(a.Mode) {
		sel := p.selection(a, slot)
		renditions = append(renditions, p.speak(ctx, logger, slot, sel, text.text))
	}

	res := aggregate(requestID, safetyID, text, renditions)
	span.SetAttributes(
		attribute.Bool("voicecoach.ok", res.OK),
		attribute.String("voicecoach.text_source", string(text.source)),
	)

	outcome := "ok"
	if !res.OK {
		outcome = "partial"
	}
	p.opts.Metrics.ObserveRequest(outcome, time.Since(start))
	logger.Info("alert complete", "ok", res.OK, "partial", res.Partial, "text_source", text.source,
		"filtered", text.filtered, "duration", time.Since(start))
	return res
}

// text produces the final text: supplied or generated, falling back to the
// template, then scrubbed, disclaimer-terminated and capped.
func (p *Pipeline) text(ctx context.Context, logger *slog.Logger, a *message.Alert) textOutcome {
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.text")
	defer span.End()

	out := textOutcome{text: a.Text, source: message.TextFromSupplied}
	if out.text == "" {
		generated, err := p.gen.Generate(ctx, p.guard.Instruction(), textgen.Prompt(a))
		if err != nil {
			logger.Warn("text generation failed, using template", "error", err)
			span.RecordError(err)
			out = textOutcome{text: textgen.Template(a, p.guard.Disclaimer()), source: message.TextFromTemplate}
		} else {
			out = textOutcome{text: generated, source: message.TextFromModel}
		}
	}

	out.text, out.filtered = p.guard.Apply(out.text)
	if out.filtered {
		logger.Warn("policy filter replaced text", "source", out.source)
	}
	return out
}

// slots lists the renditions a mode asks for, gate before coach.
func slots(mode message.Mode) []string {
	switch mode {
	case message.ModeGate:
		return []string{slotGate}
	case message.ModeCoach:
		return []string{slotCoach}
	case message.ModeBoth:
		return []string{slotGate, slotCoach}
	default:
		return []string{""}
	}
}

// selection maps a slot to a voice: gate is the alert persona, coach the
// narrative persona, the unslotted rendition goes through the full selector.
func (p *Pipeline) selection(a *message.Alert, slot string) voice.Selection {
	switch slot {
	case slotGate:
		return p.selector.Persona(voice.PersonaAlert, a.Fast)
	case slotCoach:
		return p.selector.Persona(voice.PersonaNarrative, a.Fast)
	default:
		return p.selector.Select(a)
	}
}

func (p *Pipeline) speak(ctx context.Context, logger *slog.Logger, slot string, sel voice.Selection, text string) rendition {
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.synthesize", trace.WithAttributes(
		attribute.String("voicecoach.slot", slot),
		attribute.String("voicecoach.voice", sel.Voice),
	))
	defer span.End()

	prepared := voice.Prepare(text, sel.Rate, p.opts.Locale)
	res, err := p.synth.Synthesize(ctx, prepared, tts.Opts{Voice: sel.Voice, Rate: sel.Rate})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("TTS synthesis failed, continuing without audio", "slot", slot, "voice", sel.Voice, "error", err)
		return rendition{slot: slot, sel: sel, err: err}
	}
	logger.Info("TTS synthesis complete", "slot", slot, "voice", res.Voice, "provider", res.Provider, "audio_bytes", len(res.Audio))
	return rendition{slot: slot, sel: sel, res: res}
}

// Speak synthesizes caller-supplied text. The text is scrubbed and capped
// first; no disclaimer is appended.
func (p *Pipeline) Speak(ctx context.Context, req *message.SpeakRequest) (*tts.Result, error) {
	text, filtered := p.guard.Scrub(req.Text)
	text = p.guard.Truncate(text)
	sel := p.selector.ForVoice(req.Voice)

	slog.Info("speak request", "request_id", message.RequestID(ctx), "voice", sel.Voice, "filtered", filtered)
	res, err := p.synth.Synthesize(ctx, voice.Prepare(text, sel.Rate, p.opts.Locale), tts.Opts{Voice: sel.Voice, Rate: sel.Rate})
	if err != nil {
		return nil, fmt.Errorf("speak: %w", err)
	}
	return res, nil
}
