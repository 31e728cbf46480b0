// Voicecoach is a guarded market-commentary daemon. It accepts chart alerts
// over webhooks, generates policy-filtered commentary and speaks it with one
// or two voice personas.
//
// Usage:
//
//	voicecoach [flags]
//	voicecoach --config /path/to/voicecoach.yaml
//
//	@title			voicecoach API
//	@version		1.0
//	@description	Guarded market-commentary voice pipeline.
//	@BasePath		/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Bdento-1/coach-dual-cloud-render/internal/config"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/health"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/metrics"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/pipeline"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/policy"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/telemetry"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/textgen"
	localtext "github.com/Bdento-1/coach-dual-cloud-render/internal/textgen/local"
	openaitext "github.com/Bdento-1/coach-dual-cloud-render/internal/textgen/openai"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/transport"
	grpctransport "github.com/Bdento-1/coach-dual-cloud-render/internal/transport/grpc"
	httptransport "github.com/Bdento-1/coach-dual-cloud-render/internal/transport/http"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/tts"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/tts/elevenlabs"
	openaitts "github.com/Bdento-1/coach-dual-cloud-render/internal/tts/openai"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/voice"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/worker"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configFile := flag.String("config", "", "path to config file (e.g. configs/voicecoach.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("voicecoach %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	config.SetupLogging(cfg.Logging)
	slog.Info("voicecoach starting", "version", version)

	if err := run(cfg); err != nil {
		slog.Error("voicecoach failed", "error", err)
		os.Exit(1)
	}
	slog.Info("voicecoach stopped")
}

func run(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Error("tracer shutdown", "error", err)
		}
	}()

	m := metrics.New()

	backend, err := newTextBackend(cfg.TextGen)
	if err != nil {
		return err
	}
	gen := textgen.NewClient(backend, cfg.TextGen.Retry.Policy("textgen"), cfg.TextGen.Timeout,
		textgen.WithRateLimit(cfg.TextGen.RequestsPerSecond),
		textgen.WithMetrics(m),
	)
	defer gen.Close()
	slog.Info("text generation backend", "backend", backend.Name(), "model", backend.Model())

	synth, err := newFallback(cfg.TTS, m)
	if err != nil {
		return err
	}
	defer synth.Close()

	p := pipeline.New(gen, synth,
		policy.New(cfg.Policy.Options()),
		voice.NewSelector(cfg.Voice),
		pipeline.Options{Namespace: cfg.Safety.Namespace, Locale: cfg.Voice.Locale, Metrics: m},
	)

	pool, err := worker.New(cfg.Server.Workers)
	if err != nil {
		return err
	}
	defer pool.Release()

	var transports []transport.Transport
	if cfg.Transports.HTTP.Enabled {
		transports = append(transports, httptransport.New(httptransport.Options{
			Port:         cfg.Transports.HTTP.Port,
			Token:        cfg.Server.WebhookToken,
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
			Pool:         pool,
			Metrics:      m,
		}))
	}
	if cfg.Transports.GRPC.Enabled {
		transports = append(transports, grpctransport.New(grpctransport.Options{
			Port:  cfg.Transports.GRPC.Port,
			Token: cfg.Server.WebhookToken,
			Pool:  pool,
		}))
	}
	if len(transports) == 0 {
		return fmt.Errorf("no transports enabled, enable at least one in config")
	}

	healthServer := health.New(cfg.Server.HealthPort, cfg.Snapshot(), m.Handler())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return healthServer.ListenAndServe(gctx) })
	for _, t := range transports {
		g.Go(func() error {
			slog.Info("starting transport", "name", t.Name())
			if err := t.Listen(gctx, p); err != nil {
				return fmt.Errorf("transport %s: %w", t.Name(), err)
			}
			return nil
		})
	}

	healthServer.SetReady(true)
	slog.Info("voicecoach ready",
		"transports", len(transports),
		"health_port", cfg.Server.HealthPort,
		"workers", pool.Cap())

	<-gctx.Done()
	slog.Info("shutdown signal received, draining...")
	healthServer.SetReady(false)

	for _, t := range transports {
		if err := t.Close(); err != nil {
			slog.Error("transport close error", "name", t.Name(), "error", err)
		}
	}
	return g.Wait()
}

func newTextBackend(cfg config.TextGenConfig) (textgen.Backend, error) {
	switch cfg.Backend {
	case "openai":
		return openaitext.New(cfg.OpenAI), nil
	case "local":
		return localtext.New(cfg.Local), nil
	default:
		return nil, fmt.Errorf("unknown text generation backend %q", cfg.Backend)
	}
}

func newSynthesizer(cfg config.TTSProviderConfig) (tts.Synthesizer, error) {
	switch cfg.Backend {
	case "openai":
		return openaitts.New(cfg), nil
	case "elevenlabs":
		return elevenlabs.New(cfg), nil
	default:
		return nil, fmt.Errorf("unknown TTS backend %q", cfg.Backend)
	}
}

// newFallback builds the primary synthesizer and, when configured, the
// secondary it falls back to.
func newFallback(cfg config.TTSConfig, m *metrics.Metrics) (*tts.Fallback, error) {
	primary, err := newSynthesizer(cfg.Primary)
	if err != nil {
		return nil, err
	}
	opts := []tts.FallbackOption{tts.WithMetrics(m)}
	if cfg.Fallback.Enabled() {
		secondary, err := newSynthesizer(cfg.Fallback.TTSProviderConfig)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tts.WithSecondary(secondary, cfg.Fallback.DefaultVoice, cfg.Fallback.VoiceMap))
		slog.Info("TTS fallback enabled", "primary", primary.Name(), "secondary", secondary.Name())
	}
	return tts.NewFallback(primary, cfg.Retry.Policy("tts"), cfg.Timeout, opts...), nil
}
