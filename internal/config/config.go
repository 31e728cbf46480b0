// Package config handles loading and validating the voicecoach configuration.
//
// Configuration is read once at startup and treated as immutable afterwards.
// Every pipeline stage receives the section it needs through its constructor.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Bdento-1/coach-dual-cloud-render/internal/policy"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/retry"
)

// Config is the root configuration for the voicecoach daemon.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Transports TransportsConfig `mapstructure:"transports"`
	TextGen    TextGenConfig    `mapstructure:"textgen"`
	TTS        TTSConfig        `mapstructure:"tts"`
	Voice      VoiceConfig      `mapstructure:"voice"`
	Policy     PolicyConfig     `mapstructure:"policy"`
	Safety     SafetyConfig     `mapstructure:"safety"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds settings shared by every transport.
type ServerConfig struct {
	HealthPort   int    `mapstructure:"health_port"`
	WebhookToken string `mapstructure:"webhook_token"`
	Workers      int    `mapstructure:"workers"`        // size of the request pool
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"` // inbound JSON body limit
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the HTTP webhook transport.
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// RetryConfig is the serialized form of a retry.Policy.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	Multiplier  float64       `mapstructure:"multiplier"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// Policy converts the section into a named retry.Policy.
func (r RetryConfig) Policy(name string) retry.Policy {
	return retry.Policy{
		Name:        name,
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   r.BaseDelay,
		Multiplier:  r.Multiplier,
		MaxDelay:    r.MaxDelay,
	}
}

// TextGenConfig selects and configures the text-generation backend.
type TextGenConfig struct {
	Backend           string           `mapstructure:"backend"` // "openai" or "local"
	Timeout           time.Duration    `mapstructure:"timeout"` // per attempt
	RequestsPerSecond float64          `mapstructure:"requests_per_second"`
	Retry             RetryConfig      `mapstructure:"retry"`
	OpenAI            OpenAITextConfig `mapstructure:"openai"`
	Local             LocalConfig      `mapstructure:"local"`
}

// OpenAITextConfig holds OpenAI Chat Completions settings.
type OpenAITextConfig struct {
	APIKey       string `mapstructure:"api_key"`
	Organization string `mapstructure:"organization"`
	BaseURL      string `mapstructure:"base_url"`
	Model        string `mapstructure:"model"`
}

// LocalConfig holds self-hosted LLM settings.
type LocalConfig struct {
	Endpoint string `mapstructure:"endpoint"` // Ollama /api/generate or OpenAI-compatible /v1/chat/completions
	Model    string `mapstructure:"model"`
}

// TTSConfig configures speech synthesis.
type TTSConfig struct {
	Timeout  time.Duration     `mapstructure:"timeout"`
	Retry    RetryConfig       `mapstructure:"retry"`
	Primary  TTSProviderConfig `mapstructure:"primary"`
	Fallback TTSFallbackConfig `mapstructure:"fallback"`
}

// TTSProviderConfig configures one synthesis backend.
type TTSProviderConfig struct {
	Backend string `mapstructure:"backend"` // "openai", "elevenlabs" or "" (disabled)
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// TTSFallbackConfig configures the secondary synthesis backend.
//
// Voice identities are not portable across providers: VoiceMap translates a
// primary voice to a secondary one, DefaultVoice covers everything unmapped.
type TTSFallbackConfig struct {
	TTSProviderConfig `mapstructure:",squash"`
	DefaultVoice      string            `mapstructure:"default_voice"`
	VoiceMap          map[string]string `mapstructure:"voice_map"`
}

// Enabled reports whether a fallback backend is configured.
func (f TTSFallbackConfig) Enabled() bool { return f.Backend != "" }

// VoiceConfig holds persona tables and pacing settings.
type VoiceConfig struct {
	Locale        string        `mapstructure:"locale"` // "th" or "en"
	Allowed       []string      `mapstructure:"allowed"`
	Narrative     PersonaConfig `mapstructure:"narrative"`
	Alert         PersonaConfig `mapstructure:"alert"`
	FastRate      float64       `mapstructure:"fast_rate"`
	AlertRoles    []string      `mapstructure:"alert_roles"`
	AlertKeywords []string      `mapstructure:"alert_keywords"`
}

// PersonaConfig binds a persona to a provider voice and speaking rate.
type PersonaConfig struct {
	Voice string  `mapstructure:"voice" json:"voice"`
	Rate  float64 `mapstructure:"rate" json:"rate"`
}

// PolicyConfig holds the banned lexicon and disclaimer strings.
type PolicyConfig struct {
	BannedTerms       []string `mapstructure:"banned_terms"`
	WordBoundaryTerms []string `mapstructure:"word_boundary_terms"`
	Disclaimer        string   `mapstructure:"disclaimer"`
	SafeDisclaimer    string   `mapstructure:"safe_disclaimer"`
	MaxRunes          int      `mapstructure:"max_runes"`
}

// Options converts the section into policy.Options.
func (p PolicyConfig) Options() policy.Options {
	lex := make([]policy.Term, 0, len(p.BannedTerms)+len(p.WordBoundaryTerms))
	for _, t := range p.BannedTerms {
		lex = append(lex, policy.Term{Text: t})
	}
	for _, t := range p.WordBoundaryTerms {
		lex = append(lex, policy.Term{Text: t, WordBoundary: true})
	}
	return policy.Options{
		Lexicon:        lex,
		Disclaimer:     p.Disclaimer,
		SafeDisclaimer: p.SafeDisclaimer,
		MaxRunes:       p.MaxRunes,
	}
}

// SafetyConfig configures safety identifiers.
type SafetyConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// TelemetryConfig configures OpenTelemetry tracing. Tracing is off when
// OTLPEndpoint is empty.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Supported backends.
var (
	textBackends = []string{"openai", "local"}
	ttsBackends  = []string{"openai", "elevenlabs"}
)

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("server.webhook_token", "${WEBHOOK_TOKEN}")
	v.SetDefault("server.workers", 64)
	v.SetDefault("server.max_body_bytes", 64<<10)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 10000)
	v.SetDefault("transports.grpc.enabled", false)
	v.SetDefault("transports.grpc.port", 50051)

	v.SetDefault("textgen.backend", "openai")
	v.SetDefault("textgen.timeout", 70*time.Second)
	v.SetDefault("textgen.requests_per_second", 0)
	v.SetDefault("textgen.retry.max_attempts", 3)
	v.SetDefault("textgen.retry.base_delay", 500*time.Millisecond)
	v.SetDefault("textgen.retry.multiplier", 2.0)
	v.SetDefault("textgen.retry.max_delay", 8*time.Second)
	v.SetDefault("textgen.openai.api_key", "${OPENAI_API_KEY}")
	v.SetDefault("textgen.openai.organization", "${OPENAI_ORG}")
	v.SetDefault("textgen.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("textgen.openai.model", "gpt-5")
	v.SetDefault("textgen.local.endpoint", "http://localhost:11434/api/generate")
	v.SetDefault("textgen.local.model", "llama3")

	v.SetDefault("tts.timeout", 60*time.Second)
	v.SetDefault("tts.retry.max_attempts", 1)
	v.SetDefault("tts.retry.base_delay", 250*time.Millisecond)
	v.SetDefault("tts.retry.multiplier", 2.0)
	v.SetDefault("tts.retry.max_delay", 2*time.Second)
	v.SetDefault("tts.primary.backend", "openai")
	v.SetDefault("tts.primary.api_key", "${OPENAI_API_KEY}")
	v.SetDefault("tts.primary.base_url", "https://api.openai.com/v1")
	v.SetDefault("tts.primary.model", "gpt-4o-mini-tts")
	v.SetDefault("tts.fallback.backend", "")
	v.SetDefault("tts.fallback.api_key", "${ELEVENLABS_API_KEY}")
	v.SetDefault("tts.fallback.base_url", "https://api.elevenlabs.io/v1")
	v.SetDefault("tts.fallback.model", "eleven_multilingual_v2")
	v.SetDefault("tts.fallback.default_voice", "21m00Tcm4TlvDq8ikWAM")

	v.SetDefault("voice.locale", "th")
	v.SetDefault("voice.allowed", []string{
		"alloy", "ash", "ballad", "coral", "echo", "fable", "nova", "onyx", "sage", "shimmer", "verse",
	})
	v.SetDefault("voice.narrative.voice", "alloy")
	v.SetDefault("voice.narrative.rate", 0.85)
	v.SetDefault("voice.alert.voice", "verse")
	v.SetDefault("voice.alert.rate", 1.05)
	v.SetDefault("voice.fast_rate", 1.15)
	v.SetDefault("voice.alert_roles", []string{"alert", "gate"})
	v.SetDefault("voice.alert_keywords", []string{"gate", "trap", "alert", "stop", "risk"})

	v.SetDefault("policy.banned_terms", []string{
		"buy", "sell", "long", "short", "entry", "exit", "ซื้อ", "ขาย", "เปิดสถานะ", "ปิดสถานะ",
	})
	v.SetDefault("policy.word_boundary_terms", []string{"tp", "sl"})
	v.SetDefault("policy.disclaimer", "ข้อมูลนี้เพื่อการศึกษาเท่านั้น.")
	v.SetDefault("policy.safe_disclaimer", "ข้อมูลนี้เพื่อการศึกษาเท่านั้น ไม่ใช่คำแนะนำทางการเงิน.")
	v.SetDefault("policy.max_runes", 1200)

	v.SetDefault("safety.namespace", "voicecoach")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "voicecoach")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./voicecoach.yaml, ./configs/voicecoach.yaml, /etc/voicecoach/voicecoach.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("voicecoach")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/voicecoach")
	}

	// Environment variables: VOICECOACH_SERVER_WEBHOOK_TOKEN, VOICECOACH_TEXTGEN_BACKEND, etc.
	v.SetEnvPrefix("VOICECOACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.resolveSecrets()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolveSecrets() {
	c.Server.WebhookToken = resolveEnvRef(c.Server.WebhookToken)
	c.TextGen.OpenAI.APIKey = resolveEnvRef(c.TextGen.OpenAI.APIKey)
	c.TextGen.OpenAI.Organization = resolveEnvRef(c.TextGen.OpenAI.Organization)
	c.TTS.Primary.APIKey = resolveEnvRef(c.TTS.Primary.APIKey)
	c.TTS.Fallback.APIKey = resolveEnvRef(c.TTS.Fallback.APIKey)
}

// resolveEnvRef replaces "${VAR_NAME}" with the env var value. An unset
// variable resolves to the empty string.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		return os.Getenv(val[2 : len(val)-1])
	}
	return val
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.WebhookToken == "" {
		errs = append(errs, errors.New("server.webhook_token must be set (e.g. WEBHOOK_TOKEN)"))
	}
	if c.Server.Workers < 1 {
		errs = append(errs, fmt.Errorf("server.workers must be >= 1, got %d", c.Server.Workers))
	}
	if !c.Transports.HTTP.Enabled && !c.Transports.GRPC.Enabled {
		errs = append(errs, errors.New("no transports enabled, enable at least one"))
	}

	if !slices.Contains(textBackends, c.TextGen.Backend) {
		errs = append(errs, fmt.Errorf("textgen.backend %q is not one of %v", c.TextGen.Backend, textBackends))
	}
	if c.TextGen.Timeout <= 0 {
		errs = append(errs, errors.New("textgen.timeout must be positive"))
	}
	if err := c.TextGen.Retry.Policy("textgen").Validate(); err != nil {
		errs = append(errs, err)
	}

	if !slices.Contains(ttsBackends, c.TTS.Primary.Backend) {
		errs = append(errs, fmt.Errorf("tts.primary.backend %q is not one of %v", c.TTS.Primary.Backend, ttsBackends))
	}
	if c.TTS.Fallback.Enabled() && !slices.Contains(ttsBackends, c.TTS.Fallback.Backend) {
		errs = append(errs, fmt.Errorf("tts.fallback.backend %q is not one of %v", c.TTS.Fallback.Backend, ttsBackends))
	}
	if c.TTS.Timeout <= 0 {
		errs = append(errs, errors.New("tts.timeout must be positive"))
	}
	if err := c.TTS.Retry.Policy("tts").Validate(); err != nil {
		errs = append(errs, err)
	}

	errs = append(errs, c.Voice.validate()...)

	if c.Policy.MaxRunes < 1 {
		errs = append(errs, errors.New("policy.max_runes must be positive"))
	}
	if c.Safety.Namespace == "" {
		errs = append(errs, errors.New("safety.namespace must be set"))
	}

	return errors.Join(errs...)
}

func (v VoiceConfig) validate() []error {
	var errs []error
	if len(v.Allowed) == 0 {
		errs = append(errs, errors.New("voice.allowed must list at least one voice"))
	}
	for name, p := range map[string]PersonaConfig{"narrative": v.Narrative, "alert": v.Alert} {
		if !slices.Contains(v.Allowed, p.Voice) {
			errs = append(errs, fmt.Errorf("voice.%s.voice %q is not in voice.allowed", name, p.Voice))
		}
		if p.Rate <= 0 {
			errs = append(errs, fmt.Errorf("voice.%s.rate must be positive", name))
		}
	}
	if v.Locale != "th" && v.Locale != "en" {
		errs = append(errs, fmt.Errorf("voice.locale %q is not supported (th, en)", v.Locale))
	}
	return errs
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: level == slog.LevelDebug}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler).With("service", "voicecoach"))
}

// Snapshot is the secret-free view of the configuration reported by /healthz.
type Snapshot struct {
	TextBackend     string        `json:"text_backend"`
	TextModel       string        `json:"text_model"`
	TextTimeout     string        `json:"text_timeout"`
	TextAttempts    int           `json:"text_attempts"`
	TTSPrimary      string        `json:"tts_primary"`
	TTSPrimaryModel string        `json:"tts_primary_model,omitempty"`
	TTSFallback     string        `json:"tts_fallback,omitempty"`
	TTSTimeout      string        `json:"tts_timeout"`
	TTSAttempts     int           `json:"tts_attempts"`
	Locale          string        `json:"locale"`
	Voices          []string      `json:"voices"`
	Narrative       PersonaConfig `json:"narrative"`
	Alert           PersonaConfig `json:"alert"`
	FastRate        float64       `json:"fast_rate"`
	Transports      []string      `json:"transports"`
}

// Snapshot returns the reportable settings. API keys and the webhook token
// are never included.
func (c *Config) Snapshot() Snapshot {
	s := Snapshot{
		TextBackend:     c.TextGen.Backend,
		TextTimeout:     c.TextGen.Timeout.String(),
		TextAttempts:    c.TextGen.Retry.MaxAttempts,
		TTSPrimary:      c.TTS.Primary.Backend,
		TTSPrimaryModel: c.TTS.Primary.Model,
		TTSFallback:     c.TTS.Fallback.Backend,
		TTSTimeout:      c.TTS.Timeout.String(),
		TTSAttempts:     c.TTS.Retry.MaxAttempts,
		Locale:          c.Voice.Locale,
		Voices:          c.Voice.Allowed,
		Narrative:       c.Voice.Narrative,
		Alert:           c.Voice.Alert,
		FastRate:        c.Voice.FastRate,
	}
	switch c.TextGen.Backend {
	case "openai":
		s.TextModel = c.TextGen.OpenAI.Model
	case "local":
		s.TextModel = c.TextGen.Local.Model
	}
	if c.Transports.HTTP.Enabled {
		s.Transports = append(s.Transports, "http")
	}
	if c.Transports.GRPC.Enabled {
		s.Transports = append(s.Transports, "grpc")
	}
	return s
}
