// Package message defines the data types flowing through the voicecoach pipeline.
package message

import (
	"encoding/base64"

	"github.com/shopspring/decimal"
)

// Mode selects which voice renditions the caller wants.
type Mode string

const (
	// ModeDefault synthesizes one rendition with the voice chosen by the selector.
	ModeDefault Mode = ""

	// ModeGate synthesizes only the alert ("gate") persona.
	ModeGate Mode = "gate"

	// ModeCoach synthesizes only the narrative ("coach") persona.
	ModeCoach Mode = "coach"

	// ModeBoth synthesizes gate and coach renditions of the same text.
	ModeBoth Mode = "both"
)

// Timeframes lists the accepted chart timeframes.
var Timeframes = []string{"1M", "5", "15", "30", "1H", "2H", "4H", "D", "W", "M"}

// Alert is a validated market-alert payload.
type Alert struct {
	// Symbol is upper-case alphanumeric plus '.', 1 to 15 characters.
	Symbol string `json:"symbol"`

	// Timeframe is one of Timeframes.
	Timeframe string `json:"tf"`

	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`

	// Hint is free text that steers generation.
	Hint string `json:"hint,omitempty"`

	// Voice is an explicit voice request, lower-cased.
	Voice string `json:"voice,omitempty"`

	// Role and Event feed the alert-persona rule of the voice selector.
	Role  string `json:"role,omitempty"`
	Event string `json:"event,omitempty"`

	Mode Mode `json:"mode,omitempty"`

	// Fast raises the speaking rate.
	Fast bool `json:"fast,omitempty"`

	// Text, when set, is used instead of generating a summary.
	Text string `json:"text,omitempty"`
}

// Canonical returns the fields that identify this alert, for safety.Generate.
// Empty optional fields are omitted so that absent and empty are equivalent.
func (a *Alert) Canonical() map[string]any {
	m := map[string]any{
		"symbol": a.Symbol,
		"tf":     a.Timeframe,
		"close":  a.Close.String(),
		"volume": a.Volume.String(),
	}
	optional := map[string]string{
		"hint":  a.Hint,
		"voice": a.Voice,
		"role":  a.Role,
		"event": a.Event,
		"mode":  string(a.Mode),
		"text":  a.Text,
	}
	for k, v := range optional {
		if v != "" {
			m[k] = v
		}
	}
	if a.Fast {
		m["fast"] = true
	}
	return m
}

// SpeakRequest is the body of the synthesis-only endpoint.
type SpeakRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// TextSource records where the response text came from.
type TextSource string

const (
	TextFromModel    TextSource = "model"
	TextFromTemplate TextSource = "template"
	TextFromSupplied TextSource = "supplied"
)

// Rendition is the outcome of synthesizing the text with one persona.
type Rendition struct {
	OK        bool    `json:"ok"`
	Persona   string  `json:"persona"`
	Voice     string  `json:"voice"`
	Rate      float64 `json:"rate"`
	Provider  string  `json:"provider,omitempty"`
	AudioB64  string  `json:"audio_b64,omitempty"`
	AudioMIME string  `json:"audio_mime,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// SetAudioBytes base64-encodes raw audio bytes into AudioB64.
func (r *Rendition) SetAudioBytes(audio []byte, mime string) {
	if len(audio) > 0 {
		r.AudioB64 = base64.StdEncoding.EncodeToString(audio)
		r.AudioMIME = mime
	}
}

// Result is the outward response of the alert pipeline.
type Result struct {
	// OK is true when text exists and at least one rendition produced audio.
	OK bool `json:"ok"`

	// Partial marks a text-only response after synthesis failed.
	Partial bool `json:"partial,omitempty"`

	RequestID string `json:"request_id,omitempty"`
	SafetyID  string `json:"safety_id,omitempty"`

	Text       string     `json:"text,omitempty"`
	TextSource TextSource `json:"text_source,omitempty"`

	// Filtered is true when the policy scrub replaced the text.
	Filtered bool `json:"filtered,omitempty"`

	Voice string  `json:"voice,omitempty"`
	Rate  float64 `json:"rate,omitempty"`

	// AudioB64 carries the preferred rendition (coach over gate).
	AudioB64  string `json:"audio_b64,omitempty"`
	AudioMIME string `json:"audio_mime,omitempty"`

	Gate  *Rendition `json:"gate,omitempty"`
	Coach *Rendition `json:"coach,omitempty"`

	// Error is set for request-level failures (unauthorized, bad payload, internal).
	Error string `json:"error,omitempty"`
}

// Failure builds a response for a request-level failure.
func Failure(msg string) *Result {
	return &Result{OK: false, Error: msg}
}
