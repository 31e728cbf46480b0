package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xeipuuv/gojsonschema"
)

// ErrBadPayload is wrapped by every decoding and validation failure.
var ErrBadPayload = errors.New("bad payload")

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.]{1,15}$`)

// alertSchema is the JSON shape of an inbound alert. Field rules that need
// normalization first (symbol, timeframe) are checked in Go afterwards.
const alertSchema = `{
  "type": "object",
  "required": ["symbol", "close", "volume"],
  "anyOf": [{"required": ["tf"]}, {"required": ["timeframe"]}],
  "properties": {
    "symbol":    {"type": "string", "minLength": 1, "maxLength": 64},
    "tf":        {"type": ["string", "number"]},
    "timeframe": {"type": ["string", "number"]},
    "close":     {"type": ["number", "string"]},
    "volume":    {"type": ["number", "string"]},
    "hint":      {"type": "string", "maxLength": 500},
    "voice":     {"type": "string", "maxLength": 64},
    "role":      {"type": "string", "maxLength": 64},
    "event":     {"type": "string", "maxLength": 500},
    "mode":      {"type": "string"},
    "fast":      {"type": ["boolean", "string", "number", "null"]},
    "text":      {"type": "string", "maxLength": 8000}
  }
}`

var alertSchemaLoader = gojsonschema.NewStringLoader(alertSchema)

// FieldError describes one invalid field.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string { return e.Field + ": " + e.Reason }

// wireAlert mirrors the accepted JSON; close and volume may be numbers or numeric strings.
type wireAlert struct {
	Symbol    string          `json:"symbol"`
	TF        json.RawMessage `json:"tf"`
	Timeframe json.RawMessage `json:"timeframe"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
	Hint      string          `json:"hint"`
	Voice     string          `json:"voice"`
	Role      string          `json:"role"`
	Event     string          `json:"event"`
	Mode      string          `json:"mode"`
	Fast      json.RawMessage `json:"fast"`
	Text      string          `json:"text"`
}

// DecodeAlert validates raw JSON against the alert schema and returns the
// normalized Alert. Every error wraps ErrBadPayload.
func DecodeAlert(data []byte) (*Alert, error) {
	res, err := gojsonschema.Validate(alertSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if !res.Valid() {
		errs := make([]error, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			errs = append(errs, FieldError{Field: e.Field(), Reason: e.Description()})
		}
		return nil, fmt.Errorf("%w: %w", ErrBadPayload, errors.Join(errs...))
	}

	var w wireAlert
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	tf := w.TF
	if len(tf) == 0 || string(tf) == "null" {
		tf = w.Timeframe
	}

	a := &Alert{
		Symbol:    strings.ToUpper(strings.TrimSpace(w.Symbol)),
		Timeframe: rawString(tf),
		Close:     w.Close,
		Volume:    w.Volume,
		Hint:      strings.TrimSpace(w.Hint),
		Voice:     strings.ToLower(strings.TrimSpace(w.Voice)),
		Role:      strings.ToLower(strings.TrimSpace(w.Role)),
		Event:     strings.TrimSpace(w.Event),
		Mode:      Mode(strings.ToLower(strings.TrimSpace(w.Mode))),
		Text:      strings.TrimSpace(w.Text),
	}
	if a.Fast, err = parseBoolish(w.Fast); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate checks the normalization rules. It canonicalizes the timeframe
// in place ("1h" becomes "1H").
func (a *Alert) Validate() error {
	var errs []error

	if !symbolPattern.MatchString(a.Symbol) {
		errs = append(errs, FieldError{Field: "symbol", Reason: "must be 1-15 characters of A-Z, 0-9 or '.'"})
	}

	tf, ok := normalizeTimeframe(a.Timeframe)
	if !ok {
		errs = append(errs, FieldError{Field: "tf", Reason: fmt.Sprintf("must be one of %s", strings.Join(Timeframes, ","))})
	} else {
		a.Timeframe = tf
	}

	switch a.Mode {
	case ModeDefault, ModeGate, ModeCoach, ModeBoth:
	default:
		errs = append(errs, FieldError{Field: "mode", Reason: "must be gate, coach or both"})
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrBadPayload, errors.Join(errs...))
	}
	return nil
}

// Validate trims and checks a synthesis-only request.
func (s *SpeakRequest) Validate() error {
	s.Text = strings.TrimSpace(s.Text)
	s.Voice = strings.ToLower(strings.TrimSpace(s.Voice))
	if s.Text == "" {
		return fmt.Errorf("%w: %w", ErrBadPayload, FieldError{Field: "text", Reason: "must not be empty"})
	}
	return nil
}

// normalizeTimeframe tries an exact match, then an upper-cased one.
func normalizeTimeframe(tf string) (string, bool) {
	tf = strings.TrimSpace(tf)
	if slices.Contains(Timeframes, tf) {
		return tf, true
	}
	up := strings.ToUpper(tf)
	if slices.Contains(Timeframes, up) {
		return up, true
	}
	return "", false
}

// rawString returns a JSON string's value, or a JSON number's literal text.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// parseBoolish accepts true/false, 1/0 and "yes"/"no"/"on"/"off"/"true"/"false".
func parseBoolish(raw json.RawMessage) (bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	s := strings.ToLower(rawString(raw))
	switch s {
	case "", "0", "no", "off", "false", "n":
		return false, nil
	case "1", "yes", "on", "true", "y":
		return true, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f != 0, nil
	}
	return false, FieldError{Field: "fast", Reason: "must be boolean-ish"}
}
