// Package voice resolves which synthetic voice and speaking rate to use and
// rewrites text so that the synthesis engine paces it as intended.
package voice

import (
	"slices"
	"strings"

	"github.com/Bdento-1/coach-dual-cloud-render/internal/config"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/message"
)

// Persona names.
const (
	PersonaNarrative = "narrative" // the "coach" rendition
	PersonaAlert     = "alert"     // the "gate" rendition
	PersonaExplicit  = "explicit"  // a caller-requested voice
)

// Selection is a resolved voice and rate. It is never mutated after Select.
type Selection struct {
	Persona string
	Voice   string
	Rate    float64
}

// Selector applies the voice precedence rules. It is read-only after New.
type Selector struct {
	allowed   []string
	narrative Selection
	alert     Selection
	fastRate  float64
	roles     []string
	keywords  []string
}

// NewSelector builds a Selector from the voice section of the config.
func NewSelector(cfg config.VoiceConfig) *Selector {
	lower := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return &Selector{
		allowed:   lower(cfg.Allowed),
		narrative: Selection{Persona: PersonaNarrative, Voice: cfg.Narrative.Voice, Rate: cfg.Narrative.Rate},
		alert:     Selection{Persona: PersonaAlert, Voice: cfg.Alert.Voice, Rate: cfg.Alert.Rate},
		fastRate:  cfg.FastRate,
		roles:     lower(cfg.AlertRoles),
		keywords:  lower(cfg.AlertKeywords),
	}
}

// Allowed reports whether voice is a known synthesis voice.
func (s *Selector) Allowed(voice string) bool {
	return slices.Contains(s.allowed, strings.ToLower(strings.TrimSpace(voice)))
}

// Select resolves the voice for an alert. First match wins:
// an explicit voice (the narrative persona when it is not allow-listed),
// then an alert role or event keyword, then the narrative persona.
func (s *Selector) Select(a *message.Alert) Selection {
	var sel Selection
	switch {
	case a.Voice != "" && s.Allowed(a.Voice):
		sel = Selection{Persona: PersonaExplicit, Voice: strings.ToLower(strings.TrimSpace(a.Voice)), Rate: s.narrative.Rate}
	case a.Voice != "":
		sel = s.narrative
	case s.isAlert(a.Role, a.Event):
		sel = s.alert
	default:
		sel = s.narrative
	}
	return s.applyFast(sel, a.Fast)
}

// Persona resolves a named persona directly. Unknown names resolve to the
// narrative persona.
func (s *Selector) Persona(name string, fast bool) Selection {
	sel := s.narrative
	if name == PersonaAlert {
		sel = s.alert
	}
	return s.applyFast(sel, fast)
}

// ForVoice resolves a voice for a synthesis-only request: the requested voice
// when allow-listed, the narrative persona otherwise.
func (s *Selector) ForVoice(voice string) Selection {
	if voice != "" && s.Allowed(voice) {
		return Selection{Persona: PersonaExplicit, Voice: strings.ToLower(strings.TrimSpace(voice)), Rate: s.narrative.Rate}
	}
	return s.narrative
}

func (s *Selector) isAlert(role, event string) bool {
	if role = strings.ToLower(strings.TrimSpace(role)); role != "" && slices.Contains(s.roles, role) {
		return true
	}
	event = strings.ToLower(event)
	for _, k := range s.keywords {
		if strings.Contains(event, k) {
			return true
		}
	}
	return false
}

// applyFast raises the rate to the fast rate. It never lowers it.
func (s *Selector) applyFast(sel Selection, fast bool) Selection {
	if fast && s.fastRate > sel.Rate {
		sel.Rate = s.fastRate
	}
	return sel
}
