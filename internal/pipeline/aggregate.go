package pipeline

import (
	"github.com/Bdento-1/coach-dual-cloud-render/internal/message"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/tts"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/voice"
)

// Rendition slots in dual-voice mode.
const (
	slotGate  = "gate"
	slotCoach = "coach"
)

// textOutcome is the final text and how it was obtained.
type textOutcome struct {
	text     string
	source   message.TextSource
	filtered bool
}

// rendition is one synthesis attempt. Exactly one of res and err is set.
type rendition struct {
	slot string // "", slotGate or slotCoach
	sel  voice.Selection
	res  *tts.Result
	err  error
}

func (r rendition) ok() bool { return r.err == nil && r.res != nil && len(r.res.Audio) > 0 }

func (r rendition) wire() *message.Rendition {
	out := &message.Rendition{
		OK:      r.ok(),
		Persona: r.sel.Persona,
		Voice:   r.sel.Voice,
		Rate:    r.sel.Rate,
	}
	if r.ok() {
		out.Provider = r.res.Provider
		if r.res.Voice != "" {
			out.Voice = r.res.Voice
		}
		out.SetAudioBytes(r.res.Audio, r.res.ContentType)
	} else if r.err != nil {
		out.Error = r.err.Error()
	}
	return out
}

// aggregate merges the stage outcomes into the response.
//
// ok requires text and at least one rendition with audio; text without audio
// is a partial success. Top-level audio mirrors the coach rendition when it
// succeeded, otherwise the gate rendition, otherwise the single rendition.
func aggregate(requestID, safetyID string, text textOutcome, renditions []rendition) *message.Result {
	res := &message.Result{
		RequestID:  requestID,
		SafetyID:   safetyID,
		Text:       text.text,
		TextSource: text.source,
		Filtered:   text.filtered,
	}

	var anyAudio bool
	for _, r := range renditions {
		w := r.wire()
		anyAudio = anyAudio || w.OK
		switch r.slot {
		case slotGate:
			res.Gate = w
		case slotCoach:
			res.Coach = w
		}
	}

	if top, found := preferred(renditions); found {
		w := top.wire()
		res.Voice = w.Voice
		res.Rate = w.Rate
		res.AudioB64 = w.AudioB64
		res.AudioMIME = w.AudioMIME
	}

	hasText := text.text != ""
	res.OK = hasText && anyAudio
	res.Partial = hasText && !anyAudio
	return res
}

// preferred picks the rendition surfaced at top level: a successful coach,
// then a successful gate, then a successful unslotted one. With no audio at
// all it still returns the rendition whose voice metadata is reported.
func preferred(renditions []rendition) (rendition, bool) {
	if len(renditions) == 0 {
		return rendition{}, false
	}
	for _, slot := range []string{slotCoach, slotGate, ""} {
		for _, r := range renditions {
			if r.slot == slot && r.ok() {
				return r, true
			}
		}
	}
	for _, r := range renditions {
		if r.slot == slotCoach {
			return r, true
		}
	}
	return renditions[0], true
}
