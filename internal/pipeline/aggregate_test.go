package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bdento-1/coach-dual-cloud-render/internal/message"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/tts"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/voice"
)

func okRendition(slot, v string) rendition {
	return rendition{
		slot: slot,
		sel:  voice.Selection{Persona: slot, Voice: v, Rate: 1},
		res:  &tts.Result{Audio: []byte(v), ContentType: tts.MIMEMpeg, Provider: "openai", Voice: v},
	}
}

func failedRendition(slot, v string) rendition {
	return rendition{slot: slot, sel: voice.Selection{Persona: slot, Voice: v, Rate: 1}, err: errors.New("down")}
}

var someText = textOutcome{text: "t", source: message.TextFromModel}

func TestAggregate_NoRenditions(t *testing.T) {
	res := aggregate("r", "s", someText, nil)
	assert.False(t, res.OK)
	assert.True(t, res.Partial)
	assert.Empty(t, res.AudioB64)
}

func TestAggregate_CoachPreferredOverGate(t *testing.T) {
	res := aggregate("r", "s", someText, []rendition{okRendition(slotGate, "verse"), okRendition(slotCoach, "alloy")})
	require.NotNil(t, res.Gate)
	require.NotNil(t, res.Coach)
	assert.Equal(t, res.Coach.AudioB64, res.AudioB64)
	assert.Equal(t, "alloy", res.Voice)
	assert.True(t, res.OK)
}

func TestAggregate_BothFailReportsCoachVoice(t *testing.T) {
	res := aggregate("r", "s", someText, []rendition{failedRendition(slotGate, "verse"), failedRendition(slotCoach, "alloy")})
	assert.False(t, res.OK)
	assert.True(t, res.Partial)
	assert.Equal(t, "alloy", res.Voice)
	assert.Equal(t, "down", res.Gate.Error)
	assert.Empty(t, res.AudioB64)
}

func TestAggregate_FallbackVoiceReported(t *testing.T) {
	r := okRendition("", "alloy")
	r.res.Voice = "rachel"
	r.res.Provider = "elevenlabs"

	res := aggregate("r", "s", someText, []rendition{r})
	assert.Equal(t, "rachel", res.Voice)
	assert.Nil(t, res.Gate)
	assert.Nil(t, res.Coach)
}

func TestAggregate_NoTextIsNeverOK(t *testing.T) {
	res := aggregate("r", "s", textOutcome{}, []rendition{okRendition("", "alloy")})
	assert.False(t, res.OK)
	assert.False(t, res.Partial)
}
