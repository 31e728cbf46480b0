package voice

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Bdento-1/coach-dual-cloud-render/internal/config"
	"github.com/Bdento-1/coach-dual-cloud-render/internal/message"
)

func testSelector() *Selector {
	return NewSelector(config.VoiceConfig{
		Locale:        "th",
		Allowed:       []string{"alloy", "verse", "nova", "Shimmer"},
		Narrative:     config.PersonaConfig{Voice: "alloy", Rate: 0.85},
		Alert:         config.PersonaConfig{Voice: "verse", Rate: 1.05},
		FastRate:      1.15,
		AlertRoles:    []string{"alert", "gate"},
		AlertKeywords: []string{"gate", "trap", "alert", "stop", "risk"},
	})
}

func TestSelect_Precedence(t *testing.T) {
	s := testSelector()

	cases := []struct {
		name  string
		alert message.Alert
		want  Selection
	}{
		{"default", message.Alert{}, Selection{PersonaNarrative, "alloy", 0.85}},
		{"role", message.Alert{Role: "gate"}, Selection{PersonaAlert, "verse", 1.05}},
		{"event keyword", message.Alert{Event: "Bull TRAP near high"}, Selection{PersonaAlert, "verse", 1.05}},
		{"explicit beats role", message.Alert{Voice: "nova", Role: "alert", Event: "risk"}, Selection{PersonaExplicit, "nova", 0.85}},
		{"explicit case-insensitive allow-list", message.Alert{Voice: "shimmer"}, Selection{PersonaExplicit, "shimmer", 0.85}},
		{"unknown explicit ignores role", message.Alert{Voice: "robot", Role: "alert"}, Selection{PersonaNarrative, "alloy", 0.85}},
		{"unknown explicit ignores event", message.Alert{Voice: "robot", Event: "bull trap"}, Selection{PersonaNarrative, "alloy", 0.85}},
		{"unknown explicit falls to default", message.Alert{Voice: "robot"}, Selection{PersonaNarrative, "alloy", 0.85}},
		{"role not in set", message.Alert{Role: "observer", Event: "breakout"}, Selection{PersonaNarrative, "alloy", 0.85}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, s.Select(&tc.alert))
		})
	}
}

func TestSelect_FastRaisesRateOnly(t *testing.T) {
	s := testSelector()

	assert.InDelta(t, 1.15, s.Select(&message.Alert{Fast: true}).Rate, 1e-9)
	assert.InDelta(t, 1.15, s.Select(&message.Alert{Fast: true, Role: "gate"}).Rate, 1e-9)

	slow := NewSelector(config.VoiceConfig{
		Allowed:   []string{"alloy"},
		Narrative: config.PersonaConfig{Voice: "alloy", Rate: 1.3},
		FastRate:  1.15,
	})
	assert.InDelta(t, 1.3, slow.Select(&message.Alert{Fast: true}).Rate, 1e-9)
}

func TestPersonaAndForVoice(t *testing.T) {
	s := testSelector()

	assert.Equal(t, Selection{PersonaAlert, "verse", 1.05}, s.Persona(PersonaAlert, false))
	assert.Equal(t, Selection{PersonaNarrative, "alloy", 0.85}, s.Persona(PersonaNarrative, false))
	assert.Equal(t, Selection{PersonaNarrative, "alloy", 0.85}, s.Persona("other", false))
	assert.InDelta(t, 1.15, s.Persona(PersonaNarrative, true).Rate, 1e-9)

	assert.Equal(t, Selection{PersonaExplicit, "nova", 0.85}, s.ForVoice(" Nova "))
	assert.Equal(t, Selection{PersonaNarrative, "alloy", 0.85}, s.ForVoice("robot"))
}

func TestLocalize(t *testing.T) {
	assert.Equal(t, "ราคาปิด หนึ่ง ศูนย์ จุด ห้า ปริมาณ หนึ่ง ศูนย์ ศูนย์.",
		Localize("ราคาปิด 10.5 ปริมาณ 100.", "th"))
	assert.Equal(t, "close one two point zero three", Localize("close 12.03", "en"))
	assert.Equal(t, "ไม่มีตัวเลข", Localize("ไม่มีตัวเลข", "th"))

	once := Localize("AAA 1H 42.5", "th")
	assert.Equal(t, once, Localize(once, "th"))
	assert.Equal(t, Localize("7", "th"), Localize("7", "xx"))
}

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = "w"
	}
	return strings.Join(w, " ")
}

func TestPace_UnchangedAtNormalRate(t *testing.T) {
	text := "ราคา,  แกว่งตัว   ในกรอบ " + words(20)
	assert.Equal(t, text, Pace(text, 0.90))
	assert.Equal(t, text, Pace(text, 1.2))
}

func TestPace_EverySevenWords(t *testing.T) {
	out := Pace(words(15), 0.85)
	assert.Equal(t, "w w w w w w w … w w w w w w w … w", out)
}

func TestPace_EveryFiveWords(t *testing.T) {
	out := Pace(words(11), 0.80)
	assert.Equal(t, "w w w w w … w w w w w … w", out)

	assert.Equal(t, out, Pace(words(11), 0.5))
}

func TestPace_ClausePunctuation(t *testing.T) {
	out := Pace("แรก, สอง; สาม: สี่", 0.85)
	assert.Equal(t, "แรก,  สอง;  สาม:  สี่", out)
}

func TestPace_Idempotent(t *testing.T) {
	for _, rate := range []float64{0.85, 0.75} {
		once := Pace("a, b c d e f g h i j; k l m n o p q r", rate)
		assert.Equal(t, once, Pace(once, rate))
	}
}

func TestPace_NoTrailingMarker(t *testing.T) {
	assert.Equal(t, "w w w w w", Pace(words(5), 0.8))
}

func TestPrepare_LocalizesBeforePacing(t *testing.T) {
	// "10" becomes two words, which shifts where the pause lands.
	out := Prepare("a b c 10 d", 0.8, "th")
	assert.Equal(t, "a b c หนึ่ง ศูนย์ … d", out)
}

func TestPace_KeepsAttachedEllipsis(t *testing.T) {
	out := Pace("ราคา…ยืนเหนือ แนวรับ w w w w w w w ท้าย…", 0.85)
	assert.Equal(t, "ราคา…ยืนเหนือ แนวรับ w w w w w … w w ท้าย…", out)
	assert.Equal(t, out, Pace(out, 0.85))
}
