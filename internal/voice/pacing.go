package voice

import (
	"regexp"
	"slices"
	"strings"
)

// Pacing thresholds.
const (
	SlowRate     = 0.90 // below this, pauses are inserted
	VerySlowRate = 0.80 // at or below this, pauses are denser

	slowEvery     = 7
	verySlowEvery = 5
)

// PauseMarker is inserted between words to slow perceived cadence.
const PauseMarker = "…"

var numberPattern = regexp.MustCompile(`[0-9]+(\.[0-9]+)?`)

var digitWords = map[string][11]string{
	"th": {"ศูนย์", "หนึ่ง", "สอง", "สาม", "สี่", "ห้า", "หก", "เจ็ด", "แปด", "เก้า", "จุด"},
	"en": {"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "point"},
}

// Localize spells out every number in text digit by digit, so that the
// synthesis engine reads it in the target locale. Unknown locales use Thai.
func Localize(text, locale string) string {
	words, ok := digitWords[locale]
	if !ok {
		words = digitWords["th"]
	}
	return numberPattern.ReplaceAllStringFunc(text, func(num string) string {
		parts := make([]string, 0, len(num))
		for _, c := range num {
			if c == '.' {
				parts = append(parts, words[10])
				continue
			}
			parts = append(parts, words[c-'0'])
		}
		return strings.Join(parts, " ")
	})
}

// Pace inserts pauses for slow speaking rates. Text is returned unchanged
// when rate >= SlowRate. Otherwise clause punctuation gets an extra space and
// PauseMarker follows every 7th word, or every 5th when rate <= VerySlowRate.
// Standalone markers from an earlier pass are dropped first, so Pace is
// idempotent. An ellipsis attached to a word is kept.
func Pace(text string, rate float64) string {
	if rate >= SlowRate {
		return text
	}
	every := slowEvery
	if rate <= VerySlowRate {
		every = verySlowEvery
	}

	words := slices.DeleteFunc(strings.Fields(text), func(w string) bool { return w == PauseMarker })
	var sb strings.Builder
	for i, w := range words {
		sb.WriteString(w)
		if i == len(words)-1 {
			break
		}
		if (i+1)%every == 0 {
			sb.WriteString(" " + PauseMarker)
		}
		if endsClause(w) {
			sb.WriteString("  ")
		} else {
			sb.WriteString(" ")
		}
	}
	return sb.String()
}

func endsClause(w string) bool {
	return strings.HasSuffix(w, ",") || strings.HasSuffix(w, ";") || strings.HasSuffix(w, ":")
}

// Prepare localizes numbers, then paces the result.
func Prepare(text string, rate float64, locale string) string {
	return Pace(Localize(text, locale), rate)
}
