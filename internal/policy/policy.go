// Package policy enforces the "no financial advice" content rules.
//
// Enforcement has two layers. Instruction builds the constraint given to the
// text-generation model; Scrub is the hard check applied to whatever the model
// returned. A scrub hit discards the text entirely rather than redacting it.
package policy

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Default strings used when configuration leaves them empty.
const (
	DefaultDisclaimer     = "ข้อมูลนี้เพื่อการศึกษาเท่านั้น."
	DefaultSafeDisclaimer = "ข้อมูลนี้เพื่อการศึกษาเท่านั้น ไม่ใช่คำแนะนำทางการเงิน."
	DefaultMaxRunes       = 1200
	Ellipsis              = "…"
)

// Term is a banned lexicon entry.
type Term struct {
	Text string

	// WordBoundary restricts the match to whole words. Otherwise any
	// substring of the lowercased text matches.
	WordBoundary bool
}

// DefaultLexicon lists trading-action terms in English and Thai.
// The two-letter abbreviations only match as whole words.
func DefaultLexicon() []Term {
	return []Term{
		{Text: "buy"},
		{Text: "sell"},
		{Text: "long"},
		{Text: "short"},
		{Text: "entry"},
		{Text: "exit"},
		{Text: "tp", WordBoundary: true},
		{Text: "sl", WordBoundary: true},
		{Text: "ซื้อ"},
		{Text: "ขาย"},
		{Text: "เปิดสถานะ"},
		{Text: "ปิดสถานะ"},
	}
}

// Options configures a Guard.
type Options struct {
	Lexicon        []Term
	Disclaimer     string
	SafeDisclaimer string
	MaxRunes       int
}

// Guard applies the lexicon. It is immutable and safe for concurrent use.
type Guard struct {
	terms          []Term
	patterns       []*regexp.Regexp // nil entry means substring match
	disclaimer     string
	safeDisclaimer string
	maxRunes       int
}

// New builds a Guard, filling empty options with defaults.
func New(opts Options) *Guard {
	g := &Guard{
		disclaimer:     opts.Disclaimer,
		safeDisclaimer: opts.SafeDisclaimer,
		maxRunes:       opts.MaxRunes,
	}
	if g.disclaimer == "" {
		g.disclaimer = DefaultDisclaimer
	}
	if g.safeDisclaimer == "" {
		g.safeDisclaimer = DefaultSafeDisclaimer
	}
	if g.maxRunes <= 0 {
		g.maxRunes = DefaultMaxRunes
	}

	lex := opts.Lexicon
	if len(lex) == 0 {
		lex = DefaultLexicon()
	}
	for _, t := range lex {
		text := strings.ToLower(strings.TrimSpace(t.Text))
		if text == "" {
			continue
		}
		var re *regexp.Regexp
		if t.WordBoundary {
			re = regexp.MustCompile(`\b` + regexp.QuoteMeta(text) + `\b`)
		}
		g.terms = append(g.terms, Term{Text: text, WordBoundary: t.WordBoundary})
		g.patterns = append(g.patterns, re)
	}
	return g
}

// Disclaimer is the closing educational sentence.
func (g *Guard) Disclaimer() string { return g.disclaimer }

// SafeDisclaimer replaces any text that fails the scrub.
func (g *Guard) SafeDisclaimer() string { return g.safeDisclaimer }

// MaxRunes is the length cap applied by Truncate.
func (g *Guard) MaxRunes() int { return g.maxRunes }

// Terms returns a copy of the normalized lexicon.
func (g *Guard) Terms() []Term {
	out := make([]Term, len(g.terms))
	copy(out, g.terms)
	return out
}

// Instruction returns the system instruction for the text-generation model.
func (g *Guard) Instruction() string {
	words := make([]string, len(g.terms))
	for i, t := range g.terms {
		words[i] = t.Text
	}

	var sb strings.Builder
	sb.WriteString("You are an analytical market-structure assistant. ")
	sb.WriteString("Describe the market structure objectively using a neutral tone. ")
	sb.WriteString("Do not provide buy, sell or hold advice, price targets, or position instructions. ")
	sb.WriteString("Never use any of these words: ")
	sb.WriteString(strings.Join(words, ", "))
	sb.WriteString(". Respond in Thai, in plain sentences suitable for speech. ")
	sb.WriteString("End with this exact disclaimer: '")
	sb.WriteString(g.disclaimer)
	sb.WriteString("'")
	return sb.String()
}

// Match returns the first banned term found in text.
func (g *Guard) Match(text string) (string, bool) {
	lower := strings.ToLower(text)
	for i, t := range g.terms {
		if re := g.patterns[i]; re != nil {
			if re.MatchString(lower) {
				return t.Text, true
			}
			continue
		}
		if strings.Contains(lower, t.Text) {
			return t.Text, true
		}
	}
	return "", false
}

// Scrub returns text unchanged when it is clean. Otherwise it returns the safe
// disclaimer and true.
func (g *Guard) Scrub(text string) (string, bool) {
	if _, hit := g.Match(text); hit {
		return g.safeDisclaimer, true
	}
	return text, false
}

// EnsureDisclaimer appends the closing disclaimer unless text already ends with
// it or is the safe disclaimer.
func (g *Guard) EnsureDisclaimer(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == g.safeDisclaimer || strings.HasSuffix(trimmed, g.disclaimer) {
		return trimmed
	}
	if trimmed == "" {
		return g.disclaimer
	}
	return trimmed + " " + g.disclaimer
}

// Truncate caps text at MaxRunes runes followed by Ellipsis.
func (g *Guard) Truncate(text string) string {
	if utf8.RuneCountInString(text) <= g.maxRunes {
		return text
	}
	r := []rune(text)
	return string(r[:g.maxRunes]) + Ellipsis
}

// Apply runs the post-generation chain: scrub on the full text, then the
// disclaimer, then the length cap. filtered reports a scrub hit.
func (g *Guard) Apply(text string) (out string, filtered bool) {
	out, filtered = g.Scrub(text)
	out = g.EnsureDisclaimer(out)
	return g.Truncate(out), filtered
}
