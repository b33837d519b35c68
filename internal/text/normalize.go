// Package text provides input text normalization for speech generation.
//
// The inference engine is sensitive to stray typography: smart quotes,
// unicode dashes, and ragged whitespace degrade prosody. Inputs are
// normalized here before they reach the engine.
package text

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Punctuation and formatting constants.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsis     = "..."
	ellipsisChar = "…"
)

const whitespaceRegexPattern = `\s+`

// Static errors.
var (
	ErrTextEmpty   = errors.New("text cannot be empty")
	ErrTextTooLong = errors.New("text too long")
)

// sampleTexts are the quick-test texts offered by the studio UI.
var sampleTexts = []string{
	"Hello! Welcome to ChatterBox TTS, the state-of-the-art open source text-to-speech system.",
	"The quick brown fox jumps over the lazy dog. This pangram contains every letter of the alphabet.",
	"In a hole in the ground there lived a hobbit. Not a nasty, dirty, wet hole filled with worms and oozy smells.",
	"To be or not to be, that is the question. Whether 'tis nobler in the mind to suffer the slings and arrows of outrageous fortune.",
	"It was the best of times, it was the worst of times, it was the age of wisdom, it was the age of foolishness.",
	"Space: the final frontier. These are the voyages of the starship Enterprise, to boldly go where no one has gone before.",
}

// SampleTexts returns the built-in quick-test texts.
func SampleTexts() []string {
	out := make([]string, len(sampleTexts))
	copy(out, sampleTexts)

	return out
}

// Normalizer cleans input text before synthesis.
type Normalizer struct {
	whitespacePattern  *regexp.Regexp
	typographyReplacer *strings.Replacer
}

// NewNormalizer creates a normalizer with its patterns and replacers
// compiled upfront.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		whitespacePattern: regexp.MustCompile(whitespaceRegexPattern),
		typographyReplacer: strings.NewReplacer(
			emDash, "-",
			enDash, "-",
			figureDash, "-",
			ellipsisChar, ellipsis,
			"“", `"`, "”", `"`,
			"‘", "'", "’", "'",
		),
	}
}

// Normalize collapses whitespace, folds typography to its ASCII form, and
// ensures the text ends with sentence punctuation.
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return text
	}

	normalized := n.typographyReplacer.Replace(text)
	normalized = n.whitespacePattern.ReplaceAllString(normalized, " ")
	normalized = strings.TrimSpace(normalized)

	return ensureSentenceEnding(normalized)
}

// Validate checks text against the configured length limit. It is applied
// after normalization so the limit reflects what the engine will see.
func (n *Normalizer) Validate(text string, maxLength int) error {
	if text == "" {
		return ErrTextEmpty
	}

	if utf8.RuneCountInString(text) > maxLength {
		return fmt.Errorf("%w: maximum %d characters allowed", ErrTextTooLong, maxLength)
	}

	return nil
}

// ensureSentenceEnding appends a period when the text does not already end
// with sentence punctuation.
func ensureSentenceEnding(text string) string {
	if text == "" {
		return ""
	}

	lastChar, _ := utf8.DecodeLastRuneInString(text)
	if !unicode.IsPunct(lastChar) {
		return text + "."
	}

	switch lastChar {
	case '.', '!', '?':
		return text
	default:
		return text + "."
	}
}
