package classification

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// punctuationRe removes everything except word characters, whitespace and
	// the Portuguese accented set. Accented vowels survive here so the accent
	// stripper below can fold them instead of dropping them.
	punctuationRe = regexp.MustCompile(`[^\w\sáàâãéêíóôõúçñ]`)
	whitespaceRe  = regexp.MustCompile(`\s+`)

	// stripAccents decomposes to NFD and drops combining marks ("não" → "nao").
	stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Normalize canonicalizes raw patient text before any matching: lowercase,
// trimmed, internal whitespace collapsed, punctuation removed and accents
// stripped. Empty or whitespace-only input yields the empty string.
func Normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return ""
	}

	s = punctuationRe.ReplaceAllString(s, " ")

	if folded, _, err := transform.String(stripAccents, s); err == nil {
		s = folded
	}

	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
