package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeTitleName canonicalizes a title name scraped from upstream pages
// or typed by the user: separator runs collapse to single spaces, control
// characters are dropped, and the result is title-cased. An empty result
// yields the empty string so callers can fall back to the stored name.
func NormalizeTitleName(name string) string {
	var cleaned strings.Builder
	prevSpace := true
	for _, r := range name {
		switch {
		case unicode.IsSpace(r) || r == '_':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		case unicode.IsControl(r):
			continue
		default:
			cleaned.WriteRune(r)
			prevSpace = false
		}
	}
	trimmed := strings.TrimSpace(cleaned.String())
	if trimmed == "" {
		return ""
	}
	return cases.Title(language.Und, cases.NoLower).String(trimmed)
}
