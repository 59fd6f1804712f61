package utils

import (
	"strings"
	"unicode"
)

// NormalizeArticle canonicalizes a product article so that typographic
// variants of the same code collide. Typographic dashes become the ASCII
// hyphen, control characters and general-punctuation codepoints (zero-width
// spaces, NBSP and friends) are removed, and whitespace runs collapse to a
// single space. Case and letter scripts (Cyrillic, CJK) are preserved.
//
// The function is total and idempotent.
func NormalizeArticle(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r == '‒' || r == '–' || r == '—' || r == '−':
			b.WriteRune('-')
			lastSpace = false
		case r < 0x20 || r == 0x7F || (r >= 0x80 && r <= 0x9F) || r == ' ' || (r >= 0x2000 && r <= 0x206F):
			// stripped entirely
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
			}
			lastSpace = true
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

// NormalizeArticleFold is NormalizeArticle plus case folding, for joins that
// must ignore case.
func NormalizeArticleFold(s string) string {
	return strings.ToLower(NormalizeArticle(s))
}
