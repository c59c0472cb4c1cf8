package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// SanitizeString normalizes free text to NFC, drops control characters other
// than newline and tab, trims, and cuts to at most maxLen runes.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, norm.NFC.String(input))
	return truncateRunes(strings.TrimSpace(cleaned), maxLen)
}

// SanitizeCode folds full-width forms (ＳＰＲＩＮＧ１０) to ASCII via NFKC,
// removes all whitespace and upper-cases. Used for coupon codes and SKUs typed
// on Japanese keyboards.
func SanitizeCode(input string, maxLen int) string {
	folded := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return -1
		}
		return r
	}, norm.NFKC.String(input))
	return truncateRunes(strings.ToUpper(folded), maxLen)
}

func truncateRunes(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	n := 0
	for i := range s {
		if n == maxLen {
			return strings.TrimSpace(s[:i])
		}
		n++
	}
	return s
}
