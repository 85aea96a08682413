package service

import (
	"strings"
	"unicode"
)

// cleanProviderText makes text from the messaging provider safe for a Postgres text
// column: invalid UTF-8 and NUL bytes are dropped, other control characters except
// line breaks and tabs become spaces, and the result is trimmed.
func cleanProviderText(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.Map(func(r rune) rune {
		switch {
		case r == 0:
			return -1
		case r == '\n' || r == '\t':
			return r
		case unicode.IsControl(r):
			return ' '
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
