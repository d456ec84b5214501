package capture

import (
	"strings"

	"golang.org/x/text/width"
)

// CleanDigits folds full-width digits to ASCII and drops everything that is
// not a decimal digit. Readers return the QR payload with separators,
// whitespace, or full-width forms depending on the engine.
func CleanDigits(raw string) string {
	folded := width.Fold.String(raw)
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, folded)
}

// snippet shortens s for debug lines.
func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
