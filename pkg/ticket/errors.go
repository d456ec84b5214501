package ticket

import "github.com/rotisserie/eris"

// ErrMalformed is returned when an input does not have the digit count or
// character set a decode step requires. It is a caller contract violation,
// not a data-quality signal: noisy reads are reported through Resolution and
// ParseOutcome values instead.
var ErrMalformed = eris.New("malformed ticket digits")

// checkDigits verifies s is exactly want decimal digits.
func checkDigits(s string, want int, what string) error {
	if len(s) != want {
		return eris.Wrapf(ErrMalformed, "%s: got %d digits, want %d", what, len(s), want)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return eris.Wrapf(ErrMalformed, "%s: non-digit %q at offset %d", what, s[i], i)
		}
	}
	return nil
}
