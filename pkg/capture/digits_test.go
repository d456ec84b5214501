package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanDigits(t *testing.T) {
	cases := map[string]struct {
		in, want string
	}{
		"plain":      {"0123456789", "0123456789"},
		"separators": {"12-34 56\n78", "12345678"},
		"full width": {"１２３4５", "12345"},
		"letters":    {"A1B2C3", "123"},
		"empty":      {"", ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanDigits(tc.in))
		})
	}
}
