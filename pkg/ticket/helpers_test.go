package ticket

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Header prefixes used across tests: format 1, Tokyo, 2024, kai 2, day 3,
// race 11, followed by the ticket type digit.
const (
	hdrNormal    = "10500024020311" + "0"
	hdrBox       = "30500024020311" + "1"
	hdrWheel     = "10500024020311" + "2"
	hdrFormation = "10500024020311" + "3"
	hdrCheer     = "10500024020311" + "5"
)

// buildCode pads header with zeros up to the nominal body offset, appends
// body and zero-pads the result to a full canonical code.
func buildCode(t *testing.T, header, body string) string {
	t.Helper()
	code := header + strings.Repeat("0", NominalBodyOffset-len(header)) + body
	require.LessOrEqual(t, len(code), CodeLen)
	return code + strings.Repeat("0", CodeLen-len(code))
}

// filler renders the aligned padding pattern for indexes [from, to).
func filler(from, to int) string {
	var b strings.Builder
	for i := from; i < to; i++ {
		b.WriteByte(byte('0' + i%10))
	}
	return b.String()
}

// mask renders an 18-character runner bitmask.
func mask(runners ...int) string {
	b := []byte(strings.Repeat("0", MaxRunner))
	for _, r := range runners {
		b[r-1] = '1'
	}
	return string(b)
}

// backFragment is a realistic back half: a short data prefix followed by
// the printed counting filler.
func backFragment() string {
	return "07290531840266" + filler(14, FragmentLen)
}

// frontFragment is a well-formed front half carrying a single win bet.
func frontFragment(t *testing.T) string {
	t.Helper()
	return buildCode(t, hdrNormal, "10700012")[:FragmentLen]
}
