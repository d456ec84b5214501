package ticket

// Header holds the fixed-offset fields at the front of a canonical code.
// Values are kept as decoded; plausibility is judged by scoring, not here.
type Header struct {
	FormatClass int        `json:"format_class"`
	VenueCode   string     `json:"venue_code"`
	Year        int        `json:"year"`
	Kai         int        `json:"kai"`
	Day         int        `json:"day"`
	Race        int        `json:"race"`
	TicketType  TicketType `json:"ticket_type"`
	OfficeCode  string     `json:"office_code"`
}

// centuryPivot splits two-digit years between the 1900s and 2000s.
const centuryPivot = 50

// DecodeHeader projects the header fields out of a 190-digit code.
func DecodeHeader(code string) (Header, error) {
	if err := checkDigits(code, CodeLen, "canonical code"); err != nil {
		return Header{}, err
	}
	return decodeHeader(code), nil
}

func decodeHeader(code string) Header {
	year := num(code[6:8])
	if year < centuryPivot {
		year += 2000
	} else {
		year += 1900
	}
	return Header{
		FormatClass: num(code[0:1]),
		VenueCode:   code[1:3],
		Year:        year,
		Kai:         num(code[8:10]),
		Day:         num(code[10:12]),
		Race:        num(code[12:14]),
		TicketType:  TicketType(num(code[14:15])),
		OfficeCode:  code[28:32],
	}
}

// Venue resolves the venue code, if it is a known JRA course.
func (h Header) Venue() (Venue, bool) {
	return LookupVenue(h.VenueCode)
}

// headerPlausibility awards points for header fields that fall in their
// legal ranges. s must hold at least the first 15 digits of a code.
func headerPlausibility(s string) int {
	score := 0
	if f := num(s[0:1]); f >= 1 && f <= 5 {
		score += 2
	}
	if v := num(s[1:3]); v >= 1 && v <= 10 {
		score += 4
	}
	if y := num(s[6:8]); y >= 0 && y <= 99 {
		score++
	}
	if k := num(s[8:10]); k >= 1 && k <= 8 {
		score++
	}
	if d := num(s[10:12]); d >= 1 && d <= 12 {
		score++
	}
	if r := num(s[12:14]); r >= 1 && r <= 12 {
		score += 2
	}
	if t := num(s[14:15]); t >= 0 && t <= 5 {
		score += 2
	}
	return score
}

// codePlausibility extends headerPlausibility with a check that the body
// starts with a bet type digit at the nominal offset.
func codePlausibility(code string) int {
	score := headerPlausibility(code)
	if _, ok := LookupBetType(code[NominalBodyOffset]); ok {
		score += 2
	}
	return score
}

// num parses a run of ASCII digits. Callers validate the input first.
func num(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}
