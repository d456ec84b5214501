package ticket

// Role is the tentative position of a fragment within a ticket.
type Role int

const (
	RoleUnknown Role = iota
	RoleFront
	RoleBack
)

func (r Role) String() string {
	switch r {
	case RoleFront:
		return "front"
	case RoleBack:
		return "back"
	}
	return "unknown"
}

// MarshalText renders the role by name.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// CaptureMeta describes how a fragment was read. Informational only.
type CaptureMeta struct {
	Engine  string `json:"engine,omitempty"`
	Profile string `json:"profile,omitempty"`
}

// Fragment is one optical read of a QR half.
type Fragment struct {
	Digits string      `json:"digits"`
	Meta   CaptureMeta `json:"meta"`
}

// Classification is derived from a fragment's digits alone.
type Classification struct {
	Role        Role `json:"role"`
	HeaderScore int  `json:"header_score"`
	TailRun     int  `json:"tail_run"`
}

// Role cutoffs. Header scores range 0..13.
const (
	FrontHeaderScore = 10
	BackHeaderScore  = 5
	BackTailRun      = 16
)

// Classify scores a 95-digit fragment and assigns its tentative role.
func Classify(digits string) (Classification, error) {
	if err := checkDigits(digits, FragmentLen, "fragment"); err != nil {
		return Classification{}, err
	}
	return classify(digits), nil
}

func classify(digits string) Classification {
	c := Classification{
		HeaderScore: headerPlausibility(digits),
		TailRun:     tailRun(digits),
	}
	switch {
	case c.HeaderScore >= FrontHeaderScore:
		c.Role = RoleFront
	case c.HeaderScore <= BackHeaderScore && c.TailRun >= BackTailRun:
		c.Role = RoleBack
	}
	return c
}

// NoiseThresholds tunes the counting-sequence detector. The values are
// empirical; recalibrate against real scans rather than deriving them.
type NoiseThresholds struct {
	// SeqRatio rejects fragments whose share of +1 steps reaches it,
	// unless the steps are confined to a filler tail behind real data.
	SeqRatio float64 `mapstructure:"seq_ratio"`
	// TailRun rejects fragments whose trailing +1 run reaches it.
	TailRun int `mapstructure:"tail_run"`
	// LeadingZeros and LeadingZerosSeqRatio reject zero-padded counting reads.
	LeadingZeros         int     `mapstructure:"leading_zeros"`
	LeadingZerosSeqRatio float64 `mapstructure:"leading_zeros_seq_ratio"`
}

var (
	// FirstSlotNoise applies to the first fragment of a scan session.
	FirstSlotNoise = NoiseThresholds{SeqRatio: 0.65, TailRun: 82, LeadingZeros: 6, LeadingZerosSeqRatio: 0.55}
	// SecondSlotNoise is looser so sparse back halves survive.
	SecondSlotNoise = NoiseThresholds{SeqRatio: 0.75, TailRun: 82, LeadingZeros: 6, LeadingZerosSeqRatio: 0.60}
)

const (
	// HardNoiseSeqRatio rejects a fragment outright, whatever its header says.
	HardNoiseSeqRatio = 0.90
	// a data prefix needs this many digits and must itself look unlike a
	// counting sequence for a long +1 tail to count as ticket filler
	minDataPrefix        = 12
	maxDataPrefixSeqRate = 0.5
)

// IsNoise reports whether a fragment looks like an optical misread that
// degenerated into a counting sequence.
func IsNoise(digits string, th NoiseThresholds) (bool, error) {
	if err := checkDigits(digits, FragmentLen, "fragment"); err != nil {
		return false, err
	}
	return noisy(digits, th), nil
}

func noisy(d string, th NoiseThresholds) bool {
	ratio := sequentialRatio(d)
	tail := tailRun(d)
	if ratio >= HardNoiseSeqRatio {
		return true
	}
	if ratio >= th.SeqRatio && !fillerTailed(d, tail) {
		return true
	}
	if tail >= th.TailRun {
		return true
	}
	return leadingRun(d, '0') >= th.LeadingZeros && ratio >= th.LeadingZerosSeqRatio
}

// fillerTailed reports whether d is real data followed by a counting filler.
func fillerTailed(d string, tail int) bool {
	if tail < BackTailRun {
		return false
	}
	prefix := d[:len(d)-tail]
	return len(prefix) >= minDataPrefix && sequentialRatio(prefix) < maxDataPrefixSeqRate
}

func isStep(prev, cur byte) bool {
	return (prev-'0'+1)%10 == cur-'0'
}

// sequentialRatio is the share of adjacent pairs where next == prev+1 mod 10.
func sequentialRatio(d string) float64 {
	if len(d) < 2 {
		return 0
	}
	hits := 0
	for i := 1; i < len(d); i++ {
		if isStep(d[i-1], d[i]) {
			hits++
		}
	}
	return float64(hits) / float64(len(d)-1)
}

// tailRun is the length of the trailing run of +1 steps, counted in digits.
func tailRun(d string) int {
	if len(d) < 2 {
		return 0
	}
	run := 1
	for i := len(d) - 1; i > 0; i-- {
		if !isStep(d[i-1], d[i]) {
			break
		}
		run++
	}
	return run
}

func leadingRun(d string, ch byte) int {
	n := 0
	for n < len(d) && d[n] == ch {
		n++
	}
	return n
}

// alignedFiller counts trailing digits equal to their index mod 10, the
// padding pattern printed after the last bet.
func alignedFiller(d string) int {
	n := 0
	for i := len(d) - 1; i >= 0; i-- {
		if int(d[i]-'0') != i%10 {
			break
		}
		n++
	}
	return n
}
