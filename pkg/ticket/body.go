package ticket

import (
	"fmt"
	"strconv"
	"strings"
)

// SelectionKind tells how a bet names its runners.
type SelectionKind string

const (
	SelectionStraight  SelectionKind = "straight"
	SelectionBox       SelectionKind = "box"
	SelectionWheel     SelectionKind = "wheel"
	SelectionFormation SelectionKind = "formation"
)

// Selection describes the runners a bet covers. Straight and box bets use
// Runners; wheels put the axis first in Groups followed by partner sets;
// formations hold one group per finishing position.
type Selection struct {
	Kind    SelectionKind `json:"kind"`
	Runners []int         `json:"runners,omitempty"`
	Groups  [][]int       `json:"groups,omitempty"`
	Pattern int           `json:"pattern,omitempty"`
}

func (s Selection) String() string {
	switch s.Kind {
	case SelectionBox:
		return "BOX " + joinInts(s.Runners, ",")
	case SelectionWheel:
		parts := make([]string, len(s.Groups))
		for i, g := range s.Groups {
			parts[i] = joinInts(g, ",")
		}
		return "wheel " + strings.Join(parts, " > ")
	case SelectionFormation:
		parts := make([]string, len(s.Groups))
		for i, g := range s.Groups {
			parts[i] = "{" + joinInts(g, ",") + "}"
		}
		return "formation " + strings.Join(parts, "-")
	}
	return joinInts(s.Runners, "-")
}

// Format labels multi-combination entries.
type Format string

const (
	FormatStraight       Format = ""
	FormatBox            Format = "box"
	FormatWheel          Format = "wheel"
	FormatWheelMulti     Format = "wheel-multi"
	FormatFormation      Format = "formation"
	FormatFormationMulti Format = "formation-multi"
)

// BetEntry is one decoded bet. TotalStake is always
// StakePerCombination * Combinations.
type BetEntry struct {
	BetType             BetType   `json:"bet_type"`
	Selection           Selection `json:"selection"`
	Label               string    `json:"label"`
	StakePerCombination int       `json:"stake_per_combination"`
	Combinations        int       `json:"combinations"`
	TotalStake          int       `json:"total_stake"`
	Format              Format    `json:"format,omitempty"`
	Detail              string    `json:"detail,omitempty"`
}

func newEntry(bt BetType, sel Selection, stake, combos int, format Format) BetEntry {
	e := BetEntry{
		BetType:             bt,
		Selection:           sel,
		Label:               sel.String(),
		StakePerCombination: stake,
		Combinations:        combos,
		TotalStake:          stake * combos,
		Format:              format,
	}
	if format != FormatStraight {
		e.Detail = fmt.Sprintf("%d combos x %d yen", combos, stake)
	}
	return e
}

// Offset reasons recorded on a ParseOutcome.
const (
	OffsetFixed    = "fixed-42"
	OffsetFallback = "fallback-nearby"
	OffsetDegraded = "degraded"
)

// ParseOutcome is the result of one decode. An empty Bets slice is the
// degraded mode: the header is usable, the bets must be entered by hand.
type ParseOutcome struct {
	Header       Header     `json:"header"`
	Bets         []BetEntry `json:"bets"`
	BodyOffset   int        `json:"body_offset"`
	Score        int        `json:"score"`
	OffsetReason string     `json:"offset_reason"`
}

// Degraded reports whether no bet could be decoded.
func (o ParseOutcome) Degraded() bool { return len(o.Bets) == 0 }

// TotalStake sums the stake of every bet.
func (o ParseOutcome) TotalStake() int {
	total := 0
	for _, b := range o.Bets {
		total += b.TotalStake
	}
	return total
}

// Decode decodes header and body of a canonical 190-digit code.
func Decode(code string) (ParseOutcome, error) {
	h, err := DecodeHeader(code)
	if err != nil {
		return ParseOutcome{}, err
	}
	return decodeBody(code, h), nil
}

// DecodeBody decodes the bets of code using the grammar h selects.
func DecodeBody(code string, h Header) (ParseOutcome, error) {
	if err := checkDigits(code, CodeLen, "canonical code"); err != nil {
		return ParseOutcome{}, err
	}
	return decodeBody(code, h), nil
}

// fallbackOffsets are the only alternatives to the nominal offset. A wider
// search on a checksum-free grammar finds too many spurious formations.
var fallbackOffsets = [...]int{NominalBodyOffset - 1, NominalBodyOffset + 1}

type attempt struct {
	bets   []BetEntry
	score  int
	offset int
}

func decodeBody(code string, h Header) ParseOutcome {
	g := grammarFor(h.TicketType)
	best := tryOffset(code, h, g, NominalBodyOffset)
	if !usable(best, h.TicketType) {
		for _, off := range fallbackOffsets {
			if c := tryOffset(code, h, g, off); c.score > best.score {
				best = c
			}
		}
	}

	if !usable(best, h.TicketType) {
		return ParseOutcome{
			Header:       h,
			Bets:         []BetEntry{},
			BodyOffset:   NominalBodyOffset,
			Score:        emptyScore(NominalBodyOffset),
			OffsetReason: OffsetDegraded,
		}
	}
	reason := OffsetFixed
	if best.offset != NominalBodyOffset {
		reason = OffsetFallback
	}
	return ParseOutcome{
		Header:       h,
		Bets:         best.bets,
		BodyOffset:   best.offset,
		Score:        best.score,
		OffsetReason: reason,
	}
}

func tryOffset(code string, h Header, g grammar, offset int) attempt {
	if g == nil {
		return attempt{score: emptyScore(offset), offset: offset}
	}
	bets := g.decode(code[offset:], h.FormatClass)
	return attempt{bets: bets, score: scoreBets(bets, offset, g), offset: offset}
}

func usable(a attempt, t TicketType) bool {
	if len(a.bets) == 0 {
		return false
	}
	positive := false
	for _, b := range a.bets {
		if b.TotalStake > 0 {
			positive = true
		} else if t == TicketFormation {
			return false
		}
	}
	if t == TicketFormation && a.score < 0 {
		return false
	}
	return positive
}

// Scoring weights. Like the noise thresholds these are tuned by hand.
const (
	entryWeight        = 20
	offsetPenalty      = 15
	maxEntries         = 20
	tooManyPenalty     = 200
	positiveBonus      = 12
	bandBonus          = 20
	roundBonus         = 8
	labelBonus         = 3
	nonPositivePenalty = 120
	outOfBandPenalty   = 60
	farOutPenalty      = 180
	overTotalPenalty   = 120
	emptyPenalty       = 1000

	// StakeUnit converts the 5-digit stake field to yen.
	StakeUnit = 100
	// MaxEntryStake stops a straight scan that ran off the real entries.
	MaxEntryStake     = 5_000_000
	plausibleStakeMin = 100
	plausibleStakeMax = 100_000
	farStake          = 300_000
	maxTotalStake     = 500_000
)

func emptyScore(offset int) int {
	return -emptyPenalty - abs(offset-NominalBodyOffset)
}

// scoreBets rates a candidate interpretation. It drives both offset search
// and entry-width choice.
func scoreBets(bets []BetEntry, offset int, g grammar) int {
	if len(bets) == 0 {
		return emptyScore(offset)
	}
	score := entryWeight*len(bets) - offsetPenalty*abs(offset-NominalBodyOffset)
	if len(bets) > maxEntries {
		score -= tooManyPenalty
	}

	total := 0
	for _, b := range bets {
		stake := b.TotalStake
		if stake <= 0 {
			score -= nonPositivePenalty
			continue
		}
		total += stake
		score += positiveBonus
		switch {
		case stake > farStake:
			score -= farOutPenalty
		case stake < plausibleStakeMin || stake > plausibleStakeMax:
			score -= outOfBandPenalty
		default:
			score += bandBonus
		}
		if stake%100 == 0 {
			score += roundBonus
		}
		if b.Label != "" {
			score += labelBonus
		}
	}
	if total > maxTotalStake {
		score -= overTotalPenalty
	}
	return score + g.bonus(bets)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func joinInts(xs []int, sep string) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, sep)
}
