package ticket

const (
	// FragmentLen is the digit count of one scanned QR half.
	FragmentLen = 95
	// CodeLen is the digit count of the canonical two-half code.
	CodeLen = 2 * FragmentLen
	// NominalBodyOffset is where the bet body starts in a well-formed code.
	NominalBodyOffset = 42
	// MaxRunner is the highest horse number a JRA race can field.
	MaxRunner = 18
)

// BetType is one JRA wagering pool, keyed by its QR code digit.
type BetType struct {
	Code    string `json:"code"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Kanji   string `json:"kanji"`
	Runners int    `json:"runners"`
}

var betTypes = map[byte]BetType{
	'1': {Code: "1", ID: "tansho", Name: "win", Kanji: "単勝", Runners: 1},
	'2': {Code: "2", ID: "fukusho", Name: "place", Kanji: "複勝", Runners: 1},
	'3': {Code: "3", ID: "wakuren", Name: "bracket-quinella", Kanji: "枠連", Runners: 2},
	'5': {Code: "5", ID: "umaren", Name: "quinella", Kanji: "馬連", Runners: 2},
	'6': {Code: "6", ID: "umatan", Name: "exacta", Kanji: "馬単", Runners: 2},
	'7': {Code: "7", ID: "wide", Name: "wide", Kanji: "ワイド", Runners: 2},
	'8': {Code: "8", ID: "sanrenpuku", Name: "trio", Kanji: "3連複", Runners: 3},
	'9': {Code: "9", ID: "sanrentan", Name: "trifecta", Kanji: "3連単", Runners: 3},
}

// LookupBetType maps a QR code digit to its bet type.
func LookupBetType(code byte) (BetType, bool) {
	bt, ok := betTypes[code]
	return bt, ok
}

// Ordered reports whether finishing order matters for the pool.
func (b BetType) Ordered() bool {
	return b.ID == "umatan" || b.ID == "sanrentan"
}

// MultiFactor is the permutation multiplier a "multi" wheel or formation
// applies to its base combination count.
func (b BetType) MultiFactor() int {
	switch b.ID {
	case "umatan":
		return 2
	case "sanrenpuku":
		return 3
	case "sanrentan":
		return 6
	}
	return 1
}

// bracket numbers may repeat on a straight wakuren ticket (e.g. 3-3)
func (b BetType) allowsRepeat() bool {
	return b.ID == "wakuren"
}

// TicketType selects the body grammar (header character 14).
type TicketType int

const (
	TicketNormal TicketType = iota
	TicketBox
	TicketWheel
	TicketFormation
	TicketQuickPick
	TicketCheer
)

// TicketTypes lists every ticket type that has a body grammar.
var TicketTypes = []TicketType{TicketNormal, TicketBox, TicketWheel, TicketFormation, TicketQuickPick, TicketCheer}

func (t TicketType) String() string {
	switch t {
	case TicketNormal:
		return "normal"
	case TicketBox:
		return "box"
	case TicketWheel:
		return "wheel"
	case TicketFormation:
		return "formation"
	case TicketQuickPick:
		return "quick-pick"
	case TicketCheer:
		return "cheer"
	}
	return "unknown"
}

// Venue is a JRA racecourse.
type Venue struct {
	Code  string `json:"code"`
	ID    string `json:"id"`
	Name  string `json:"name"`
	Kanji string `json:"kanji"`
}

var venues = map[string]Venue{
	"01": {Code: "01", ID: "jra_sapporo", Name: "Sapporo", Kanji: "札幌"},
	"02": {Code: "02", ID: "jra_hakodate", Name: "Hakodate", Kanji: "函館"},
	"03": {Code: "03", ID: "jra_fukushima", Name: "Fukushima", Kanji: "福島"},
	"04": {Code: "04", ID: "jra_niigata", Name: "Niigata", Kanji: "新潟"},
	"05": {Code: "05", ID: "jra_tokyo", Name: "Tokyo", Kanji: "東京"},
	"06": {Code: "06", ID: "jra_nakayama", Name: "Nakayama", Kanji: "中山"},
	"07": {Code: "07", ID: "jra_chukyo", Name: "Chukyo", Kanji: "中京"},
	"08": {Code: "08", ID: "jra_kyoto", Name: "Kyoto", Kanji: "京都"},
	"09": {Code: "09", ID: "jra_hanshin", Name: "Hanshin", Kanji: "阪神"},
	"10": {Code: "10", ID: "jra_kokura", Name: "Kokura", Kanji: "小倉"},
}

// LookupVenue maps a two-digit venue code to a racecourse.
func LookupVenue(code string) (Venue, bool) {
	v, ok := venues[code]
	return v, ok
}
