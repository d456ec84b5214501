package ticket

// grammar decodes the body of one ticket type. The set is closed: every
// TicketType in TicketTypes maps to exactly one grammar in grammarFor.
type grammar interface {
	// decode reads bets from body, which starts at the candidate offset.
	decode(body string, format int) []BetEntry
	// bonus is the grammar's own contribution to scoreBets.
	bonus(bets []BetEntry) int
}

func grammarFor(t TicketType) grammar {
	switch t {
	case TicketNormal, TicketQuickPick:
		return straightGrammar{}
	case TicketBox:
		return boxGrammar{}
	case TicketWheel:
		return wheelGrammar{}
	case TicketFormation:
		return formationGrammar{}
	case TicketCheer:
		return cheerGrammar{}
	}
	return nil
}

const (
	stakeDigits = 5
	maskLen     = MaxRunner
	// widthMismatchPenalty favours the entry width the format class implies.
	widthMismatchPenalty = 10
)

// entryWidth is the straight entry width a format class implies:
// [bet 1][runner 2 x k][stake 5] for k = 1, 2, 3.
func entryWidth(format int) int {
	switch {
	case format <= 2:
		return 8
	case format <= 4:
		return 10
	}
	return 12
}

func uniqueWidths(first int, rest ...int) []int {
	out := []int{first}
	for _, w := range rest {
		if !containsInt(out, w) {
			out = append(out, w)
		}
	}
	return out
}

// straightGrammar covers normal and quick-pick tickets: repeated
// fixed-width entries terminated by filler.
type straightGrammar struct{}

func (g straightGrammar) decode(body string, format int) []BetEntry {
	return bestStraight(body, format, g)
}

func (straightGrammar) bonus([]BetEntry) int { return 0 }

// bestStraight tries every entry width and keeps the best-scoring read, so
// a misread format class does not cost the whole ticket.
func bestStraight(body string, format int, g grammar) []BetEntry {
	def := entryWidth(format)
	var best []BetEntry
	bestScore := 0
	for i, w := range uniqueWidths(def, 10, 8, 12) {
		bets := parseStraight(body, w)
		score := scoreBets(bets, NominalBodyOffset, g)
		if w != def {
			score -= widthMismatchPenalty
		}
		if i == 0 || score > bestScore {
			best, bestScore = bets, score
		}
	}
	return best
}

func parseStraight(body string, width int) []BetEntry {
	var bets []BetEntry
	for pos := 0; pos+width <= len(body); pos += width {
		chunk := body[pos : pos+width]
		bt, ok := LookupBetType(chunk[0])
		if !ok {
			break
		}
		stake := num(chunk[width-stakeDigits:]) * StakeUnit
		if stake <= 0 || stake > MaxEntryStake {
			break
		}
		runners := straightRunners(chunk, width)
		if len(runners) > bt.Runners || !validRunners(runners, bt.allowsRepeat()) {
			break
		}
		sel := Selection{Kind: SelectionStraight, Runners: runners}
		bets = append(bets, newEntry(bt, sel, stake, 1, FormatStraight))
	}
	return bets
}

// straightRunners reads the runner slots of one entry. Trailing zero slots
// are unused; a zero before a used slot is kept so validation rejects it.
func straightRunners(chunk string, width int) []int {
	h1 := num(chunk[1:3])
	switch width {
	case 10:
		if h2 := num(chunk[3:5]); h2 > 0 {
			return []int{h1, h2}
		}
	case 12:
		h2, h3 := num(chunk[3:5]), num(chunk[5:7])
		if h3 > 0 {
			return []int{h1, h2, h3}
		}
		if h2 > 0 {
			return []int{h1, h2}
		}
	}
	return []int{h1}
}

func validRunners(runners []int, allowRepeat bool) bool {
	for i, r := range runners {
		if r < 1 || r > MaxRunner {
			return false
		}
		if !allowRepeat && containsInt(runners[:i], r) {
			return false
		}
	}
	return true
}

// boxGrammar: [bet 1][runner slots 2 x N][stake per combination 5].
type boxGrammar struct{}

func boxSlots(format int) int {
	switch {
	case format <= 2:
		return 5
	case format <= 4:
		return 10
	}
	return 18
}

func (boxGrammar) decode(body string, format int) []BetEntry {
	slots := boxSlots(format)
	width := 1 + 2*slots + stakeDigits
	var bets []BetEntry
	for pos := 0; pos+width <= len(body); pos += width {
		chunk := body[pos : pos+width]
		bt, ok := LookupBetType(chunk[0])
		if !ok {
			break
		}
		runners, ok := boxRunners(chunk[1 : 1+2*slots])
		if !ok {
			break
		}
		stake := num(chunk[width-stakeDigits:]) * StakeUnit
		if stake <= 0 || stake > MaxEntryStake {
			break
		}
		combos := BoxCombinations(bt, len(runners))
		if combos < 1 {
			break
		}
		sel := Selection{Kind: SelectionBox, Runners: runners}
		bets = append(bets, newEntry(bt, sel, stake, combos, FormatBox))
	}
	return bets
}

func (boxGrammar) bonus([]BetEntry) int { return 0 }

// boxRunners requires the used slots to be a nonzero prefix with no repeats.
func boxRunners(slots string) ([]int, bool) {
	var runners []int
	done := false
	for i := 0; i+2 <= len(slots); i += 2 {
		r := num(slots[i : i+2])
		if r == 0 {
			done = true
			continue
		}
		if done {
			return nil, false
		}
		runners = append(runners, r)
	}
	if len(runners) == 0 || !validRunners(runners, false) {
		return nil, false
	}
	return runners, true
}

// parseMask turns an 18-character bitmask into runner numbers.
func parseMask(mask string) []int {
	var runners []int
	for i := 0; i < len(mask) && i < maskLen; i++ {
		if mask[i] == '1' {
			runners = append(runners, i+1)
		}
	}
	return runners
}

// wheelGrammar: [bet 1][pattern 1][mask 18 x k][stake 5][multi 1], where
// k is 2 for pair pools and 3 for trio pools.
type wheelGrammar struct{}

func (wheelGrammar) decode(body string, _ int) []BetEntry {
	if len(body) < 2 {
		return nil
	}
	bt, ok := LookupBetType(body[0])
	if !ok || bt.Runners < 2 {
		return nil
	}
	pattern := num(body[1:2])
	pos := 2
	if len(body) < pos+bt.Runners*maskLen+stakeDigits+1 {
		return nil
	}
	groups := make([][]int, bt.Runners)
	for i := range groups {
		groups[i] = parseMask(body[pos : pos+maskLen])
		pos += maskLen
	}
	stake := num(body[pos:pos+stakeDigits]) * StakeUnit
	multi := body[pos+stakeDigits] == '1'
	if stake <= 0 || stake > MaxEntryStake {
		return nil
	}

	combos := CrossCombinations(bt, groups)
	format := FormatWheel
	if multi {
		combos *= bt.MultiFactor()
		format = FormatWheelMulti
	}
	if combos < 1 {
		return nil
	}
	sel := Selection{Kind: SelectionWheel, Groups: groups, Pattern: pattern}
	return []BetEntry{newEntry(bt, sel, stake, combos, format)}
}

func (wheelGrammar) bonus([]BetEntry) int { return 0 }

// formationGrammar: [bet 1][delimiter 1][mask 18 x 3][stake 5][multi 1].
// Empty masks are dropped; pair pools use the first two groups left.
type formationGrammar struct{}

const formationGroups = 3

func (formationGrammar) decode(body string, _ int) []BetEntry {
	if len(body) < 2+formationGroups*maskLen+stakeDigits+1 {
		return nil
	}
	bt, ok := LookupBetType(body[0])
	if !ok || bt.Runners < 2 {
		return nil
	}
	pos := 2
	var groups [][]int
	for g := 0; g < formationGroups; g++ {
		if runners := parseMask(body[pos : pos+maskLen]); len(runners) > 0 {
			groups = append(groups, runners)
		}
		pos += maskLen
	}
	if len(groups) < bt.Runners {
		return nil
	}
	groups = groups[:bt.Runners]

	stake := num(body[pos:pos+stakeDigits]) * StakeUnit
	multi := body[pos+stakeDigits] == '1'
	if stake <= 0 || stake > MaxEntryStake {
		return nil
	}
	combos := CrossCombinations(bt, groups)
	format := FormatFormation
	if multi {
		combos *= bt.MultiFactor()
		format = FormatFormationMulti
	}
	if combos < 1 {
		return nil
	}
	sel := Selection{Kind: SelectionFormation, Groups: groups}
	return []BetEntry{newEntry(bt, sel, stake, combos, format)}
}

func (formationGrammar) bonus([]BetEntry) int { return 0 }

// cheerGrammar: a win and a place bet on the same runner at one stake.
type cheerGrammar struct{}

// cheerPairBonus rewards (or penalises) reads that match the cheer shape.
const cheerPairBonus = 120

func (g cheerGrammar) decode(body string, format int) []BetEntry {
	primary := bestStraight(body, format, g)
	if win, place, ok := cheerLegs(primary); ok {
		return normalizeCheer(win, place)
	}

	best := primary
	for _, w := range uniqueWidths(entryWidth(format), 8, 10, 12) {
		parsed := parseStraight(body, w)
		if win, place, ok := cheerLegs(parsed); ok {
			return normalizeCheer(win, place)
		}
		if len(parsed) > len(best) {
			best = parsed
		}
	}
	return best
}

func (cheerGrammar) bonus(bets []BetEntry) int {
	if _, _, ok := cheerLegs(bets); ok {
		return cheerPairBonus
	}
	return -cheerPairBonus
}

// cheerLegs finds the first win and place entries and reports whether they
// name the same runner with positive stakes.
func cheerLegs(bets []BetEntry) (win, place BetEntry, ok bool) {
	var haveWin, havePlace bool
	for _, b := range bets {
		switch {
		case b.BetType.ID == "tansho" && !haveWin:
			win, haveWin = b, true
		case b.BetType.ID == "fukusho" && !havePlace:
			place, havePlace = b, true
		}
	}
	if !haveWin || !havePlace {
		return win, place, false
	}
	if win.Label == "" || win.Label != place.Label {
		return win, place, false
	}
	return win, place, win.StakePerCombination > 0 && place.StakePerCombination > 0
}

// normalizeCheer records both legs at the lower decoded stake; a cheer
// ticket cannot carry unequal stakes.
func normalizeCheer(win, place BetEntry) []BetEntry {
	stake := win.StakePerCombination
	if place.StakePerCombination < stake {
		stake = place.StakePerCombination
	}
	return []BetEntry{
		newEntry(win.BetType, win.Selection, stake, 1, FormatStraight),
		newEntry(place.BetType, place.Selection, stake, 1, FormatStraight),
	}
}
