package ticket

// RejectReason explains why a second fragment was declined.
type RejectReason string

const (
	ReasonNone            RejectReason = ""
	ReasonNoise           RejectReason = "noise"
	ReasonDuplicate       RejectReason = "duplicate"
	ReasonSameRole        RejectReason = "same-role"
	ReasonLowPlausibility RejectReason = "low-plausibility"
)

// Plausibility gate for an assembled code.
const (
	// DecisiveHeaderScore accepts an order on its header alone (max 15).
	DecisiveHeaderScore = 10
	// MinCombinedScore is the floor for codes whose header is not decisive
	// and whose body produced no positive-stake bet.
	MinCombinedScore = -400

	headerCandidateWeight = 20
	betCandidateWeight    = 30
)

// Candidate is one concatenation order and how plausible it looked.
type Candidate struct {
	Swapped     bool `json:"swapped"`
	HeaderScore int  `json:"header_score"`
	BodyScore   int  `json:"body_score"`
	Bets        int  `json:"bets"`
	Score       int  `json:"score"`
}

// Resolution is the outcome of pairing two fragments. Code is set only
// when the pairing was accepted.
type Resolution struct {
	Code      string         `json:"code,omitempty"`
	Swapped   bool           `json:"swapped"`
	First     Classification `json:"first"`
	Second    Classification `json:"second"`
	Candidate Candidate      `json:"candidate"`
	Reason    RejectReason   `json:"reason,omitempty"`
}

// Accepted reports whether the pairing produced a canonical code.
func (r Resolution) Accepted() bool { return r.Reason == ReasonNone }

// Resolve orders two fragments into a canonical code, or declines the
// second one. seen lists digits already accepted earlier in the session.
func Resolve(first, second Fragment, seen ...string) (Resolution, error) {
	if err := checkDigits(first.Digits, FragmentLen, "first fragment"); err != nil {
		return Resolution{}, err
	}
	if err := checkDigits(second.Digits, FragmentLen, "second fragment"); err != nil {
		return Resolution{}, err
	}

	res := Resolution{First: classify(first.Digits), Second: classify(second.Digits)}
	if second.Digits == first.Digits || contains(seen, second.Digits) {
		res.Reason = ReasonDuplicate
		return res, nil
	}
	if res.First.Role != RoleUnknown && res.First.Role == res.Second.Role {
		res.Reason = ReasonSameRole
		return res, nil
	}

	a, b := first.Digits, second.Digits
	ab := scoreCandidate(a+b, false)
	ba := scoreCandidate(b+a, true)

	var pick Candidate
	if swapped, ok := roleOrder(res.First.Role, res.Second.Role); ok {
		pick = ab
		if swapped {
			pick = ba
		}
	} else {
		pick = betterCandidate(ab, ba, a, b)
	}
	res.Candidate = pick
	res.Swapped = pick.Swapped

	if !plausible(pick) {
		res.Reason = ReasonLowPlausibility
		return res, nil
	}
	if pick.Swapped {
		res.Code = b + a
	} else {
		res.Code = a + b
	}
	return res, nil
}

// roleOrder decides the order from roles when they are conclusive.
func roleOrder(r1, r2 Role) (swapped, ok bool) {
	switch {
	case r1 == RoleFront && r2 != RoleFront:
		return false, true
	case r2 == RoleFront && r1 != RoleFront:
		return true, true
	case r2 == RoleBack && r1 != RoleBack:
		return false, true
	case r1 == RoleBack && r2 != RoleBack:
		return true, true
	}
	return false, false
}

func scoreCandidate(code string, swapped bool) Candidate {
	c := Candidate{Swapped: swapped, HeaderScore: codePlausibility(code)}
	out := decodeBody(code, decodeHeader(code))
	c.BodyScore = out.Score
	for _, bet := range out.Bets {
		if bet.TotalStake > 0 {
			c.Bets++
		}
	}
	c.Score = c.HeaderScore*headerCandidateWeight + c.BodyScore + c.Bets*betCandidateWeight
	return c
}

// betterCandidate picks between a+b and b+a. Ties fall back to header
// score, then to putting the half with less trailing filler first.
func betterCandidate(ab, ba Candidate, a, b string) Candidate {
	switch {
	case ab.Score != ba.Score:
		if ba.Score > ab.Score {
			return ba
		}
		return ab
	case ab.HeaderScore != ba.HeaderScore:
		if ba.HeaderScore > ab.HeaderScore {
			return ba
		}
		return ab
	}
	if alignedFiller(b) < alignedFiller(a) {
		return ba
	}
	return ab
}

func plausible(c Candidate) bool {
	if c.HeaderScore >= DecisiveHeaderScore {
		return true
	}
	return c.Bets > 0 || c.Score >= MinCombinedScore
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
