package capture

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"baken/pkg/ticket"
)

// EventKind tells the caller what happened to one read.
type EventKind string

const (
	// EventIgnored: wrong length, a half the session already holds, or a
	// read after the session completed. Nothing to show the user.
	EventIgnored EventKind = "ignored"
	// EventRejected: the read was declined; prompt for a re-scan.
	EventRejected EventKind = "rejected"
	// EventFirst: the first half is held; prompt for the other one.
	EventFirst EventKind = "first-accepted"
	// EventCompleted: both halves are held and Code is the canonical code.
	EventCompleted EventKind = "completed"
)

// Event is the result of Session.Accept.
type Event struct {
	Kind           EventKind             `json:"kind"`
	Reason         ticket.RejectReason   `json:"reason,omitempty"`
	Classification ticket.Classification `json:"classification"`
	Code           string                `json:"code,omitempty"`
	Resolution     *ticket.Resolution    `json:"resolution,omitempty"`
}

const (
	// HistoryLimit bounds the debug history kept per session.
	HistoryLimit = 200
	// DecodedLimit bounds the completed codes remembered for re-scan
	// detection. The oldest are forgotten first.
	DecodedLimit = 500
)

// Half is one held fragment with its classification.
type Half struct {
	Fragment       ticket.Fragment       `json:"fragment"`
	Classification ticket.Classification `json:"classification"`
}

// Session accumulates the two halves of one ticket across noisy reads.
// A Session is not safe for concurrent use.
type Session struct {
	ID      string
	Created time.Time

	first, second *Half
	resolution    *ticket.Resolution
	decoded       []string
	history       []string

	firstNoise, secondNoise ticket.NoiseThresholds
	log                     *zap.Logger
}

type SessionOption func(*Session)

func WithLogger(l *zap.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithNoise overrides the noise thresholds for the first and second slot.
func WithNoise(first, second ticket.NoiseThresholds) SessionOption {
	return func(s *Session) {
		s.firstNoise, s.secondNoise = first, second
	}
}

func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		ID:          uuid.NewString(),
		Created:     time.Now().UTC(),
		firstNoise:  ticket.FirstSlotNoise,
		secondNoise: ticket.SecondSlotNoise,
		log:         zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With(zap.String("session", s.ID))
	return s
}

// Accept feeds one raw read into the session.
func (s *Session) Accept(raw string, meta ticket.CaptureMeta) Event {
	if s.resolution != nil {
		return Event{Kind: EventIgnored}
	}
	digits := CleanDigits(raw)
	if len(digits) != ticket.FragmentLen {
		return Event{Kind: EventIgnored}
	}
	if s.holds(digits) {
		return Event{Kind: EventIgnored}
	}

	th := s.firstNoise
	if s.first != nil {
		th = s.secondNoise
	}
	// length is checked above, so IsNoise cannot fail here
	if noise, _ := ticket.IsNoise(digits, th); noise {
		s.debugf("rejected: counting-sequence noise %s", snippet(digits, 20))
		return Event{Kind: EventRejected, Reason: ticket.ReasonNoise}
	}

	class, _ := ticket.Classify(digits)
	s.debugf("hdr 1:%s 2-3:%s 7-8:%s 9-10:%s 11-12:%s 13-14:%s type:%s",
		digits[0:1], digits[1:3], digits[6:8], digits[8:10], digits[10:12], digits[12:14], digits[14:15])
	if v, ok := ticket.LookupVenue(digits[1:3]); ok {
		s.debugf("hdr venue:%s yy:%s kai:%s day:%s race:%s", v.Name, digits[6:8], digits[8:10], digits[10:12], digits[12:14])
	}
	s.debugf("candidate role=%s hdr=%d tail=%d engine=%s profile=%s", class.Role, class.HeaderScore, class.TailRun, meta.Engine, meta.Profile)

	frag := ticket.Fragment{Digits: digits, Meta: meta}
	if s.first == nil {
		s.first = &Half{Fragment: frag, Classification: class}
		return Event{Kind: EventFirst, Classification: class}
	}

	res, err := ticket.Resolve(s.first.Fragment, frag)
	if err != nil {
		s.log.Error("resolve", zap.Error(err))
		return Event{Kind: EventIgnored}
	}
	if !res.Accepted() {
		s.debugf("rejected: %s role1=%s role2=%s score=%d", res.Reason, res.First.Role, res.Second.Role, res.Candidate.Score)
		return Event{Kind: EventRejected, Reason: res.Reason, Classification: class, Resolution: &res}
	}
	// Two tickets may share a printed half, so only the assembled code
	// identifies a re-scan. Both slots are cleared so the next read starts
	// a fresh ticket.
	if contains(s.decoded, res.Code) {
		s.debugf("rejected: ticket already decoded in this session %s", snippet(res.Code, 20))
		s.first = nil
		res.Code, res.Reason = "", ticket.ReasonDuplicate
		return Event{Kind: EventRejected, Reason: ticket.ReasonDuplicate, Classification: class, Resolution: &res}
	}
	s.second = &Half{Fragment: frag, Classification: class}
	s.resolution = &res
	s.debugf("completed: role1=%s role2=%s swapped=%t", res.First.Role, res.Second.Role, res.Swapped)
	return Event{Kind: EventCompleted, Classification: class, Code: res.Code, Resolution: &res}
}

// Reset clears both slots for the next ticket. A completed code is
// remembered so a re-scan of the same ticket is reported as duplicate.
func (s *Session) Reset() {
	if s.resolution != nil && !contains(s.decoded, s.resolution.Code) {
		s.decoded = append(s.decoded, s.resolution.Code)
		if over := len(s.decoded) - DecodedLimit; over > 0 {
			s.decoded = append(s.decoded[:0:0], s.decoded[over:]...)
		}
	}
	s.clearSlots()
	s.debugf("reset")
}

// Discard clears both slots without remembering the completed code, for
// a ticket that could not be stored and must be scanned again.
func (s *Session) Discard() {
	s.clearSlots()
	s.debugf("discarded")
}

// Forget drops a remembered code so it can be decoded again.
func (s *Session) Forget(code string) {
	for i, c := range s.decoded {
		if c == code {
			s.decoded = append(s.decoded[:i], s.decoded[i+1:]...)
			s.debugf("forgot %s", snippet(code, 20))
			return
		}
	}
}

func (s *Session) clearSlots() {
	s.first, s.second, s.resolution = nil, nil, nil
}

// Completed reports whether both halves have been resolved.
func (s *Session) Completed() bool { return s.resolution != nil }

// Code is the canonical code once the session completed.
func (s *Session) Code() string {
	if s.resolution == nil {
		return ""
	}
	return s.resolution.Code
}

// Halves returns the held halves in slot order (not code order).
func (s *Session) Halves() []Half {
	var out []Half
	for _, h := range []*Half{s.first, s.second} {
		if h != nil {
			out = append(out, *h)
		}
	}
	return out
}

// History returns a copy of the debug lines, oldest first.
func (s *Session) History() []string {
	return append([]string(nil), s.history...)
}

func (s *Session) holds(digits string) bool {
	return (s.first != nil && s.first.Fragment.Digits == digits) ||
		(s.second != nil && s.second.Fragment.Digits == digits)
}

func (s *Session) debugf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	s.history = append(s.history, line)
	if over := len(s.history) - HistoryLimit; over > 0 {
		s.history = append(s.history[:0:0], s.history[over:]...)
	}
	s.log.Debug(line)
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

// State is a serialisable snapshot of a session.
type State struct {
	ID        string    `json:"id"`
	Created   time.Time `json:"created"`
	Completed bool      `json:"completed"`
	Code      string    `json:"code,omitempty"`
	Halves    []Half    `json:"halves"`
	History   []string  `json:"history"`
}

func (s *Session) State() State {
	return State{
		ID:        s.ID,
		Created:   s.Created,
		Completed: s.Completed(),
		Code:      s.Code(),
		Halves:    s.Halves(),
		History:   s.History(),
	}
}
