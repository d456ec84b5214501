package models

import (
	"time"

	"baken/pkg/ticket"
)

// Ticket is one decoded betting ticket, keyed by its canonical code.
type Ticket struct {
	ID             uint         `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	Code           string       `gorm:"size:190;not null;uniqueIndex" json:"code"`
	FormatClass    int          `gorm:"not null" json:"format_class"`
	VenueCode      string       `gorm:"size:2;index;not null" json:"venue_code"`
	VenueID        string       `gorm:"size:32" json:"venue_id"`
	Year           int          `gorm:"index" json:"year"`
	Kai            int          `json:"kai"`
	Day            int          `json:"day"`
	Race           int          `json:"race"`
	TicketType     int          `gorm:"not null" json:"ticket_type"`
	TicketTypeName string       `gorm:"size:16" json:"ticket_type_name"`
	OfficeCode     string       `gorm:"size:4" json:"office_code"`
	BodyOffset     int          `gorm:"not null" json:"body_offset"`
	Score          int          `json:"score"`
	OffsetReason   string       `gorm:"size:32" json:"offset_reason"`
	Degraded       bool         `gorm:"default:false;index" json:"degraded"`
	TotalStake     int64        `gorm:"not null" json:"total_stake"`
	Source         string       `gorm:"size:64" json:"source"`
	Bets           []Bet        `gorm:"foreignKey:TicketID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"bets"`
	Sources        []ScanSource `gorm:"foreignKey:TicketID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"sources"`
}

// NewTicket flattens a decode outcome into rows. Sources are attached by
// the caller when the code came from a scan.
func NewTicket(code, source string, out ticket.ParseOutcome) Ticket {
	h := out.Header
	t := Ticket{
		Code:           code,
		FormatClass:    h.FormatClass,
		VenueCode:      h.VenueCode,
		Year:           h.Year,
		Kai:            h.Kai,
		Day:            h.Day,
		Race:           h.Race,
		TicketType:     int(h.TicketType),
		TicketTypeName: h.TicketType.String(),
		OfficeCode:     h.OfficeCode,
		BodyOffset:     out.BodyOffset,
		Score:          out.Score,
		OffsetReason:   out.OffsetReason,
		Degraded:       out.Degraded(),
		TotalStake:     int64(out.TotalStake()),
		Source:         source,
	}
	if v, ok := h.Venue(); ok {
		t.VenueID = v.ID
	}
	for i, b := range out.Bets {
		t.Bets = append(t.Bets, NewBet(i, b))
	}
	return t
}
