package models

import (
	"time"

	"baken/pkg/ticket"
)

// Bet is one entry of a ticket, in decode order.
type Bet struct {
	ID                  uint             `gorm:"primaryKey" json:"id"`
	CreatedAt           time.Time        `json:"created_at"`
	TicketID            uint             `gorm:"index;not null" json:"ticket_id"`
	Position            int              `gorm:"not null" json:"position"`
	BetTypeCode         string           `gorm:"size:1;not null" json:"bet_type_code"`
	BetTypeID           string           `gorm:"size:16;index;not null" json:"bet_type_id"`
	Label               string           `gorm:"size:255" json:"label"`
	Selection           ticket.Selection `gorm:"serializer:json" json:"selection"`
	StakePerCombination int64            `gorm:"not null" json:"stake_per_combination"`
	Combinations        int              `gorm:"not null" json:"combinations"`
	TotalStake          int64            `gorm:"not null" json:"total_stake"`
	Format              string           `gorm:"size:32" json:"format"`
	Detail              string           `gorm:"size:255" json:"detail"`
}

func NewBet(pos int, b ticket.BetEntry) Bet {
	return Bet{
		Position:            pos,
		BetTypeCode:         b.BetType.Code,
		BetTypeID:           b.BetType.ID,
		Label:               b.Label,
		Selection:           b.Selection,
		StakePerCombination: int64(b.StakePerCombination),
		Combinations:        b.Combinations,
		TotalStake:          int64(b.TotalStake),
		Format:              string(b.Format),
		Detail:              b.Detail,
	}
}
