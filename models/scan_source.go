package models

import "time"

// ScanSource records how one half of a ticket was captured.
type ScanSource struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	TicketID    uint      `gorm:"index;not null" json:"ticket_id"`
	Slot        int       `gorm:"not null" json:"slot"` // 1 or 2, in capture order
	Engine      string    `gorm:"size:32" json:"engine"`
	Profile     string    `gorm:"size:32" json:"profile"`
	Role        string    `gorm:"size:16" json:"role"`
	HeaderScore int       `json:"header_score"`
	TailRun     int       `json:"tail_run"`
	FileName    string    `gorm:"size:255" json:"file_name"`
}
