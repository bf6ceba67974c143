package models

import (
	"time"

	"gorm.io/gorm"
)

// VerificationCode holds an issued one-time code. Codes live here, never on the
// proposal, and only as a bcrypt hash.
type VerificationCode struct {
	gorm.Model
	ProposalID string    `gorm:"size:36;not null;index" json:"proposal_id"`
	Contact    string    `gorm:"size:255" json:"contact"`
	CodeHash   string    `gorm:"size:100;not null" json:"-"`
	ExpiresAt  time.Time `gorm:"not null;index" json:"expires_at"`
	Attempts   int       `gorm:"default:0" json:"attempts"`
	IsUsed     bool      `gorm:"default:false" json:"is_used"`
}
