package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentStatus is the lifecycle of a single payment attempt.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
)

// PaymentAttempt tracks a premium payment for a proposal.
type PaymentAttempt struct {
	gorm.Model
	ProposalID string        `gorm:"size:36;not null;index" json:"proposalId"`
	Amount     float64       `gorm:"not null" json:"amount"`
	Method     string        `gorm:"type:varchar(50)" json:"method"` // online, cheque, upi...
	Status     PaymentStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	Retries    int           `gorm:"default:0" json:"retries"`

	// Gateway details
	GatewayReference string `gorm:"type:varchar(100);index" json:"gatewayReference"`
	FailureReason    string `gorm:"type:text" json:"failureReason"`

	StartedAt *time.Time `json:"startedAt"`
	SettledAt *time.Time `json:"settledAt"`
}

func (PaymentAttempt) TableName() string {
	return "payment_attempts"
}
