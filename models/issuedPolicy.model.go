package models

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentSnapshot is the settled payment frozen into an issued policy.
type PaymentSnapshot struct {
	AttemptID uint      `json:"attemptId"`
	Method    string    `json:"method"`
	Reference string    `json:"reference"`
	Amount    float64   `json:"amount"`
	PaidAt    time.Time `json:"paidAt"`
}

// IssuedPolicy is produced once per proposal and never changes afterwards.
type IssuedPolicy struct {
	PolicyNumber      string           `json:"policyNumber"`
	CertificateNumber string           `json:"certificateNumber"`
	ProposalID        string           `json:"proposalId"`
	IssuedAt          time.Time        `json:"issuedAt"`
	InsurerName       string           `json:"insurerName"`
	Premium           float64          `json:"premium"`
	IDV               float64          `json:"idv,omitempty"`
	Customer          CustomerInfo     `json:"customer"`
	Policy            PolicyDetails    `json:"policy"`
	Vehicle           VehicleDetails   `json:"vehicle"`
	Liability         LiabilityDetails `json:"liability"`
	Nominee           NomineeDetails   `json:"nominee"`
	Payment           PaymentSnapshot  `json:"payment"`
	AddOns            []string         `json:"addOns"`
}

type IssuedPolicyRecord struct {
	PolicyNumber      string         `gorm:"primaryKey;size:50"`
	CertificateNumber string         `gorm:"size:60;uniqueIndex;not null"`
	ProposalID        string         `gorm:"size:36;uniqueIndex;not null"`
	IssuedAt          time.Time      `gorm:"not null"`
	Snapshot          datatypes.JSON `gorm:"not null"`
}

func (IssuedPolicyRecord) TableName() string {
	return "issued_policies"
}
