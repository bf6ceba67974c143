package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProposalStatus is the lifecycle state of a proposal.
type ProposalStatus string

const (
	ProposalDraft     ProposalStatus = "DRAFT"
	ProposalSubmitted ProposalStatus = "SUBMITTED"
	ProposalApproved  ProposalStatus = "APPROVED"
	ProposalRejected  ProposalStatus = "REJECTED"
	ProposalConverted ProposalStatus = "CONVERTED" // terminal
)

// CustomerType distinguishes individual from corporate customers.
type CustomerType string

const (
	CustomerIndividual CustomerType = "INDIVIDUAL"
	CustomerCorporate  CustomerType = "CORPORATE"
)

// KYCStatus tracks identity verification for a proposal.
type KYCStatus string

const (
	KYCPending  KYCStatus = "pending"
	KYCVerified KYCStatus = "verified"
	KYCRejected KYCStatus = "rejected"
)

// QuoteStatus flips to CONVERTED exactly once, together with the proposal.
type QuoteStatus string

const (
	QuotePending   QuoteStatus = "PENDING"
	QuoteConverted QuoteStatus = "CONVERTED"
)

// Policy attribute codes used by the eligibility rules.
const (
	PolicyTypeGenMotor    = "GEN_MOTOR"
	PolicyForRollover     = "ROLLOVER"
	PolicyForNew          = "NEW"
	VehicleClassPrivate   = "PRIVATE"
	VehicleTypePrivate    = "PRIVATE"
	VehicleTypePrivateCar = "PRIVATE CAR"

	PolicyTermSAOD  = "SAOD"
	PolicyTermComp1 = "COMP_1"
	PolicyTermComp2 = "COMP_2"
	PolicyTermComp3 = "COMP_3"
)

type CustomerInfo struct {
	CustomerType CustomerType `json:"customerType,omitempty" validate:"omitempty,oneof=INDIVIDUAL CORPORATE"`
	Title        string       `json:"title,omitempty"`
	FirstName    string       `json:"firstName,omitempty" validate:"required_if=CustomerType INDIVIDUAL"`
	LastName     string       `json:"lastName,omitempty" validate:"required_if=CustomerType INDIVIDUAL"`
	CompanyName  string       `json:"companyName,omitempty" validate:"required_if=CustomerType CORPORATE"`
	Email        string       `json:"email,omitempty" validate:"required,email"`
	Phone        string       `json:"phone,omitempty" validate:"required,mobile"`
	Address      string       `json:"address,omitempty" validate:"required"`
	City         string       `json:"city,omitempty" validate:"required"`
	State        string       `json:"state,omitempty" validate:"required"`
	Pincode      string       `json:"pincode,omitempty" validate:"required,pincode"`
	GSTIN        string       `json:"gstin,omitempty"`
}

// DisplayName is the individual's full name or the company name.
func (c CustomerInfo) DisplayName() string {
	if c.CustomerType == CustomerCorporate {
		return c.CompanyName
	}
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

type PolicyDetails struct {
	PolicyType        string  `json:"policyType,omitempty"`
	PolicyFor         string  `json:"policyFor,omitempty"`
	VehicleClass      string  `json:"vehicleClass,omitempty"`
	VehicleType       string  `json:"vehicleType,omitempty"`
	OEM               string  `json:"oem,omitempty"`
	Model             string  `json:"model,omitempty"`
	Variant           string  `json:"variant,omitempty"`
	YearOfManufacture string  `json:"yearOfManufacture,omitempty"`
	RegistrationCity  string  `json:"registrationCity,omitempty"`
	ExShowroomPrice   float64 `json:"exShowroomPrice,omitempty"`
	PolicyTerm        string  `json:"policyTerm,omitempty"`
	QuotationDate     string  `json:"quotationDate,omitempty"`
}

type SelectedQuote struct {
	QuoteID      string      `json:"quoteId,omitempty"`
	CompanyName  string      `json:"companyName"`
	TotalPremium float64     `json:"totalPremium"`
	IDV          float64     `json:"idv,omitempty"`
	Status       QuoteStatus `json:"status"`
	PolicyNumber string      `json:"policyNumber,omitempty"`
	ConvertedAt  *time.Time  `json:"convertedAt,omitempty"`
}

type PanValidation struct {
	Valid bool   `json:"valid"`
	PAN   string `json:"pan,omitempty"`
	Name  string `json:"name,omitempty"`
}

// PreviousPolicyDetails is captured only when the rollover rules require it.
// PremiumPaid is a pointer so that "never entered" is distinguishable from zero.
type PreviousPolicyDetails struct {
	ODPolicyNumber string   `json:"odPolicyNumber,omitempty" validate:"required"`
	ODInsurer      string   `json:"odInsurer,omitempty" validate:"required"`
	ODFromDate     string   `json:"odFromDate,omitempty" validate:"required"`
	ODToDate       string   `json:"odToDate,omitempty" validate:"required"`
	TPPolicyNumber string   `json:"tpPolicyNumber,omitempty" validate:"required"`
	TPInsurer      string   `json:"tpInsurer,omitempty" validate:"required"`
	TPFromDate     string   `json:"tpFromDate,omitempty" validate:"required"`
	TPToDate       string   `json:"tpToDate,omitempty" validate:"required"`
	PremiumPaid    *float64 `json:"previousPremiumPaid,omitempty"`
	NCBPercent     *float64 `json:"ncbPercent,omitempty"`
}

type VehicleDetails struct {
	ChassisNumber      string `json:"chassisNumber,omitempty" validate:"required"`
	EngineNumber       string `json:"engineNumber,omitempty" validate:"required"`
	RegistrationNumber string `json:"registrationNumber,omitempty"`
	Financier          string `json:"financier,omitempty"`
}

type LiabilityDetails struct {
	PAOwnerDriver     bool `json:"paOwnerDriver"`
	PaidDriver        bool `json:"paidDriver"`
	UnnamedPassengers bool `json:"unnamedPassengers"`
	LLPaidDriver      bool `json:"llPaidDriver"`
	LLEmployees       bool `json:"llEmployees"`
}

type NomineeDetails struct {
	Name         string `json:"name,omitempty" validate:"required,nomineename"`
	Relationship string `json:"relationship,omitempty" validate:"required"`
	Contact      string `json:"contact,omitempty" validate:"required,mobile"`
	Email        string `json:"email,omitempty" validate:"required,email"`
	Sex          string `json:"sex,omitempty" validate:"required"`
	DateOfBirth  string `json:"dateOfBirth,omitempty" validate:"required,datetime=2006-01-02"`
}

type PaymentDeclaration struct {
	PaymentMode         string `json:"paymentMode,omitempty" validate:"required"`
	DeclarationAccepted bool   `json:"declarationAccepted,omitempty" validate:"required"`
}

// Proposal is the canonical, normalized proposal record.
type Proposal struct {
	ID                    string                 `json:"id"`
	CustomerInfo          CustomerInfo           `json:"customerInfo"`
	PolicyDetails         PolicyDetails          `json:"policyDetails"`
	SelectedQuote         *SelectedQuote         `json:"selectedQuote"`
	SelectedAddOns        []string               `json:"selectedAddOns"`
	KYCStatus             KYCStatus              `json:"kycStatus"`
	KYCRejectionReason    string                 `json:"kycRejectionReason,omitempty"`
	CKYCNumber            string                 `json:"ckycNumber,omitempty"`
	KYCDocuments          []KYCDocument          `json:"kycDocuments,omitempty"`
	PanValidation         PanValidation          `json:"panValidation"`
	PreviousPolicyDetails *PreviousPolicyDetails `json:"previousPolicyDetails,omitempty"`
	VehicleDetails        VehicleDetails         `json:"vehicleDetails"`
	LiabilityDetails      LiabilityDetails       `json:"liabilityDetails"`
	NomineeDetails        NomineeDetails         `json:"nomineeDetails"`
	PaymentDeclaration    PaymentDeclaration     `json:"paymentDeclaration"`
	Status                ProposalStatus         `json:"status"`
	NeedsCustomerInfo     bool                   `json:"needsCustomerInfo"`
	FurthestStage         Stage                  `json:"furthestStage,omitempty"`
	Version               int                    `json:"version"`
	CreatedAt             time.Time              `json:"createdAt"`
	UpdatedAt             time.Time              `json:"updatedAt"`
}

// HasQuote reports whether an insurer offer has been selected.
func (p *Proposal) HasQuote() bool {
	return p.SelectedQuote != nil && p.SelectedQuote.CompanyName != ""
}

// IsConverted is true once the proposal or its quote has been issued.
func (p *Proposal) IsConverted() bool {
	if p.Status == ProposalConverted {
		return true
	}
	return p.SelectedQuote != nil && p.SelectedQuote.Status == QuoteConverted
}

// Clone returns a deep copy so callers can stage mutations and discard them on failure.
func (p *Proposal) Clone() *Proposal {
	c := *p
	if p.SelectedQuote != nil {
		q := *p.SelectedQuote
		if q.ConvertedAt != nil {
			t := *q.ConvertedAt
			q.ConvertedAt = &t
		}
		c.SelectedQuote = &q
	}
	if p.PreviousPolicyDetails != nil {
		prev := *p.PreviousPolicyDetails
		if prev.PremiumPaid != nil {
			v := *prev.PremiumPaid
			prev.PremiumPaid = &v
		}
		if prev.NCBPercent != nil {
			v := *prev.NCBPercent
			prev.NCBPercent = &v
		}
		c.PreviousPolicyDetails = &prev
	}
	c.SelectedAddOns = append([]string(nil), p.SelectedAddOns...)
	c.KYCDocuments = append([]KYCDocument(nil), p.KYCDocuments...)
	return &c
}

// ProposalRecord is the stored row. The full proposal lives in Data; the other
// columns are denormalized for search and for the conversion guard.
type ProposalRecord struct {
	ID           string         `gorm:"primaryKey;size:36"`
	Status       string         `gorm:"size:20;index;not null;default:'DRAFT'"`
	CustomerName string         `gorm:"size:255;index"`
	Email        string         `gorm:"size:255;index"`
	Phone        string         `gorm:"size:15;index"`
	PolicyNumber string         `gorm:"size:50;index"`
	Version      int            `gorm:"not null;default:1"`
	Data         datatypes.JSON `gorm:"not null"`
	CreatedAt    time.Time      `gorm:"index"`
	UpdatedAt    time.Time
}

func (ProposalRecord) TableName() string {
	return "proposals"
}
