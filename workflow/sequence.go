package workflow

import (
	"presale/models"
)

// Sequence is the ordered list of stages one proposal goes through.
type Sequence []models.Stage

var coreStages = Sequence{
	models.StageCustomerInfo,
	models.StageKYC,
	models.StageOtherVehicleDetails,
	models.StageLiabilityDetails,
	models.StageNominationDetails,
	models.StagePaymentDeclaration,
	models.StagePolicyIssuance,
}

func (s Sequence) Contains(stage models.Stage) bool {
	for _, st := range s {
		if st == stage {
			return true
		}
	}
	return false
}

// After returns the first stage ordered after stage. Stage need not be in s,
// which happens when the previous-policy stage completes and drops out.
func (s Sequence) After(stage models.Stage) (models.Stage, bool) {
	for _, st := range s {
		if st.Code() > stage.Code() {
			return st, true
		}
	}
	return "", false
}

// Codes lists the display codes, e.g. [-1 0 1 2 3 4 5 6].
func (s Sequence) Codes() []int {
	out := make([]int, len(s))
	for i, st := range s {
		out[i] = st.Code()
	}
	return out
}

// Sequence computes the stages for p. The previous-policy stage leads only
// while the rollover rules require it and its fields are still incomplete.
func (e *Engine) Sequence(p *models.Proposal) Sequence {
	if e.needsPreviousPolicy(p) {
		return append(Sequence{models.StagePreviousPolicyDetails}, coreStages...)
	}
	return append(Sequence(nil), coreStages...)
}

func (e *Engine) needsPreviousPolicy(p *models.Proposal) bool {
	return e.eligibility.RequiresPreviousPolicyDetails(p.PolicyDetails) &&
		!e.validator.PreviousPolicyComplete(p.PreviousPolicyDetails)
}

// entryStage is where an agent lands when opening a non-converted proposal.
func (e *Engine) entryStage(p *models.Proposal, seq Sequence) models.Stage {
	switch {
	case seq.Contains(models.StagePreviousPolicyDetails):
		return models.StagePreviousPolicyDetails
	case p.NeedsCustomerInfo || !e.validator.CustomerInfoComplete(p.CustomerInfo):
		return models.StageCustomerInfo
	case p.KYCStatus == models.KYCVerified && p.HasQuote():
		return models.StagePaymentDeclaration
	case p.HasQuote():
		return models.StageNominationDetails
	}
	return models.StageOtherVehicleDetails
}

// forced reports whether the entry stage blocks everything after it.
func forced(stage models.Stage) bool {
	return stage == models.StagePreviousPolicyDetails || stage == models.StageCustomerInfo
}

// reach is the furthest stage an agent may open: the entry stage while data
// is missing, otherwise the later of the entry stage and recorded progress.
func (e *Engine) reach(p *models.Proposal, seq Sequence) models.Stage {
	entry := e.entryStage(p, seq)
	if forced(entry) {
		return entry
	}
	if p.FurthestStage.Valid() && p.FurthestStage.Code() > entry.Code() && p.FurthestStage != models.StagePolicyIssuance {
		return p.FurthestStage
	}
	return entry
}

func laterStage(a, b models.Stage) models.Stage {
	if !a.Valid() || b.Code() > a.Code() {
		return b
	}
	return a
}
