package workflow

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"presale/kyc"
	"presale/logging"
	"presale/models"
)

// FormInput is what an agent submits when leaving a stage. Section is a JSON
// object laid over the stage's part of the proposal: absent keys keep their
// stored values. Liability toggles and the payment declaration are replaced
// as a whole.
type FormInput struct {
	Section json.RawMessage
	KYC     *KYCInput
}

// KYCInput carries the KYC form and the one-time code the customer received.
type KYCInput struct {
	CKYCNumber string
	PAN        string
	PANName    string
	Documents  []kyc.Document
	Code       string
}

// Transition reports a completed stage.
type Transition struct {
	Proposal *models.Proposal       `json:"proposal"`
	From     models.Stage           `json:"from"`
	Next     models.Stage           `json:"next"`
	NextCode int                    `json:"nextCode"`
	Sequence Sequence               `json:"sequence"`
	Payment  *models.PaymentAttempt `json:"payment,omitempty"`
	Policy   *models.IssuedPolicy   `json:"issuedPolicy,omitempty"`
	Warnings []string               `json:"warnings,omitempty"`
}

// Advance validates and stores the data for stage from, then reports the next
// stage. Any business error leaves the stored proposal exactly as it was.
// Leaving the payment stage collects the premium and issues the policy.
func (e *Engine) Advance(ctx context.Context, id string, from models.Stage, in FormInput) (*Transition, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	p, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.IsConverted() {
		return nil, converted(p)
	}

	seq := e.Sequence(p)
	if !seq.Contains(from) || from == models.StagePolicyIssuance {
		return nil, fmt.Errorf("%w: %s", ErrStageMismatch, from)
	}
	if !e.reachable(p, seq, from) {
		return nil, fmt.Errorf("%w: %s", ErrStageNotReached, from)
	}
	if err := e.writable(p, seq, from); err != nil {
		return nil, err
	}

	next := p.Clone()
	if err := merge(next, from, in.Section); err != nil {
		return nil, err
	}

	switch from {
	case models.StagePaymentDeclaration:
		return e.pay(ctx, next)
	case models.StageKYC:
		err = e.completeKYC(ctx, next, in.KYC)
	default:
		err = e.validator.Stage(from, next)
	}
	if err != nil {
		logging.Info().
			Add(logging.Component("workflow")).
			Add(logging.ProposalID(id)).
			Add(logging.Stage(from)).
			Add(logging.ErrorField(err)).
			Msg("stage not completed")
		return nil, err
	}

	if from == models.StageCustomerInfo {
		next.NeedsCustomerInfo = false
		if next.CustomerInfo.CustomerType == "" {
			next.CustomerInfo.CustomerType = models.CustomerIndividual
		}
	}
	if next.Status == models.ProposalDraft {
		next.Status = models.ProposalSubmitted
	}

	nextSeq := e.Sequence(next)
	to, _ := nextSeq.After(from)
	next.FurthestStage = laterStage(next.FurthestStage, to)

	if err := e.store.Save(ctx, next); err != nil {
		return nil, storeErr(id, err)
	}

	logging.Info().
		Add(logging.Component("workflow")).
		Add(logging.ProposalID(id)).
		Add(logging.FromStage(from)).
		Add(logging.ToStage(to)).
		Msg("stage completed")
	return &Transition{Proposal: next, From: from, Next: to, NextCode: to.Code(), Sequence: nextSeq}, nil
}

func merge(p *models.Proposal, stage models.Stage, raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var target interface{}
	switch stage {
	case models.StagePreviousPolicyDetails:
		if p.PreviousPolicyDetails == nil {
			p.PreviousPolicyDetails = &models.PreviousPolicyDetails{}
		}
		target = p.PreviousPolicyDetails
	case models.StageCustomerInfo:
		target = &p.CustomerInfo
	case models.StageOtherVehicleDetails:
		target = &p.VehicleDetails
	case models.StageLiabilityDetails:
		p.LiabilityDetails = models.LiabilityDetails{}
		target = &p.LiabilityDetails
	case models.StageNominationDetails:
		target = &p.NomineeDetails
	case models.StagePaymentDeclaration:
		p.PaymentDeclaration = models.PaymentDeclaration{}
		target = &p.PaymentDeclaration
	default:
		return fmt.Errorf("%w: stage %s takes no section data", ErrInvalidInput, stage)
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// completeKYC checks the form, then the code. Documents are stored only once
// both pass.
func (e *Engine) completeKYC(ctx context.Context, next *models.Proposal, in *KYCInput) error {
	if in == nil {
		if next.KYCStatus == models.KYCVerified {
			return nil
		}
		in = &KYCInput{}
	}

	form := kyc.Form{CKYCNumber: in.CKYCNumber, PAN: in.PAN, PANName: in.PANName, Documents: in.Documents}
	pv, err := e.kyc.Evaluate(&form)
	if err != nil {
		return err
	}
	if err := e.verifier.Check(ctx, next.ID, in.Code); err != nil {
		return err
	}

	for _, d := range form.Documents {
		path, err := e.documents.Put(ctx, next.ID, d)
		if err != nil {
			return fmt.Errorf("store %s document: %w", d.Kind, err)
		}
		size := d.Size
		if size == 0 {
			size = int64(len(d.Content))
		}
		next.KYCDocuments = append(next.KYCDocuments, models.KYCDocument{
			Kind:     d.Kind,
			FileName: d.FileName,
			Path:     path,
			MIMEType: d.MIMEType,
			Size:     size,
		})
	}

	next.PanValidation = pv
	next.CKYCNumber = form.CKYCNumber
	next.KYCStatus = models.KYCVerified
	next.KYCRejectionReason = ""
	next.Status = models.ProposalApproved
	return nil
}

// pay collects the premium and issues the policy. A failed payment is returned
// as is and nothing about the proposal is written.
func (e *Engine) pay(ctx context.Context, next *models.Proposal) (*Transition, error) {
	if err := e.validator.Through(e.Sequence(next), models.StagePaymentDeclaration, next); err != nil {
		return nil, err
	}

	att, err := e.payments.Process(ctx, next.ID, next.PaymentDeclaration.PaymentMode, next.SelectedQuote.TotalPremium)
	if err != nil {
		logging.Warn().
			Add(logging.Component("workflow")).
			Add(logging.ProposalID(next.ID)).
			Add(logging.ErrorField(err)).
			Msg("payment not completed")
		return nil, err
	}

	paidAt := e.now()
	if att.SettledAt != nil {
		paidAt = *att.SettledAt
	}
	out, err := e.issuer.Issue(ctx, next, models.PaymentSnapshot{
		AttemptID: att.ID,
		Method:    att.Method,
		Reference: att.GatewayReference,
		Amount:    att.Amount,
		PaidAt:    paidAt.In(time.UTC),
	})
	if err != nil {
		return nil, storeErr(next.ID, err)
	}

	t := &Transition{
		Proposal: next,
		From:     models.StagePaymentDeclaration,
		Next:     models.StagePolicyIssuance,
		NextCode: models.StagePolicyIssuance.Code(),
		Sequence: e.Sequence(next),
		Payment:  att,
		Policy:   out.Policy,
	}
	if out.NotificationErr != nil {
		t.Warnings = append(t.Warnings, "policy issued but the customer could not be notified: "+out.NotificationErr.Error())
	}
	return t, nil
}
