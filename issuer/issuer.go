// Package issuer turns a paid proposal into an issued policy, at most once.
package issuer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"presale/logging"
	"presale/models"
	"presale/notifier"
	"presale/repository"
)

// AlreadyConvertedError is returned for any attempt to edit or reissue a converted proposal.
type AlreadyConvertedError struct {
	ProposalID   string
	PolicyNumber string
}

func (e *AlreadyConvertedError) Error() string {
	if e.PolicyNumber != "" {
		return fmt.Sprintf("proposal %s already converted to policy %s", e.ProposalID, e.PolicyNumber)
	}
	return fmt.Sprintf("proposal %s already converted", e.ProposalID)
}

// Store persists the conversion and the policy together.
type Store interface {
	SaveConverted(ctx context.Context, p *models.Proposal, issued *models.IssuedPolicy) error
}

// Issuance is the result of a successful Issue. NotificationErr is a warning only.
type Issuance struct {
	Policy          *models.IssuedPolicy
	NotificationErr error
}

type Issuer struct {
	store    Store
	notifier notifier.Notifier
	now      func() time.Time
}

func New(store Store, n notifier.Notifier) *Issuer {
	return &Issuer{store: store, notifier: n, now: time.Now}
}

// Issue converts p. The conversion check runs before anything is touched and
// the store repeats it inside the write, so two racing calls yield one policy.
// On success p reflects the stored, converted proposal; on failure p is unchanged.
func (i *Issuer) Issue(ctx context.Context, p *models.Proposal, payment models.PaymentSnapshot) (*Issuance, error) {
	if p.IsConverted() {
		return nil, alreadyConverted(p)
	}
	if !p.HasQuote() {
		return nil, errors.New("cannot issue a policy without a selected quote")
	}

	issuedAt := i.now()
	policyNumber, certificateNumber := numbers(issuedAt)

	next := p.Clone()
	next.Status = models.ProposalConverted
	next.SelectedQuote.Status = models.QuoteConverted
	next.SelectedQuote.PolicyNumber = policyNumber
	next.SelectedQuote.ConvertedAt = &issuedAt
	next.FurthestStage = models.StagePolicyIssuance

	policy := snapshot(next, policyNumber, certificateNumber, issuedAt, payment)
	if err := i.store.SaveConverted(ctx, next, policy); err != nil {
		if errors.Is(err, repository.ErrAlreadyConverted) {
			return nil, &AlreadyConvertedError{ProposalID: p.ID}
		}
		return nil, fmt.Errorf("issue policy for proposal %s: %w", p.ID, err)
	}
	*p = *next

	logging.Info().
		Add(logging.Component("issuer")).
		Add(logging.ProposalID(p.ID)).
		Add(logging.PolicyNumber(policyNumber)).
		Msg("policy issued")

	out := &Issuance{Policy: policy}
	out.NotificationErr = i.notify(ctx, policy)
	return out, nil
}

func (i *Issuer) notify(ctx context.Context, policy *models.IssuedPolicy) error {
	if i.notifier == nil || policy.Customer.Email == "" {
		return nil
	}
	err := i.notifier.Send(ctx, notifier.KindPolicyIssued, policy.Customer.Email, notifier.Payload{
		notifier.KeyName:              policy.Customer.DisplayName(),
		notifier.KeyPolicyNumber:      policy.PolicyNumber,
		notifier.KeyCertificateNumber: policy.CertificateNumber,
		notifier.KeyInsurer:           policy.InsurerName,
		notifier.KeyPremium:           strconv.FormatFloat(policy.Premium, 'f', 2, 64),
	})
	if err != nil {
		logging.Warn().
			Add(logging.Component("issuer")).
			Add(logging.PolicyNumber(policy.PolicyNumber)).
			Add(logging.ErrorField(err)).
			Msg("policy issued but customer not notified")
	}
	return err
}

func alreadyConverted(p *models.Proposal) *AlreadyConvertedError {
	e := &AlreadyConvertedError{ProposalID: p.ID}
	if p.SelectedQuote != nil {
		e.PolicyNumber = p.SelectedQuote.PolicyNumber
	}
	return e
}

// numbers returns a policy and certificate number sharing one random suffix.
func numbers(at time.Time) (string, string) {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	day := at.Format("20060102")
	return "POL-" + day + "-" + suffix, "CERT-" + day + "-" + suffix
}

// snapshot copies everything the policy needs so later edits elsewhere never reach it.
func snapshot(p *models.Proposal, policyNumber, certificateNumber string, at time.Time, payment models.PaymentSnapshot) *models.IssuedPolicy {
	return &models.IssuedPolicy{
		PolicyNumber:      policyNumber,
		CertificateNumber: certificateNumber,
		ProposalID:        p.ID,
		IssuedAt:          at,
		InsurerName:       p.SelectedQuote.CompanyName,
		Premium:           p.SelectedQuote.TotalPremium,
		IDV:               p.SelectedQuote.IDV,
		Customer:          p.CustomerInfo,
		Policy:            p.PolicyDetails,
		Vehicle:           p.VehicleDetails,
		Liability:         p.LiabilityDetails,
		Nominee:           p.NomineeDetails,
		Payment:           payment,
		AddOns:            append([]string(nil), p.SelectedAddOns...),
	}
}
