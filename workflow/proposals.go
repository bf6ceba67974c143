package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"presale/logging"
	"presale/models"
	"presale/payment"
	"presale/repository"
	proposalValidator "presale/validators/proposal"
	"presale/verification"
)

// NewProposal is what the quotation flow hands over.
type NewProposal struct {
	CustomerInfo      models.CustomerInfo
	PolicyDetails     models.PolicyDetails
	NeedsCustomerInfo bool
	Quote             *models.SelectedQuote
	AddOns            []string
}

// DeleteConfirmation must carry both confirmations.
type DeleteConfirmation struct {
	Confirmed      bool
	ConfirmedAgain bool
}

func (e *Engine) Create(ctx context.Context, in NewProposal) (*models.Proposal, error) {
	p := &models.Proposal{
		CustomerInfo:      in.CustomerInfo,
		PolicyDetails:     in.PolicyDetails,
		NeedsCustomerInfo: in.NeedsCustomerInfo,
		SelectedAddOns:    normalizeAddOns(in.AddOns),
		Status:            models.ProposalDraft,
		KYCStatus:         models.KYCPending,
	}
	if in.Quote != nil {
		p.SelectedQuote = pendingQuote(*in.Quote)
	}
	if err := e.store.Create(ctx, p); err != nil {
		return nil, err
	}
	logging.Info().
		Add(logging.Component("workflow")).
		Add(logging.ProposalID(p.ID)).
		Msg("proposal created")
	return p, nil
}

func (e *Engine) Get(ctx context.Context, id string) (*models.Proposal, error) {
	return e.store.Get(ctx, id)
}

func (e *Engine) Search(ctx context.Context, f repository.Filter) (*repository.Page, error) {
	return e.store.Search(ctx, f)
}

// Policy looks up an issued policy by number.
func (e *Engine) Policy(ctx context.Context, policyNumber string) (*models.IssuedPolicy, error) {
	return e.policies.Get(ctx, policyNumber)
}

// SelectQuote attaches or replaces the insurer offer. Once a payment has
// completed the quote is fixed.
func (e *Engine) SelectQuote(ctx context.Context, id string, q models.SelectedQuote) (*models.Proposal, error) {
	return e.update(ctx, id, func(p *models.Proposal) error {
		if strings.TrimSpace(q.CompanyName) == "" {
			return proposalValidator.Missing("", "companyName")
		}
		att, err := e.payments.Latest(ctx, id)
		switch {
		case errors.Is(err, payment.ErrNoAttempt):
		case err != nil:
			return err
		case att.Status == models.PaymentCompleted:
			return ErrQuoteLocked
		}
		p.SelectedQuote = pendingQuote(q)
		return nil
	})
}

func (e *Engine) SetAddOns(ctx context.Context, id string, addOns []string) (*models.Proposal, error) {
	return e.update(ctx, id, func(p *models.Proposal) error {
		p.SelectedAddOns = normalizeAddOns(addOns)
		return nil
	})
}

// RejectKYC records a failed identity check. The agent may submit KYC again.
func (e *Engine) RejectKYC(ctx context.Context, id, reason string) (*models.Proposal, error) {
	return e.update(ctx, id, func(p *models.Proposal) error {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return proposalValidator.Missing(models.StageKYC, "reason")
		}
		p.KYCStatus = models.KYCRejected
		p.KYCRejectionReason = reason
		p.Status = models.ProposalRejected
		return nil
	})
}

// SendVerificationCode issues a code to contact, or to the customer's email
// and then phone when contact is empty.
func (e *Engine) SendVerificationCode(ctx context.Context, id, contact string) (*verification.Issued, error) {
	p, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.IsConverted() {
		return nil, converted(p)
	}

	contact = strings.TrimSpace(contact)
	if contact == "" {
		contact = p.CustomerInfo.Email
	}
	if contact == "" {
		contact = p.CustomerInfo.Phone
	}
	if contact == "" {
		return nil, ErrNoContact
	}
	return e.verifier.Issue(ctx, p.ID, contact, p.CustomerInfo.DisplayName())
}

// RetryPayment puts a failed payment back to pending so the payment stage can be submitted again.
func (e *Engine) RetryPayment(ctx context.Context, id string) (*models.PaymentAttempt, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	p, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.IsConverted() {
		return nil, converted(p)
	}
	return e.payments.Retry(ctx, id)
}

func (e *Engine) Delete(ctx context.Context, id string, c DeleteConfirmation) error {
	if !c.Confirmed || !c.ConfirmedAgain {
		return ErrDeleteNotConfirmed
	}

	unlock := e.locks.lock(id)
	defer unlock()

	p, err := e.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.IsConverted() {
		return converted(p)
	}
	if err := e.store.Delete(ctx, id); err != nil {
		return storeErr(id, err)
	}
	logging.Info().
		Add(logging.Component("workflow")).
		Add(logging.ProposalID(id)).
		Msg("proposal deleted")
	return nil
}

// update applies fn to a copy of the stored proposal and saves it.
func (e *Engine) update(ctx context.Context, id string, fn func(p *models.Proposal) error) (*models.Proposal, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	p, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.IsConverted() {
		return nil, converted(p)
	}

	next := p.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := e.store.Save(ctx, next); err != nil {
		return nil, storeErr(id, fmt.Errorf("update proposal: %w", err))
	}
	return next, nil
}

func pendingQuote(q models.SelectedQuote) *models.SelectedQuote {
	q.CompanyName = strings.TrimSpace(q.CompanyName)
	q.Status = models.QuotePending
	q.PolicyNumber = ""
	q.ConvertedAt = nil
	return &q
}

func normalizeAddOns(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, a := range in {
		a = strings.TrimSpace(a)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
