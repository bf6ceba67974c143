// Package workflow drives a proposal through its stages, from customer details
// to an issued policy, consulting the gates and the repository on the way.
package workflow

import (
	"context"
	"sync"
	"time"

	"presale/issuer"
	"presale/kyc"
	"presale/models"
	"presale/repository"
	proposalValidator "presale/validators/proposal"
	"presale/verification"
)

type Store interface {
	Create(ctx context.Context, p *models.Proposal) error
	Get(ctx context.Context, id string) (*models.Proposal, error)
	Save(ctx context.Context, p *models.Proposal) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, f repository.Filter) (*repository.Page, error)
}

type PolicyLookup interface {
	Get(ctx context.Context, policyNumber string) (*models.IssuedPolicy, error)
	GetByProposal(ctx context.Context, proposalID string) (*models.IssuedPolicy, error)
}

type Eligibility interface {
	RequiresPreviousPolicyDetails(pd models.PolicyDetails) bool
}

type Verifier interface {
	Issue(ctx context.Context, proposalID, contact, name string) (*verification.Issued, error)
	Check(ctx context.Context, proposalID, entered string) error
}

type KYCEvaluator interface {
	Evaluate(f *kyc.Form) (models.PanValidation, error)
}

type PaymentProcessor interface {
	Process(ctx context.Context, proposalID, method string, amount float64) (*models.PaymentAttempt, error)
	Retry(ctx context.Context, proposalID string) (*models.PaymentAttempt, error)
	Latest(ctx context.Context, proposalID string) (*models.PaymentAttempt, error)
}

type PolicyIssuer interface {
	Issue(ctx context.Context, p *models.Proposal, payment models.PaymentSnapshot) (*issuer.Issuance, error)
}

type DocumentStore interface {
	Put(ctx context.Context, proposalID string, doc kyc.Document) (string, error)
}

// Deps wires the engine. Every field is required.
type Deps struct {
	Proposals   Store
	Policies    PolicyLookup
	Eligibility Eligibility
	Validator   *proposalValidator.Validator
	Verifier    Verifier
	KYC         KYCEvaluator
	Payments    PaymentProcessor
	Issuer      PolicyIssuer
	Documents   DocumentStore
}

// Engine serializes work per proposal; different proposals proceed in parallel.
type Engine struct {
	store       Store
	policies    PolicyLookup
	eligibility Eligibility
	validator   *proposalValidator.Validator
	verifier    Verifier
	kyc         KYCEvaluator
	payments    PaymentProcessor
	issuer      PolicyIssuer
	documents   DocumentStore

	locks *keyedMutex
	now   func() time.Time
}

func New(d Deps) *Engine {
	return &Engine{
		store:       d.Proposals,
		policies:    d.Policies,
		eligibility: d.Eligibility,
		validator:   d.Validator,
		verifier:    d.Verifier,
		kyc:         d.KYC,
		payments:    d.Payments,
		issuer:      d.Issuer,
		documents:   d.Documents,
		locks:       newKeyedMutex(),
		now:         time.Now,
	}
}

// keyedMutex hands out one mutex per proposal id and forgets it when idle.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refLock)}
}

func (k *keyedMutex) lock(id string) func() {
	k.mu.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &refLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
