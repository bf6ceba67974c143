package workflow

import (
	"context"
	"errors"
	"fmt"

	"presale/logging"
	"presale/models"
	"presale/repository"
)

// Session is what an agent sees on opening a proposal. The stage is computed
// from stored data every time and never persisted.
type Session struct {
	Proposal     *models.Proposal     `json:"proposal"`
	Stage        models.Stage         `json:"stage"`
	StageCode    int                  `json:"stageCode"`
	Sequence     Sequence             `json:"sequence"`
	ReadOnly     bool                 `json:"readOnly"`
	IssuedPolicy *models.IssuedPolicy `json:"issuedPolicy,omitempty"`
}

func newSession(p *models.Proposal, stage models.Stage, seq Sequence) *Session {
	return &Session{Proposal: p, Stage: stage, StageCode: stage.Code(), Sequence: seq}
}

// Enter opens a proposal. A converted proposal opens read-only with its policy.
// Otherwise target is honored when it belongs to the sequence and has been
// reached; any other target falls back to the computed stage.
func (e *Engine) Enter(ctx context.Context, id string, target *models.Stage) (*Session, error) {
	p, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.IsConverted() {
		return e.readOnly(ctx, p)
	}

	seq := e.Sequence(p)
	stage := e.entryStage(p, seq)
	if target != nil && e.reachable(p, seq, *target) {
		stage = *target
	}
	logging.Debug().
		Add(logging.Component("workflow")).
		Add(logging.ProposalID(p.ID)).
		Add(logging.Stage(stage)).
		Msg("proposal entered")
	return newSession(p, stage, seq), nil
}

func (e *Engine) readOnly(ctx context.Context, p *models.Proposal) (*Session, error) {
	s := newSession(p, models.StagePolicyIssuance, e.Sequence(p))
	s.ReadOnly = true

	policy, err := e.policies.GetByProposal(ctx, p.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		// imported records may be converted without a stored policy
	case err != nil:
		return nil, err
	default:
		s.IssuedPolicy = policy
	}
	return s, nil
}

// Back moves the agent to an earlier stage without touching stored data.
func (e *Engine) Back(ctx context.Context, id string, target models.Stage) (*Session, error) {
	p, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.IsConverted() {
		return nil, converted(p)
	}

	seq := e.Sequence(p)
	if !seq.Contains(target) || target == models.StagePolicyIssuance {
		return nil, fmt.Errorf("%w: %s", ErrStageMismatch, target)
	}
	if !e.reachable(p, seq, target) {
		return nil, fmt.Errorf("%w: %s", ErrStageNotReached, target)
	}
	return newSession(p, target, seq), nil
}

func (e *Engine) reachable(p *models.Proposal, seq Sequence, stage models.Stage) bool {
	if !seq.Contains(stage) || stage == models.StagePolicyIssuance {
		return false
	}
	return stage.Code() <= e.reach(p, seq).Code()
}

// writable lets an agent leave any stage up to recorded progress. A stage past
// it opens for writing only once every stage before it holds its data.
func (e *Engine) writable(p *models.Proposal, seq Sequence, stage models.Stage) error {
	if p.FurthestStage.Valid() && stage.Code() <= p.FurthestStage.Code() {
		return nil
	}
	if err := e.validator.Earlier(seq, stage, p); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStageNotReached, stage, err)
	}
	return nil
}
