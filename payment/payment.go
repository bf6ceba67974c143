// Package payment runs premium payment attempts through
// pending → processing → completed | failed, with failed → pending on retry.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"
	"gorm.io/gorm"

	"presale/logging"
	"presale/models"
)

const DefaultMaxRetries = 3

var (
	ErrInvalidTransition = errors.New("invalid payment transition")
	ErrInProgress        = errors.New("payment already in progress")
	ErrNoAttempt         = errors.New("no payment attempt")
	ErrRetryLimit        = errors.New("payment retry limit reached")
	ErrAmountMismatch    = errors.New("completed payment does not match the premium")
)

// FailedError is a gateway-reported failure. The attempt stays failed until retried.
type FailedError struct {
	AttemptID uint
	Reason    string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("payment attempt %d failed: %s", e.AttemptID, e.Reason)
}

// Gate owns the payment_attempts table.
type Gate struct {
	db         *gorm.DB
	gateway    Gateway
	machine    *statekit.MachineConfig[*attemptContext]
	timeout    time.Duration
	maxRetries int
	now        func() time.Time
}

func NewGate(db *gorm.DB, gateway Gateway, cfg models.WorkflowConfig) (*Gate, error) {
	machine, err := newAttemptMachine()
	if err != nil {
		return nil, fmt.Errorf("build payment machine: %w", err)
	}
	timeout := cfg.PaymentTimeout
	if timeout <= 0 {
		timeout = models.DefaultWorkflowConfig().PaymentTimeout
	}
	return &Gate{
		db:         db,
		gateway:    gateway,
		machine:    machine,
		timeout:    timeout,
		maxRetries: DefaultMaxRetries,
		now:        time.Now,
	}, nil
}

// Latest returns the most recent attempt for a proposal.
func (g *Gate) Latest(ctx context.Context, proposalID string) (*models.PaymentAttempt, error) {
	var att models.PaymentAttempt
	err := g.db.WithContext(ctx).
		Where("proposal_id = ?", proposalID).
		Order("id DESC").
		First(&att).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoAttempt
	}
	if err != nil {
		return nil, fmt.Errorf("load payment attempt: %w", err)
	}
	return &att, nil
}

// Process collects amount for the proposal and waits for the gateway verdict,
// bounded by the payment timeout. A completed attempt for the same amount is
// returned as is, so a repeated call never charges twice. A failed attempt
// must be retried first.
func (g *Gate) Process(ctx context.Context, proposalID, method string, amount float64) (*models.PaymentAttempt, error) {
	att, err := g.Latest(ctx, proposalID)
	switch {
	case errors.Is(err, ErrNoAttempt):
		att = &models.PaymentAttempt{ProposalID: proposalID, Status: models.PaymentPending, Method: method, Amount: amount}
		if err := g.db.WithContext(ctx).Create(att).Error; err != nil {
			return nil, fmt.Errorf("create payment attempt: %w", err)
		}
	case err != nil:
		return nil, err
	}

	switch att.Status {
	case models.PaymentCompleted:
		if att.Amount != amount {
			return att, fmt.Errorf("%w: paid %.2f, premium %.2f", ErrAmountMismatch, att.Amount, amount)
		}
		return att, nil
	case models.PaymentFailed:
		return att, &FailedError{AttemptID: att.ID, Reason: att.FailureReason}
	case models.PaymentProcessing:
		if !g.stale(att) {
			return att, ErrInProgress
		}
		if err := g.decline(ctx, att, "payment timed out", ""); err != nil {
			return att, err
		}
		return att, &FailedError{AttemptID: att.ID, Reason: att.FailureReason}
	}

	att.Method, att.Amount = method, amount
	lc, err := g.lifecycle(att, "", "")
	if err != nil {
		return nil, err
	}
	if err := lc.fire(eventProcess); err != nil {
		return nil, err
	}
	if err := g.persist(ctx, att, models.PaymentPending); err != nil {
		return nil, err
	}
	logging.Info().
		Add(logging.Component("payment")).
		Add(logging.ProposalID(proposalID)).
		Add(logging.PaymentStatus(att.Status)).
		Add(logging.Str("method", method)).
		Msg("payment processing")

	result, chargeErr := g.charge(ctx, att)

	// The verdict is recorded even if the caller has gone away.
	saveCtx := context.WithoutCancel(ctx)
	if chargeErr != nil || !result.Approved {
		reason := result.Reason
		if chargeErr != nil {
			reason = chargeErr.Error()
			if errors.Is(chargeErr, context.DeadlineExceeded) {
				reason = "payment timed out"
			}
		}
		if err := g.decline(saveCtx, att, reason, result.Reference); err != nil {
			return att, err
		}
		return att, &FailedError{AttemptID: att.ID, Reason: att.FailureReason}
	}

	lc.ctx.Reference = result.Reference
	if err := lc.fire(eventSettle); err != nil {
		return att, err
	}
	if err := g.persist(saveCtx, att, models.PaymentProcessing); err != nil {
		return att, err
	}
	logging.Info().
		Add(logging.Component("payment")).
		Add(logging.ProposalID(proposalID)).
		Add(logging.PaymentStatus(att.Status)).
		Add(logging.Str("reference", att.GatewayReference)).
		Msg("payment completed")
	return att, nil
}

func (g *Gate) charge(ctx context.Context, att *models.PaymentAttempt) (GatewayResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.gateway.Charge(callCtx, Charge{
		AttemptID:  att.ID,
		ProposalID: att.ProposalID,
		Method:     att.Method,
		Amount:     att.Amount,
	})
}

// Retry moves the proposal's failed attempt back to pending.
func (g *Gate) Retry(ctx context.Context, proposalID string) (*models.PaymentAttempt, error) {
	att, err := g.Latest(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if att.Status != models.PaymentFailed {
		return att, fmt.Errorf("%w: retry from %s", ErrInvalidTransition, att.Status)
	}

	lc, err := g.lifecycle(att, "", "")
	if err != nil {
		return nil, err
	}
	if err := lc.fire(eventRetry); err != nil {
		return att, ErrRetryLimit
	}
	if err := g.persist(ctx, att, models.PaymentFailed); err != nil {
		return nil, err
	}
	return att, nil
}

// ExpireStale fails attempts stuck in processing past the payment timeout.
func (g *Gate) ExpireStale(ctx context.Context) (int64, error) {
	var stuck []models.PaymentAttempt
	err := g.db.WithContext(ctx).
		Where("status = ? AND started_at < ?", models.PaymentProcessing, g.now().Add(-g.timeout)).
		Find(&stuck).Error
	if err != nil {
		return 0, fmt.Errorf("find stale payments: %w", err)
	}

	var n int64
	for i := range stuck {
		if err := g.decline(ctx, &stuck[i], "payment timed out", ""); err != nil {
			if errors.Is(err, ErrInProgress) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}

func (g *Gate) stale(att *models.PaymentAttempt) bool {
	return att.StartedAt != nil && g.now().Sub(*att.StartedAt) > g.timeout
}

func (g *Gate) decline(ctx context.Context, att *models.PaymentAttempt, reason, reference string) error {
	lc, err := g.lifecycle(att, reason, reference)
	if err != nil {
		return err
	}
	if err := lc.fire(eventDecline); err != nil {
		return err
	}
	if err := g.persist(ctx, att, models.PaymentProcessing); err != nil {
		return err
	}
	logging.Warn().
		Add(logging.Component("payment")).
		Add(logging.ProposalID(att.ProposalID)).
		Add(logging.PaymentStatus(att.Status)).
		Add(logging.Str("reason", reason)).
		Msg("payment failed")
	return nil
}

func (g *Gate) lifecycle(att *models.PaymentAttempt, reason, reference string) (*lifecycle, error) {
	return resume(g.machine, &attemptContext{
		Attempt:    att,
		MaxRetries: g.maxRetries,
		Reason:     reason,
		Reference:  reference,
		Now:        g.now,
	})
}

// persist writes att only if the stored row is still in state from.
func (g *Gate) persist(ctx context.Context, att *models.PaymentAttempt, from models.PaymentStatus) error {
	res := g.db.WithContext(ctx).Model(&models.PaymentAttempt{}).
		Where("id = ? AND status = ?", att.ID, from).
		Updates(map[string]interface{}{
			"status":            att.Status,
			"method":            att.Method,
			"amount":            att.Amount,
			"retries":           att.Retries,
			"gateway_reference": att.GatewayReference,
			"failure_reason":    att.FailureReason,
			"started_at":        att.StartedAt,
			"settled_at":        att.SettledAt,
		})
	if res.Error != nil {
		return fmt.Errorf("save payment attempt %d: %w", att.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInProgress
	}
	return nil
}
