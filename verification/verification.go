// Package verification issues and checks the one-time codes that confirm a
// customer's identity before KYC.
package verification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"presale/logging"
	"presale/models"
	"presale/notifier"
	"presale/utils"
)

var (
	ErrNoActiveCode = errors.New("no active verification code")
	ErrCodeExpired  = errors.New("verification code expired")
)

// MismatchError means the entered code is not the issued one. Remaining is
// how many more entries the code accepts; at zero a new code must be sent.
type MismatchError struct {
	ProposalID string
	Remaining  int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("verification code mismatch for proposal %s, %d attempts left", e.ProposalID, e.Remaining)
}

// Issued describes a code that was generated. DeliveryErr is set when the code
// was stored but the notifier failed; the agent may resend.
type Issued struct {
	Code        string
	Contact     string
	ExpiresAt   time.Time
	DeliveryErr error
}

// Gate stores codes hashed in their own table, keyed by proposal.
type Gate struct {
	db       *gorm.DB
	notifier notifier.Notifier
	cfg      models.WorkflowConfig
	now      func() time.Time
	generate func() (string, error)
}

func NewGate(db *gorm.DB, n notifier.Notifier, cfg models.WorkflowConfig) *Gate {
	if cfg.MaxOTPAttempts <= 0 {
		cfg.MaxOTPAttempts = models.DefaultWorkflowConfig().MaxOTPAttempts
	}
	return &Gate{db: db, notifier: n, cfg: cfg, now: time.Now, generate: utils.GenerateOTP}
}

// Issue replaces any outstanding code for the proposal and sends a new one.
func (g *Gate) Issue(ctx context.Context, proposalID, contact, name string) (*Issued, error) {
	code, err := g.generate()
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash verification code: %w", err)
	}

	issued := &Issued{Code: code, Contact: contact, ExpiresAt: g.now().Add(g.cfg.OTPValidity)}
	err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.VerificationCode{}).
			Where("proposal_id = ? AND is_used = ?", proposalID, false).
			Update("is_used", true).Error; err != nil {
			return err
		}
		return tx.Create(&models.VerificationCode{
			ProposalID: proposalID,
			Contact:    contact,
			CodeHash:   string(hash),
			ExpiresAt:  issued.ExpiresAt,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("store verification code: %w", err)
	}

	payload := notifier.Payload{
		notifier.KeyCode:            code,
		notifier.KeyName:            name,
		notifier.KeyValidityMinutes: strconv.Itoa(int(g.cfg.OTPValidity.Minutes())),
	}
	if err := g.notifier.Send(ctx, notifier.KindOTPVerification, contact, payload); err != nil {
		issued.DeliveryErr = err
		logging.Warn().
			Add(logging.Component("verification")).
			Add(logging.ProposalID(proposalID)).
			Add(logging.ErrorField(err)).
			Msg("verification code stored but not delivered")
	}
	return issued, nil
}

// Check compares entered against the active code, byte for byte through its
// hash. A matching code is consumed; MaxOTPAttempts wrong entries burn it.
// With AllowGateBypass set, no comparison happens.
func (g *Gate) Check(ctx context.Context, proposalID, entered string) error {
	if g.cfg.AllowGateBypass {
		logging.Warn().
			Add(logging.Component("verification")).
			Add(logging.ProposalID(proposalID)).
			Msg("verification bypassed by configuration")
		return nil
	}

	var vc models.VerificationCode
	err := g.db.WithContext(ctx).
		Where("proposal_id = ? AND is_used = ?", proposalID, false).
		Order("created_at DESC").
		First(&vc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNoActiveCode
	}
	if err != nil {
		return fmt.Errorf("load verification code: %w", err)
	}

	if g.now().After(vc.ExpiresAt) {
		return ErrCodeExpired
	}
	if bcrypt.CompareHashAndPassword([]byte(vc.CodeHash), []byte(entered)) != nil {
		return g.recordMismatch(ctx, proposalID, vc)
	}

	res := g.db.WithContext(ctx).Model(&models.VerificationCode{}).
		Where("id = ? AND is_used = ?", vc.ID, false).
		Update("is_used", true)
	if res.Error != nil {
		return fmt.Errorf("consume verification code: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNoActiveCode
	}
	return nil
}

// recordMismatch counts a wrong entry against vc and burns it at the limit.
func (g *Gate) recordMismatch(ctx context.Context, proposalID string, vc models.VerificationCode) error {
	attempts := vc.Attempts + 1
	remaining := g.cfg.MaxOTPAttempts - attempts
	if remaining < 0 {
		remaining = 0
	}

	updates := map[string]interface{}{"attempts": attempts}
	if remaining == 0 {
		updates["is_used"] = true
	}
	if err := g.db.WithContext(ctx).Model(&models.VerificationCode{}).
		Where("id = ?", vc.ID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("record verification attempt: %w", err)
	}

	if remaining == 0 {
		logging.Warn().
			Add(logging.Component("verification")).
			Add(logging.ProposalID(proposalID)).
			Msg("verification code locked after repeated mismatches")
	}
	return &MismatchError{ProposalID: proposalID, Remaining: remaining}
}

// PurgeExpired deletes codes that expired or were used more than a day ago.
func (g *Gate) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := g.now()
	res := g.db.WithContext(ctx).Unscoped().
		Where("expires_at < ? OR (is_used = ? AND updated_at < ?)", cutoff, true, cutoff.Add(-24*time.Hour)).
		Delete(&models.VerificationCode{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge verification codes: %w", res.Error)
	}
	return res.RowsAffected, nil
}
