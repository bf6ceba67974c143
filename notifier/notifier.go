// Package notifier delivers verification codes and issuance notices to customers.
package notifier

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"presale/logging"
)

// Kind selects the message template.
type Kind string

const (
	KindOTPVerification Kind = "otpVerification"
	KindPolicyIssued    Kind = "policyIssued"
)

// Payload keys understood by the templates.
const (
	KeyName              = "name"
	KeyCode              = "code"
	KeyValidityMinutes   = "validityMinutes"
	KeyPolicyNumber      = "policyNumber"
	KeyCertificateNumber = "certificateNumber"
	KeyInsurer           = "insurer"
	KeyPremium           = "premium"
)

type Payload map[string]string

var (
	ErrNoRecipient    = errors.New("no recipient")
	ErrUnknownKind    = errors.New("unknown notification kind")
	ErrInvalidPayload = errors.New("invalid notification payload")
	ErrRejected       = errors.New("notification rejected by provider")
	ErrNotConfigured  = errors.New("notification channel not configured")
)

// Notifier sends one message. Delivery failures never undo business operations;
// callers surface them as warnings.
type Notifier interface {
	Send(ctx context.Context, kind Kind, recipient string, payload Payload) error
}

// Router sends to email addresses through Email and to phone numbers through SMS.
type Router struct {
	Email Notifier
	SMS   Notifier
}

func (r *Router) Send(ctx context.Context, kind Kind, recipient string, payload Payload) error {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return ErrNoRecipient
	}
	target := r.SMS
	if strings.Contains(recipient, "@") {
		target = r.Email
	}
	if target == nil {
		return ErrNotConfigured
	}
	return target.Send(ctx, kind, recipient, payload)
}

// Retrying retries transient provider failures with exponential backoff.
// Rejections and unknown kinds are not retried.
type Retrying struct {
	next    Notifier
	retrier retry.Retry[bool]
}

func NewRetrying(next Notifier, attempts int, initialDelay time.Duration) *Retrying {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrying{
		next: next,
		retrier: retry.New[bool](retry.Config{
			MaxAttempts:        attempts,
			InitialDelay:       initialDelay,
			BackoffPolicy:      retry.BackoffExponential,
			Multiplier:         2.0,
			NonRetryableErrors: []error{ErrRejected, ErrUnknownKind, ErrInvalidPayload, ErrNoRecipient, ErrNotConfigured},
		}),
	}
}

func (r *Retrying) Send(ctx context.Context, kind Kind, recipient string, payload Payload) error {
	_, err := r.retrier.Do(ctx, func(ctx context.Context) (bool, error) {
		if err := r.next.Send(ctx, kind, recipient, payload); err != nil {
			return false, err
		}
		return true, nil
	})
	return err
}

// LogNotifier writes messages to the log instead of delivering them.
// Used when no provider is configured.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, kind Kind, recipient string, payload Payload) error {
	if _, _, err := render(kind, payload); err != nil {
		return err
	}
	logging.Info().
		Add(logging.Component("notifier")).
		Add(logging.Str("kind", string(kind))).
		Add(logging.Str("recipient", recipient)).
		Msg("notification not delivered: no provider configured")
	if kind == KindOTPVerification {
		logging.Debug().
			Add(logging.Str("recipient", recipient)).
			Add(logging.Str("code", payload[KeyCode])).
			Msg("verification code")
	}
	return nil
}
