package payment

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"

	"presale/models"
)

// attemptContext is the machine context for a single attempt.
type attemptContext struct {
	Attempt    *models.PaymentAttempt
	MaxRetries int
	Reason     string
	Reference  string
	Now        func() time.Time
}

const (
	statePending    statekit.StateID = statekit.StateID(models.PaymentPending)
	stateProcessing statekit.StateID = statekit.StateID(models.PaymentProcessing)
	stateCompleted  statekit.StateID = statekit.StateID(models.PaymentCompleted)
	stateFailed     statekit.StateID = statekit.StateID(models.PaymentFailed)
)

const (
	eventProcess statekit.EventType = "PROCESS"
	eventSettle  statekit.EventType = "SETTLE"
	eventDecline statekit.EventType = "DECLINE"
	eventRetry   statekit.EventType = "RETRY"
)

// transitions mirrors the chart below; Send is only called for listed pairs.
var transitions = map[models.PaymentStatus]map[statekit.EventType]models.PaymentStatus{
	models.PaymentPending:    {eventProcess: models.PaymentProcessing},
	models.PaymentProcessing: {eventSettle: models.PaymentCompleted, eventDecline: models.PaymentFailed},
	models.PaymentFailed:     {eventRetry: models.PaymentPending},
}

func newAttemptMachine() (*statekit.MachineConfig[*attemptContext], error) {
	return statekit.NewMachine[*attemptContext]("payment").
		WithInitial(statePending).
		WithContext(&attemptContext{}).
		WithAction("markStarted", markStarted).
		WithAction("markSettled", markSettled).
		WithAction("markFailed", markFailed).
		WithAction("markRetried", markRetried).
		WithGuard("retriesLeft", retriesLeft).
		State(statePending).
			On(eventProcess).Target(stateProcessing).Do("markStarted").
			Done().
		State(stateProcessing).
			On(eventSettle).Target(stateCompleted).Do("markSettled").
			On(eventDecline).Target(stateFailed).Do("markFailed").
			Done().
		State(stateCompleted).
			Final().
			Done().
		State(stateFailed).
			On(eventRetry).Target(statePending).Guard("retriesLeft").Do("markRetried").
			Done().
		Build()
}

func markStarted(ctx **attemptContext, _ statekit.Event) {
	c := *ctx
	ts := c.Now()
	c.Attempt.Status = models.PaymentProcessing
	c.Attempt.StartedAt = &ts
	c.Attempt.FailureReason = ""
}

func markSettled(ctx **attemptContext, _ statekit.Event) {
	c := *ctx
	ts := c.Now()
	c.Attempt.Status = models.PaymentCompleted
	c.Attempt.SettledAt = &ts
	c.Attempt.GatewayReference = c.Reference
}

func markFailed(ctx **attemptContext, _ statekit.Event) {
	c := *ctx
	ts := c.Now()
	c.Attempt.Status = models.PaymentFailed
	c.Attempt.SettledAt = &ts
	c.Attempt.FailureReason = c.Reason
	if c.Reference != "" {
		c.Attempt.GatewayReference = c.Reference
	}
}

func markRetried(ctx **attemptContext, _ statekit.Event) {
	c := *ctx
	c.Attempt.Status = models.PaymentPending
	c.Attempt.Retries++
	c.Attempt.StartedAt = nil
	c.Attempt.SettledAt = nil
}

func retriesLeft(ctx *attemptContext, _ statekit.Event) bool {
	return ctx != nil && ctx.Attempt != nil && ctx.Attempt.Retries < ctx.MaxRetries
}

// lifecycle drives one stored attempt through the payment chart.
type lifecycle struct {
	interp *statekit.Interpreter[*attemptContext]
	ctx    *attemptContext
}

func resume(machine *statekit.MachineConfig[*attemptContext], c *attemptContext) (*lifecycle, error) {
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(mc **attemptContext) {
		*mc = c
	})
	snapshot := statekit.Snapshot[*attemptContext]{
		MachineID:    "payment",
		CurrentState: statekit.StateID(c.Attempt.Status),
		Context:      c,
		CreatedAt:    c.Now(),
	}
	if err := interp.Restore(snapshot); err != nil {
		return nil, fmt.Errorf("restore payment attempt %d: %w", c.Attempt.ID, err)
	}
	return &lifecycle{interp: interp, ctx: c}, nil
}

func (l *lifecycle) state() models.PaymentStatus {
	return models.PaymentStatus(l.interp.State().Value)
}

// fire sends ev if the chart allows it from the current state.
func (l *lifecycle) fire(ev statekit.EventType) error {
	from := l.state()
	to, ok := transitions[from][ev]
	if !ok {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ev, from)
	}
	l.interp.Send(statekit.Event{Type: ev})
	if got := l.state(); got != to {
		return fmt.Errorf("%w: %s from %s blocked", ErrInvalidTransition, ev, from)
	}
	return nil
}
