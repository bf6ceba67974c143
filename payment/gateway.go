package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// Charge is one request to collect a premium.
type Charge struct {
	AttemptID  uint
	ProposalID string
	Method     string
	Amount     float64
}

// GatewayResult is the gateway's verdict. Declined is a business outcome,
// distinct from a transport error.
type GatewayResult struct {
	Approved  bool
	Reference string
	Reason    string
}

// Gateway is the external payment processor. Only its status contract matters.
type Gateway interface {
	Charge(ctx context.Context, c Charge) (GatewayResult, error)
}

// RESTGateway talks JSON to a hosted payment API behind a circuit breaker.
type RESTGateway struct {
	client  *resty.Client
	url     string
	breaker circuitbreaker.CircuitBreaker[GatewayResult]
}

type chargeRequest struct {
	Reference  string  `json:"merchantReference"`
	ProposalID string  `json:"proposalId"`
	Method     string  `json:"method"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
}

type chargeResponse struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Reason    string `json:"reason"`
}

func NewRESTGateway(url, apiKey string, timeout time.Duration) *RESTGateway {
	return &RESTGateway{
		client: resty.New().
			SetTimeout(timeout).
			SetAuthToken(apiKey).
			SetHeader("Content-Type", "application/json"),
		url:     strings.TrimRight(url, "/"),
		breaker: circuitbreaker.New[GatewayResult](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (g *RESTGateway) Charge(ctx context.Context, c Charge) (GatewayResult, error) {
	return g.breaker.Execute(ctx, func(ctx context.Context) (GatewayResult, error) {
		var out chargeResponse
		resp, err := g.client.R().
			SetContext(ctx).
			SetBody(chargeRequest{
				Reference:  fmt.Sprintf("%s-%d", c.ProposalID, c.AttemptID),
				ProposalID: c.ProposalID,
				Method:     c.Method,
				Amount:     c.Amount,
				Currency:   "INR",
			}).
			SetResult(&out).
			Post(g.url + "/charges")
		if err != nil {
			return GatewayResult{}, fmt.Errorf("payment gateway: %w", err)
		}
		if resp.StatusCode() >= 500 {
			return GatewayResult{}, fmt.Errorf("payment gateway: status %d", resp.StatusCode())
		}
		if resp.IsError() {
			return GatewayResult{Reason: fmt.Sprintf("gateway rejected request: %s", resp.String())}, nil
		}

		switch strings.ToLower(out.Status) {
		case "succeeded", "success", "completed", "captured":
			return GatewayResult{Approved: true, Reference: out.Reference}, nil
		}
		reason := out.Reason
		if reason == "" {
			reason = "declined by gateway"
		}
		return GatewayResult{Reference: out.Reference, Reason: reason}, nil
	})
}

// BreakerState reports the circuit state for health output.
func (g *RESTGateway) BreakerState() string {
	return g.breaker.State().String()
}

// SimulatedGateway approves everything except methods it was told
// to decline. It stands in when no gateway URL is configured.
type SimulatedGateway struct {
	mu             sync.Mutex
	DeclineMethods map[string]string
	Delay          time.Duration
	Err            error
	calls          int
}

func (g *SimulatedGateway) Charge(ctx context.Context, c Charge) (GatewayResult, error) {
	g.mu.Lock()
	g.calls++
	delay, failErr := g.Delay, g.Err
	reason, declined := g.DeclineMethods[strings.ToLower(c.Method)]
	g.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return GatewayResult{}, ctx.Err()
		}
	}
	if failErr != nil {
		return GatewayResult{}, failErr
	}
	if declined {
		return GatewayResult{Reference: "SIM-" + uuid.NewString()[:8], Reason: reason}, nil
	}
	return GatewayResult{Approved: true, Reference: "SIM-" + uuid.NewString()[:8]}, nil
}

// Calls is the number of charges attempted.
func (g *SimulatedGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
