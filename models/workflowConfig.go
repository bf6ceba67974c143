package models

import "time"

// WorkflowConfig is built once from configuration and handed to the engine and
// its gates. Nothing downstream reads process state to change behavior.
type WorkflowConfig struct {
	// AllowGateBypass skips the one-time-code comparison and the KYC document
	// requirement. It must stay false in production.
	AllowGateBypass bool

	// ZeroPremiumIsMissing treats a previous premium of 0 as not entered.
	ZeroPremiumIsMissing bool

	// MaxOTPAttempts is how many wrong entries burn an issued code.
	MaxOTPAttempts int

	OTPValidity    time.Duration
	PaymentTimeout time.Duration
}

// DefaultWorkflowConfig mirrors the production defaults.
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		AllowGateBypass:      false,
		ZeroPremiumIsMissing: true,
		MaxOTPAttempts:       5,
		OTPValidity:          10 * time.Minute,
		PaymentTimeout:       2 * time.Minute,
	}
}
