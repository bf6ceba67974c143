package repository

import (
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"gorm.io/gorm"

	"presale/models"
)

// Policies reads issued policies. Writes only happen through
// Proposals.SaveConverted so a policy never exists without its conversion.
type Policies struct {
	db *gorm.DB
}

func NewPolicies(db *gorm.DB) *Policies {
	return &Policies{db: db}
}

func (r *Policies) Get(ctx context.Context, policyNumber string) (*models.IssuedPolicy, error) {
	return r.first(ctx, "policy_number = ?", policyNumber)
}

func (r *Policies) GetByProposal(ctx context.Context, proposalID string) (*models.IssuedPolicy, error) {
	return r.first(ctx, "proposal_id = ?", proposalID)
}

func (r *Policies) first(ctx context.Context, where string, arg interface{}) (*models.IssuedPolicy, error) {
	var rec models.IssuedPolicyRecord
	err := r.db.WithContext(ctx).Where(where, arg).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load issued policy: %w", err)
	}

	policy := new(models.IssuedPolicy)
	if err := json.Unmarshal(rec.Snapshot, policy); err != nil {
		return nil, fmt.Errorf("decode issued policy %s: %w", rec.PolicyNumber, err)
	}
	return policy, nil
}
