package issuer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"presale/database"
	"presale/models"
	"presale/notifier"
	"presale/repository"
)

type captureNotifier struct {
	sent []notifier.Payload
	err  error
}

func (c *captureNotifier) Send(_ context.Context, kind notifier.Kind, _ string, p notifier.Payload) error {
	if kind == notifier.KindPolicyIssued {
		c.sent = append(c.sent, p)
	}
	return c.err
}

func setup(t *testing.T) (*repository.Proposals, *gorm.DB, *models.Proposal) {
	t.Helper()
	db, err := database.Open("sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)

	repo := repository.NewProposals(db)
	p := &models.Proposal{
		CustomerInfo:   models.CustomerInfo{FirstName: "Asha", LastName: "Rao", Email: "asha@example.com", Phone: "9876543210"},
		VehicleDetails: models.VehicleDetails{ChassisNumber: "MA3EUA61S00123456", EngineNumber: "K12MN1234567"},
		SelectedQuote:  &models.SelectedQuote{CompanyName: "Acme General", TotalPremium: 12500, IDV: 540000},
		SelectedAddOns: []string{"zeroDep"},
		KYCStatus:      models.KYCVerified,
		Status:         models.ProposalApproved,
	}
	require.NoError(t, repo.Create(context.Background(), p))
	return repo, db, p
}

func paid() models.PaymentSnapshot {
	return models.PaymentSnapshot{AttemptID: 1, Method: "online", Reference: "SIM-1", Amount: 12500, PaidAt: time.Now()}
}

func TestIssueConvertsProposalAndQuote(t *testing.T) {
	repo, _, p := setup(t)
	n := &captureNotifier{}
	iss := New(repo, n)
	ctx := context.Background()

	out, err := iss.Issue(ctx, p, paid())
	require.NoError(t, err)
	assert.NoError(t, out.NotificationErr)

	policy := out.Policy
	assert.Regexp(t, `^POL-\d{8}-[0-9A-F]{12}$`, policy.PolicyNumber)
	assert.Regexp(t, `^CERT-\d{8}-[0-9A-F]{12}$`, policy.CertificateNumber)
	assert.Equal(t, "Acme General", policy.InsurerName)
	assert.Equal(t, "MA3EUA61S00123456", policy.Vehicle.ChassisNumber)
	assert.Equal(t, "SIM-1", policy.Payment.Reference)

	assert.Equal(t, models.ProposalConverted, p.Status)
	assert.Equal(t, models.QuoteConverted, p.SelectedQuote.Status)
	assert.Equal(t, policy.PolicyNumber, p.SelectedQuote.PolicyNumber)
	assert.NotNil(t, p.SelectedQuote.ConvertedAt)

	stored, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalConverted, stored.Status)
	assert.Equal(t, models.QuoteConverted, stored.SelectedQuote.Status)

	require.Len(t, n.sent, 1)
	assert.Equal(t, policy.PolicyNumber, n.sent[0][notifier.KeyPolicyNumber])
	assert.Equal(t, "12500.00", n.sent[0][notifier.KeyPremium])
}

func TestIssueTwiceYieldsOnePolicy(t *testing.T) {
	repo, db, p := setup(t)
	iss := New(repo, nil)
	ctx := context.Background()

	stale, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)

	first, err := iss.Issue(ctx, p, paid())
	require.NoError(t, err)

	_, err = iss.Issue(ctx, p, paid())
	var already *AlreadyConvertedError
	require.True(t, errors.As(err, &already))
	assert.Equal(t, first.Policy.PolicyNumber, already.PolicyNumber)

	// a copy read before the conversion is stopped by the store guard
	_, err = iss.Issue(ctx, stale, paid())
	require.True(t, errors.As(err, &already))
	assert.Equal(t, models.ProposalApproved, stale.Status)

	var count int64
	require.NoError(t, db.Model(&models.IssuedPolicyRecord{}).Where("proposal_id = ?", p.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestConvertedQuoteAloneBlocksIssue(t *testing.T) {
	repo, _, p := setup(t)
	p.SelectedQuote.Status = models.QuoteConverted

	_, err := New(repo, nil).Issue(context.Background(), p, paid())
	var already *AlreadyConvertedError
	assert.True(t, errors.As(err, &already))
}

func TestSnapshotIsDetachedFromProposal(t *testing.T) {
	repo, db, p := setup(t)
	ctx := context.Background()

	out, err := New(repo, nil).Issue(ctx, p, paid())
	require.NoError(t, err)

	p.CustomerInfo.FirstName = "Changed"
	p.SelectedAddOns[0] = "changed"

	stored, err := repository.NewPolicies(db).Get(ctx, out.Policy.PolicyNumber)
	require.NoError(t, err)
	assert.Equal(t, "Asha", stored.Customer.FirstName)
	assert.Equal(t, []string{"zeroDep"}, stored.AddOns)
	assert.Equal(t, "Asha", out.Policy.Customer.FirstName)
}

func TestNotificationFailureIsAWarning(t *testing.T) {
	repo, _, p := setup(t)
	n := &captureNotifier{err: notifier.ErrRejected}

	out, err := New(repo, n).Issue(context.Background(), p, paid())
	require.NoError(t, err)
	assert.ErrorIs(t, out.NotificationErr, notifier.ErrRejected)
	assert.Equal(t, models.ProposalConverted, p.Status)
}

func TestIssueWithoutQuote(t *testing.T) {
	repo, _, p := setup(t)
	p.SelectedQuote = nil

	_, err := New(repo, nil).Issue(context.Background(), p, paid())
	assert.Error(t, err)
}
