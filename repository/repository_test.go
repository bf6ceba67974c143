package repository

import (
	"context"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"presale/database"
	"presale/models"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open("sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	return db
}

func sampleProposal() *models.Proposal {
	return &models.Proposal{
		CustomerInfo: models.CustomerInfo{
			FirstName: "Asha", LastName: "Rao",
			Email: "Asha@Example.com", Phone: "9876543210",
		},
		PolicyDetails: models.PolicyDetails{
			PolicyType: models.PolicyTypeGenMotor, PolicyFor: models.PolicyForRollover,
			YearOfManufacture: "2023",
		},
		SelectedQuote: &models.SelectedQuote{CompanyName: "Acme General", TotalPremium: 12500},
	}
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewProposals(openDB(t))

	p := sampleProposal()
	require.NoError(t, repo.Create(ctx, p))
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, 1, p.Version)
	assert.Equal(t, models.ProposalDraft, p.Status)
	assert.Equal(t, models.KYCPending, p.KYCStatus)
	assert.Equal(t, models.QuotePending, p.SelectedQuote.Status)

	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha", got.CustomerInfo.FirstName)
	assert.Equal(t, "Acme General", got.SelectedQuote.CompanyName)
	assert.Equal(t, 1, got.Version)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveDetectsVersionConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewProposals(openDB(t))

	p := sampleProposal()
	require.NoError(t, repo.Create(ctx, p))

	first, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	second, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)

	first.CustomerInfo.City = "Pune"
	require.NoError(t, repo.Save(ctx, first))
	assert.Equal(t, 2, first.Version)

	second.CustomerInfo.City = "Nashik"
	err = repo.Save(ctx, second)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, 1, second.Version)

	stored, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pune", stored.CustomerInfo.City)
}

func convert(p *models.Proposal) *models.IssuedPolicy {
	ts := time.Now()
	p.Status = models.ProposalConverted
	p.SelectedQuote.Status = models.QuoteConverted
	p.SelectedQuote.PolicyNumber = "POL-" + uuid.NewString()[:8]
	p.SelectedQuote.ConvertedAt = &ts
	return &models.IssuedPolicy{
		PolicyNumber:      p.SelectedQuote.PolicyNumber,
		CertificateNumber: "CERT-" + p.SelectedQuote.PolicyNumber,
		ProposalID:        p.ID,
		IssuedAt:          ts,
		Customer:          p.CustomerInfo,
	}
}

func TestSaveConvertedIsAtMostOnce(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	repo := NewProposals(db)
	policies := NewPolicies(db)

	p := sampleProposal()
	require.NoError(t, repo.Create(ctx, p))

	stale, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)

	issued := convert(p)
	require.NoError(t, repo.SaveConverted(ctx, p, issued))

	again := convert(stale)
	err = repo.SaveConverted(ctx, stale, again)
	assert.ErrorIs(t, err, ErrAlreadyConverted)

	var count int64
	require.NoError(t, db.Model(&models.IssuedPolicyRecord{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	got, err := policies.GetByProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, issued.PolicyNumber, got.PolicyNumber)

	byNumber, err := policies.Get(ctx, issued.PolicyNumber)
	require.NoError(t, err)
	assert.Equal(t, p.ID, byNumber.ProposalID)

	assert.ErrorIs(t, repo.Save(ctx, p), ErrAlreadyConverted)
	assert.ErrorIs(t, repo.Delete(ctx, p.ID), ErrAlreadyConverted)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewProposals(openDB(t))

	p := sampleProposal()
	require.NoError(t, repo.Create(ctx, p))
	require.NoError(t, repo.Delete(ctx, p.ID))

	_, err := repo.Get(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, p.ID), ErrNotFound)
}

func TestSearchHidesConvertedByDefault(t *testing.T) {
	ctx := context.Background()
	repo := NewProposals(openDB(t))

	open := sampleProposal()
	require.NoError(t, repo.Create(ctx, open))

	done := sampleProposal()
	done.CustomerInfo.FirstName = "Vikram"
	done.CustomerInfo.Email = "vikram@example.com"
	require.NoError(t, repo.Create(ctx, done))
	require.NoError(t, repo.SaveConverted(ctx, done, convert(done)))

	page, err := repo.Search(ctx, Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, open.ID, page.Items[0].ID)

	page, err = repo.Search(ctx, Filter{IncludeConverted: true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	page, err = repo.Search(ctx, Filter{Status: models.ProposalConverted})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, done.ID, page.Items[0].ID)

	page, err = repo.Search(ctx, Filter{Text: "VIKRAM", IncludeConverted: true})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	page, err = repo.Search(ctx, Filter{Email: "asha@example.com"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	today := time.Now()
	page, err = repo.Search(ctx, Filter{CreatedOn: &today, IncludeConverted: true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
}

const legacyRecord = `{
	"id": "legacy-001",
	"firstName": "Meera",
	"lastName": "Iyer",
	"email": "meera@example.com",
	"mobile": "9123456780",
	"address": "4 Lake View",
	"city": "Chennai",
	"state": "TN",
	"pinCode": "600001",
	"policyType": "GEN_MOTOR",
	"policyFor": "ROLLOVER",
	"vehicleClass": "PRIVATE",
	"vehicleType": "PRIVATE CAR",
	"make": "Maruti",
	"yearOfManufacture": 2023,
	"policyTerm": "SAOD",
	"insurerName": "Acme General",
	"premium": 9800,
	"kycStatus": "VERIFIED"
}`

func TestNormalizeLegacyFlatShape(t *testing.T) {
	p, err := Normalize([]byte(legacyRecord))
	require.NoError(t, err)

	assert.Equal(t, "legacy-001", p.ID)
	assert.Equal(t, models.ProposalDraft, p.Status)
	assert.Equal(t, models.KYCVerified, p.KYCStatus)
	assert.Equal(t, models.CustomerIndividual, p.CustomerInfo.CustomerType)
	assert.Equal(t, "Meera", p.CustomerInfo.FirstName)
	assert.Equal(t, "9123456780", p.CustomerInfo.Phone)
	assert.Equal(t, "600001", p.CustomerInfo.Pincode)
	assert.Equal(t, "Maruti", p.PolicyDetails.OEM)
	assert.Equal(t, "2023", p.PolicyDetails.YearOfManufacture)
	require.NotNil(t, p.SelectedQuote)
	assert.Equal(t, "Acme General", p.SelectedQuote.CompanyName)
	assert.Equal(t, 9800.0, p.SelectedQuote.TotalPremium)
	assert.Equal(t, models.QuotePending, p.SelectedQuote.Status)
}

func TestLegacyRoundTripExposesCustomerInfo(t *testing.T) {
	p, err := Normalize([]byte(legacyRecord))
	require.NoError(t, err)

	out, err := encode(p)
	require.NoError(t, err)

	var doc struct {
		CustomerInfo map[string]interface{} `json:"customerInfo"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, "Meera", doc.CustomerInfo["firstName"])
	assert.Equal(t, "Iyer", doc.CustomerInfo["lastName"])
	assert.Equal(t, "meera@example.com", doc.CustomerInfo["email"])
	assert.Equal(t, "9123456780", doc.CustomerInfo["phone"])

	again, err := Normalize(out)
	require.NoError(t, err)
	assert.Equal(t, p.CustomerInfo, again.CustomerInfo)
	assert.Equal(t, p.PolicyDetails, again.PolicyDetails)
}

func TestNormalizeMissingSectionsAndConvertedFlag(t *testing.T) {
	p, err := Normalize([]byte(`{"id":"x","selectedQuote":{"companyName":"Acme","status":"CONVERTED","policyNumber":"POL-1"}}`))
	require.NoError(t, err)
	assert.Equal(t, models.ProposalConverted, p.Status)
	assert.True(t, p.IsConverted())

	_, err = Normalize([]byte(`not json`))
	assert.Error(t, err)
}

func TestImportStoresLegacyRecord(t *testing.T) {
	ctx := context.Background()
	repo := NewProposals(openDB(t))

	p, err := repo.Import(ctx, []byte(legacyRecord))
	require.NoError(t, err)

	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Meera", got.CustomerInfo.FirstName)

	page, err := repo.Search(ctx, Filter{Phone: "9123456780"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
}
