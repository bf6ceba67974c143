package proposalValidator

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presale/models"
)

func newValidator(zeroIsMissing bool) *Validator {
	cfg := models.DefaultWorkflowConfig()
	cfg.ZeroPremiumIsMissing = zeroIsMissing
	return New(cfg)
}

func validationErr(t *testing.T, err error) *ValidationError {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected *ValidationError, got %v", err)
	return ve
}

func TestCustomerInfoListsEveryMissingField(t *testing.T) {
	p := &models.Proposal{CustomerInfo: models.CustomerInfo{Email: "asha@example.com"}}

	ve := validationErr(t, newValidator(true).Stage(models.StageCustomerInfo, p))

	assert.ElementsMatch(t,
		[]string{"firstName", "lastName", "phone", "address", "city", "state", "pincode"},
		ve.FieldNames())
	assert.Equal(t, models.StageCustomerInfo, ve.Stage)
}

func TestCorporateCustomerNeedsCompanyNotNames(t *testing.T) {
	p := &models.Proposal{CustomerInfo: models.CustomerInfo{
		CustomerType: models.CustomerCorporate,
		Email:        "fleet@acme.in",
	}}

	ve := validationErr(t, newValidator(true).Stage(models.StageCustomerInfo, p))

	assert.True(t, ve.Has("companyName"))
	assert.False(t, ve.Has("firstName"))
	assert.False(t, ve.Has("lastName"))
}

func TestCustomerInfoMalformedValues(t *testing.T) {
	p := &models.Proposal{CustomerInfo: models.CustomerInfo{
		FirstName: "Asha", LastName: "Rao",
		Email: "not-an-email", Phone: "98765",
		Address: "12 MG Road", City: "Pune", State: "MH", Pincode: "4110",
	}}

	ve := validationErr(t, newValidator(true).Stage(models.StageCustomerInfo, p))
	assert.ElementsMatch(t, []string{"email", "phone", "pincode"}, ve.FieldNames())
}

func TestCompleteCustomerInfoPasses(t *testing.T) {
	v := newValidator(true)
	ci := models.CustomerInfo{
		FirstName: "Asha", LastName: "Rao",
		Email: "asha@example.com", Phone: "9876543210",
		Address: "12 MG Road", City: "Pune", State: "MH", Pincode: "411001",
	}
	assert.NoError(t, v.Stage(models.StageCustomerInfo, &models.Proposal{CustomerInfo: ci}))
	assert.True(t, v.CustomerInfoComplete(ci))
}

func completePrevious(premium float64) *models.PreviousPolicyDetails {
	return &models.PreviousPolicyDetails{
		ODPolicyNumber: "OD-1", ODInsurer: "Acme", ODFromDate: "2024-01-01", ODToDate: "2024-12-31",
		TPPolicyNumber: "TP-1", TPInsurer: "Acme", TPFromDate: "2022-01-01", TPToDate: "2026-12-31",
		PremiumPaid: &premium,
	}
}

func TestPreviousPolicyMissingEverything(t *testing.T) {
	ve := validationErr(t, newValidator(true).Stage(models.StagePreviousPolicyDetails, &models.Proposal{}))
	assert.Len(t, ve.Fields, 9)
	assert.True(t, ve.Has("previousPremiumPaid"))
}

func TestPreviousPremiumZeroAndNaN(t *testing.T) {
	strict := newValidator(true)
	lenient := newValidator(false)

	zero := &models.Proposal{PreviousPolicyDetails: completePrevious(0)}
	assert.Error(t, strict.Stage(models.StagePreviousPolicyDetails, zero))
	assert.NoError(t, lenient.Stage(models.StagePreviousPolicyDetails, zero))

	nan := &models.Proposal{PreviousPolicyDetails: completePrevious(math.NaN())}
	assert.Error(t, lenient.Stage(models.StagePreviousPolicyDetails, nan))

	paid := &models.Proposal{PreviousPolicyDetails: completePrevious(8450)}
	assert.NoError(t, strict.Stage(models.StagePreviousPolicyDetails, paid))
	assert.True(t, strict.PreviousPolicyComplete(paid.PreviousPolicyDetails))
}

func TestVehicleAndLiabilityStages(t *testing.T) {
	v := newValidator(true)

	ve := validationErr(t, v.Stage(models.StageOtherVehicleDetails, &models.Proposal{}))
	assert.ElementsMatch(t, []string{"chassisNumber", "engineNumber"}, ve.FieldNames())

	assert.NoError(t, v.Stage(models.StageLiabilityDetails, &models.Proposal{}))
}

func TestNomineeRules(t *testing.T) {
	p := &models.Proposal{NomineeDetails: models.NomineeDetails{
		Name: "R2 D2", Relationship: "Spouse", Contact: "12345",
		Email: "x@", Sex: "F", DateOfBirth: "01/02/1990",
	}}

	ve := validationErr(t, newValidator(true).Stage(models.StageNominationDetails, p))
	assert.ElementsMatch(t, []string{"name", "contact", "email", "dateOfBirth"}, ve.FieldNames())
}

func TestPaymentStagePreconditions(t *testing.T) {
	p := &models.Proposal{KYCStatus: models.KYCPending}

	ve := validationErr(t, newValidator(true).Stage(models.StagePaymentDeclaration, p))
	assert.ElementsMatch(t,
		[]string{"paymentMode", "declarationAccepted", "selectedQuote", "kycStatus"},
		ve.FieldNames())

	p.KYCStatus = models.KYCVerified
	p.SelectedQuote = &models.SelectedQuote{CompanyName: "Acme", TotalPremium: 12000, Status: models.QuotePending}
	p.PaymentDeclaration = models.PaymentDeclaration{PaymentMode: "online", DeclarationAccepted: true}
	assert.NoError(t, newValidator(true).Stage(models.StagePaymentDeclaration, p))
}

func TestIssuanceHasNoExit(t *testing.T) {
	err := newValidator(true).Stage(models.StagePolicyIssuance, &models.Proposal{})
	require.Error(t, err)
	var ve *ValidationError
	assert.False(t, errors.As(err, &ve))
}

func TestThroughReportsEarlierSections(t *testing.T) {
	v := newValidator(true)
	seq := []models.Stage{
		models.StageCustomerInfo, models.StageKYC, models.StageOtherVehicleDetails,
		models.StageLiabilityDetails, models.StageNominationDetails,
		models.StagePaymentDeclaration, models.StagePolicyIssuance,
	}
	p := &models.Proposal{
		CustomerInfo: models.CustomerInfo{
			FirstName: "Asha", LastName: "Rao",
			Email: "asha@example.com", Phone: "9876543210",
			Address: "12 MG Road", City: "Pune", State: "MH", Pincode: "411001",
		},
		KYCStatus:          models.KYCPending,
		SelectedQuote:      &models.SelectedQuote{CompanyName: "Acme", TotalPremium: 12000},
		PaymentDeclaration: models.PaymentDeclaration{PaymentMode: "online", DeclarationAccepted: true},
	}

	ve := validationErr(t, v.Through(seq, models.StagePaymentDeclaration, p))
	assert.ElementsMatch(t, []string{
		"kycStatus",
		"vehicleDetails.chassisNumber", "vehicleDetails.engineNumber",
		"nomineeDetails.name", "nomineeDetails.relationship", "nomineeDetails.contact",
		"nomineeDetails.email", "nomineeDetails.sex", "nomineeDetails.dateOfBirth",
	}, ve.FieldNames())
	assert.Equal(t, models.StagePaymentDeclaration, ve.Stage)

	// stages after the one being left are not consulted
	assert.NoError(t, v.Earlier(seq, models.StageOtherVehicleDetails, &models.Proposal{
		CustomerInfo: p.CustomerInfo, KYCStatus: models.KYCVerified,
	}))
}
