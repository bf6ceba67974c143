package proposalController_test

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	proposalController "presale/controllers/proposal"
	"presale/database"
	"presale/eligibility"
	"presale/issuer"
	"presale/kyc"
	"presale/middleware"
	"presale/models"
	"presale/notifier"
	"presale/payment"
	"presale/repository"
	"presale/routers/proposalRoutes"
	"presale/utils"
	proposalValidator "presale/validators/proposal"
	"presale/verification"
	"presale/workflow"
)

const secret = "proposal-test-secret"

var pdfContent = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

type codeCatcher struct {
	code string
}

func (r *codeCatcher) Send(_ context.Context, kind notifier.Kind, _ string, p notifier.Payload) error {
	if kind == notifier.KindOTPVerification {
		r.code = p[notifier.KeyCode]
	}
	return nil
}

type server struct {
	app        *fiber.App
	repo       *repository.Proposals
	codes      *codeCatcher
	agent      string
	supervisor string
}

func newServer(t *testing.T) *server {
	t.Helper()
	cfg := models.DefaultWorkflowConfig()

	db, err := database.Open("sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)

	s := &server{repo: repository.NewProposals(db), codes: &codeCatcher{}}
	payments, err := payment.NewGate(db, &payment.SimulatedGateway{DeclineMethods: map[string]string{"cheque": "cheque bounced"}}, cfg)
	require.NoError(t, err)

	pinned := time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC)
	engine := workflow.New(workflow.Deps{
		Proposals:   s.repo,
		Policies:    repository.NewPolicies(db),
		Eligibility: &eligibility.Evaluator{Now: func() time.Time { return pinned }},
		Validator:   proposalValidator.New(cfg),
		Verifier:    verification.NewGate(db, s.codes, cfg),
		KYC:         kyc.NewGate(cfg),
		Payments:    payments,
		Issuer:      issuer.New(s.repo, s.codes),
		Documents:   utils.DiskDocumentStore{Root: t.TempDir()},
	})

	s.app = fiber.New()
	proposalRoutes.SetupProposalRoutes(s.app, proposalController.New(engine), secret)

	s.agent, err = middleware.GenerateJWT(1, "Meera", middleware.RoleAgent, "meera@example.com", secret)
	require.NoError(t, err)
	s.supervisor, err = middleware.GenerateJWT(2, "Kiran", middleware.RoleSupervisor, "kiran@example.com", secret)
	require.NoError(t, err)
	return s
}

type response struct {
	Status  bool                   `json:"status"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func (s *server) send(t *testing.T, method, path, token string, body interface{}) (int, response) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return s.exec(t, req, token)
}

func (s *server) exec(t *testing.T, req *http.Request, token string) (int, response) {
	t.Helper()
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out response
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func customer() models.CustomerInfo {
	return models.CustomerInfo{
		CustomerType: models.CustomerIndividual,
		FirstName:    "Asha",
		LastName:     "Rao",
		Email:        "asha@example.com",
		Phone:        "9876543210",
		Address:      "12 MG Road",
		City:         "Bengaluru",
		State:        "Karnataka",
		Pincode:      "560001",
	}
}

func newPolicy() models.PolicyDetails {
	return models.PolicyDetails{
		PolicyType:   models.PolicyTypeGenMotor,
		PolicyFor:    models.PolicyForNew,
		VehicleClass: models.VehicleClassPrivate,
		VehicleType:  models.VehicleTypePrivate,
	}
}

func TestRoutesNeedToken(t *testing.T) {
	s := newServer(t)

	status, _ := s.send(t, "GET", "/proposals", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	status, _ = s.send(t, "GET", "/policies/POL-1", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestCreateAndOpenProposal(t *testing.T) {
	s := newServer(t)

	status, body := s.send(t, "POST", "/proposals", s.agent, fiber.Map{
		"policyDetails": newPolicy(),
		"quote":         fiber.Map{"companyName": "Acme General", "totalPremium": 12500},
		"addOns":        []string{"zeroDep", " rsa ", "zeroDep"},
	})
	require.Equal(t, fiber.StatusCreated, status, body.Message)
	id := body.Data["id"].(string)
	assert.Equal(t, []interface{}{"rsa", "zeroDep"}, body.Data["selectedAddOns"])

	status, body = s.send(t, "GET", "/proposals/"+id, s.agent, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, string(models.StageCustomerInfo), body.Data["stage"])
	assert.EqualValues(t, 0, body.Data["stageCode"])
	assert.Equal(t, false, body.Data["readOnly"])

	status, body = s.send(t, "GET", "/proposals?search=nobody", s.agent, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 0, body.Data["pagination"].(map[string]interface{})["total"])
}

func TestCreateValidatesRequest(t *testing.T) {
	s := newServer(t)

	status, body := s.send(t, "POST", "/proposals", s.agent, fiber.Map{
		"quote": fiber.Map{"totalPremium": 0},
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Contains(t, body.Data, "policyDetails.policyType")
	assert.Contains(t, body.Data, "quote.companyName")
	assert.Contains(t, body.Data, "quote.totalPremium")
}

func TestStageErrorsListMissingFields(t *testing.T) {
	s := newServer(t)
	p := &models.Proposal{PolicyDetails: newPolicy()}
	require.NoError(t, s.repo.Create(context.Background(), p))

	status, body := s.send(t, "POST", "/proposals/"+p.ID+"/stages/0", s.agent, fiber.Map{"email": "asha@example.com"})
	require.Equal(t, fiber.StatusUnprocessableEntity, status)
	for _, field := range []string{"firstName", "lastName", "phone", "address", "city", "state", "pincode"} {
		assert.Contains(t, body.Data, field)
	}

	status, _ = s.send(t, "POST", "/proposals/"+p.ID+"/stages/NOMINATION_DETAILS", s.agent, fiber.Map{})
	assert.Equal(t, fiber.StatusConflict, status)

	status, _ = s.send(t, "POST", "/proposals/"+p.ID+"/stages/6", s.agent, fiber.Map{})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	status, _ = s.send(t, "POST", "/proposals/missing/stages/0", s.agent, fiber.Map{})
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestKYCUploadWithCode(t *testing.T) {
	s := newServer(t)
	p := &models.Proposal{
		CustomerInfo:  customer(),
		PolicyDetails: newPolicy(),
		SelectedQuote: &models.SelectedQuote{CompanyName: "Acme General", TotalPremium: 12500},
	}
	require.NoError(t, s.repo.Create(context.Background(), p))

	status, body := s.send(t, "POST", "/proposals/"+p.ID+"/otp", s.agent, nil)
	require.Equal(t, fiber.StatusOK, status, body.Message)
	assert.Equal(t, "asha@example.com", body.Data["contact"])
	assert.NotContains(t, body.Data, "code")
	require.NotEmpty(t, s.codes.code)

	upload := func(code string) (int, response) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		require.NoError(t, w.WriteField("pan", "abcde1234f"))
		require.NoError(t, w.WriteField("panName", "Asha Rao"))
		require.NoError(t, w.WriteField("code", code))
		part, err := w.CreateFormFile("panCard", "pan.pdf")
		require.NoError(t, err)
		_, err = part.Write(pdfContent)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		req := httptest.NewRequest("POST", "/proposals/"+p.ID+"/stages/KYC", &buf)
		req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
		return s.exec(t, req, s.agent)
	}

	wrong := "000000"
	if s.codes.code == wrong {
		wrong = "111111"
	}
	status, _ = upload(wrong)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, body = upload(s.codes.code)
	require.Equal(t, fiber.StatusOK, status, body.Message)
	assert.Equal(t, string(models.StageOtherVehicleDetails), body.Data["next"])
	stored := body.Data["proposal"].(map[string]interface{})
	assert.Equal(t, string(models.KYCVerified), stored["kycStatus"])
}

func TestPaymentIssuesPolicyOnce(t *testing.T) {
	s := newServer(t)
	p := &models.Proposal{
		CustomerInfo:     customer(),
		PolicyDetails:    newPolicy(),
		SelectedQuote:    &models.SelectedQuote{CompanyName: "Acme General", TotalPremium: 12500},
		KYCStatus:        models.KYCVerified,
		VehicleDetails:   models.VehicleDetails{ChassisNumber: "MA3EUA61S00123456", EngineNumber: "K12MN1234567"},
		LiabilityDetails: models.LiabilityDetails{PAOwnerDriver: true},
		NomineeDetails: models.NomineeDetails{
			Name: "Ravi Rao", Relationship: "Spouse", Contact: "9876501234",
			Email: "ravi@example.com", Sex: "M", DateOfBirth: "1990-04-01",
		},
	}
	require.NoError(t, s.repo.Create(context.Background(), p))
	payPath := "/proposals/" + p.ID + "/stages/PAYMENT_DECLARATION"

	status, body := s.send(t, "POST", payPath, s.agent, fiber.Map{"paymentMode": "cheque", "declarationAccepted": true})
	require.Equal(t, fiber.StatusPaymentRequired, status, body.Message)

	status, _ = s.send(t, "POST", "/proposals/"+p.ID+"/payment/retry", s.agent, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, body = s.send(t, "POST", payPath, s.agent, fiber.Map{"paymentMode": "online", "declarationAccepted": true})
	require.Equal(t, fiber.StatusOK, status, body.Message)
	policy := body.Data["issuedPolicy"].(map[string]interface{})
	number := policy["policyNumber"].(string)
	assert.Regexp(t, `^POL-\d{8}-[0-9A-F]{12}$`, number)

	status, body = s.send(t, "POST", payPath, s.agent, fiber.Map{"paymentMode": "online", "declarationAccepted": true})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, number, body.Data["policyNumber"])

	status, body = s.send(t, "GET", "/proposals/"+p.ID, s.agent, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body.Data["readOnly"])

	status, body = s.send(t, "GET", "/policies/"+number, s.agent, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, p.ID, body.Data["proposalId"])

	status, body = s.send(t, "GET", "/policies/POL-00000000-000000000000", s.agent, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "Policy not found!", body.Message)
}

func TestPaymentWaitsForEarlierStages(t *testing.T) {
	s := newServer(t)
	p := &models.Proposal{
		CustomerInfo:  customer(),
		PolicyDetails: newPolicy(),
		SelectedQuote: &models.SelectedQuote{CompanyName: "Acme General", TotalPremium: 12500},
		KYCStatus:     models.KYCVerified,
		FurthestStage: models.StageOtherVehicleDetails,
	}
	require.NoError(t, s.repo.Create(context.Background(), p))

	status, body := s.send(t, "POST", "/proposals/"+p.ID+"/stages/PAYMENT_DECLARATION", s.agent,
		fiber.Map{"paymentMode": "online", "declarationAccepted": true})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Contains(t, body.Message, "vehicleDetails.chassisNumber")

	status, body = s.send(t, "GET", "/proposals/"+p.ID, s.agent, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, body.Data["issuedPolicy"])
}

func TestDeleteIsForSupervisorsWithConfirmation(t *testing.T) {
	s := newServer(t)
	p := &models.Proposal{PolicyDetails: newPolicy()}
	require.NoError(t, s.repo.Create(context.Background(), p))
	path := "/proposals/" + p.ID

	status, _ := s.send(t, "DELETE", path+"?confirmed=true&confirmedAgain=true", s.agent, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = s.send(t, "DELETE", path+"?confirmed=true", s.supervisor, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = s.send(t, "DELETE", path+"?confirmed=true&confirmedAgain=true", s.supervisor, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, _ = s.send(t, "GET", path, s.agent, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}
