package proposalController

import (
	"errors"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"presale/issuer"
	"presale/kyc"
	"presale/logging"
	"presale/middleware"
	"presale/models"
	"presale/payment"
	"presale/repository"
	"presale/utils"
	proposalValidator "presale/validators/proposal"
	"presale/verification"
	"presale/workflow"
)

// Handler serves the proposal pipeline to agents.
type Handler struct {
	Engine *workflow.Engine
}

func New(engine *workflow.Engine) *Handler {
	return &Handler{Engine: engine}
}

// multipart field names for KYC uploads
var documentFields = []struct {
	field string
	kind  models.KYCDocumentKind
}{
	{"panCard", models.DocumentPAN},
	{"addressProof", models.DocumentAddress},
	{"photo", models.DocumentPhoto},
}

type kycBody struct {
	CKYCNumber string `json:"ckycNumber" form:"ckycNumber"`
	PAN        string `json:"pan" form:"pan"`
	PANName    string `json:"panName" form:"panName"`
	Code       string `json:"code" form:"code"`
}

func (h *Handler) Create(c *fiber.Ctx) error {
	reqData, ok := c.Locals(proposalValidator.LocalCreate).(*proposalValidator.CreateProposalRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	in := workflow.NewProposal{
		CustomerInfo:      reqData.CustomerInfo,
		PolicyDetails:     reqData.PolicyDetails,
		NeedsCustomerInfo: reqData.NeedsCustomerInfo,
		AddOns:            reqData.AddOns,
	}
	if q := reqData.Quote; q != nil {
		in.Quote = &models.SelectedQuote{QuoteID: q.QuoteID, CompanyName: q.CompanyName, TotalPremium: q.TotalPremium, IDV: q.IDV}
	}

	p, err := h.Engine.Create(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Proposal created.", p)
}

func (h *Handler) List(c *fiber.Ctx) error {
	reqData, ok := c.Locals(proposalValidator.LocalSearch).(*proposalValidator.SearchRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	f := repository.Filter{
		Status:           models.ProposalStatus(reqData.Status),
		Email:            reqData.Email,
		Phone:            reqData.Phone,
		PolicyNumber:     reqData.PolicyNumber,
		Text:             reqData.Search,
		IncludeConverted: reqData.IncludeConverted,
		Page:             reqData.Page,
		Limit:            reqData.Limit,
	}
	if reqData.CreatedOn != "" {
		// already checked by the validator
		day, _ := time.Parse("2006-01-02", reqData.CreatedOn)
		f.CreatedOn = &day
	}

	page, err := h.Engine.Search(c.UserContext(), f)
	if err != nil {
		return respondError(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Proposal List.", fiber.Map{
		"proposals": page.Items,
		"pagination": fiber.Map{
			"total": page.Total,
			"page":  page.Page,
			"limit": page.Limit,
		},
	})
}

// Enter opens a proposal at its computed stage, or at ?stage= when reached.
func (h *Handler) Enter(c *fiber.Ctx) error {
	var target *models.Stage
	if stage, ok := c.Locals(proposalValidator.LocalEnter).(models.Stage); ok {
		target = &stage
	}

	session, err := h.Engine.Enter(c.UserContext(), c.Params("id"), target)
	if err != nil {
		return respondError(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Proposal opened.", session)
}

func (h *Handler) SelectQuote(c *fiber.Ctx) error {
	reqData, ok := c.Locals(proposalValidator.LocalQuote).(*proposalValidator.QuoteRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	p, err := h.Engine.SelectQuote(c.UserContext(), c.Params("id"), models.SelectedQuote{
		QuoteID:      reqData.QuoteID,
		CompanyName:  reqData.CompanyName,
		TotalPremium: reqData.TotalPremium,
		IDV:          reqData.IDV,
	})
	if err != nil {
		return respondError(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Quote selected.", p)
}

func (h *Handler) SetAddOns(c *fiber.Ctx) error {
	reqData, ok := c.Locals(proposalValidator.LocalAddOns).(*proposalValidator.AddOnsRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	p, err := h.Engine.SetAddOns(c.UserContext(), c.Params("id"), reqData.AddOns)
	if err != nil {
		return respondError(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Add-ons updated.", p)
}

// Advance completes the stage named in the path. The KYC stage takes a
// multipart form with documents; every other stage takes its section as JSON.
func (h *Handler) Advance(c *fiber.Ctx) error {
	stage, ok := c.Locals(proposalValidator.LocalStage).(models.Stage)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	var in workflow.FormInput
	if stage == models.StageKYC {
		kycIn, err := readKYC(c)
		if err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, err.Error(), nil)
		}
		in.KYC = kycIn
	} else if body := c.Body(); len(body) > 0 {
		in.Section = append(json.RawMessage(nil), body...)
	}

	t, err := h.Engine.Advance(c.UserContext(), c.Params("id"), stage, in)
	if err != nil {
		return respondError(c, err)
	}

	message := "Stage completed."
	if t.Policy != nil {
		message = "Payment received and policy issued."
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, message, t)
}

// readKYC returns nil when nothing was submitted, which lets an already
// verified proposal pass the stage unchanged.
func readKYC(c *fiber.Ctx) (*workflow.KYCInput, error) {
	body := new(kycBody)

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return nil, errors.New("invalid multipart form")
		}
		if err := c.BodyParser(body); err != nil {
			return nil, errors.New("invalid request body")
		}

		in := &workflow.KYCInput{CKYCNumber: body.CKYCNumber, PAN: body.PAN, PANName: body.PANName, Code: body.Code}
		for _, f := range documentFields {
			for _, file := range form.File[f.field] {
				doc, err := utils.ReadUploadedFile(file, f.kind)
				if err != nil {
					return nil, errors.New("failed to read uploaded file")
				}
				in.Documents = append(in.Documents, doc)
			}
		}
		return in, nil
	}

	if len(c.Body()) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(c.Body(), body); err != nil {
		return nil, errors.New("invalid request body")
	}
	return &workflow.KYCInput{CKYCNumber: body.CKYCNumber, PAN: body.PAN, PANName: body.PANName, Code: body.Code}, nil
}

func (h *Handler) Back(c *fiber.Ctx) error {
	stage, ok := c.Locals(proposalValidator.LocalBack).(models.Stage)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	session, err := h.Engine.Back(c.UserContext(), c.Params("id"), stage)
	if err != nil {
		return respondError(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Moved back.", session)
}

func (h *Handler) SendOTP(c *fiber.Ctx) error {
	reqData, ok := c.Locals(proposalValidator.LocalOTP).(*proposalValidator.SendOTPRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	issued, err := h.Engine.SendVerificationCode(c.UserContext(), c.Params("id"), reqData.Contact)
	if err != nil {
		return respondError(c, err)
	}

	data := fiber.Map{
		"contact":   issued.Contact,
		"expiresAt": issued.ExpiresAt,
	}
	if issued.DeliveryErr != nil {
		data["warning"] = "Code generated but delivery failed. Ask the customer to request it again."
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Verification code sent.", data)
}

func (h *Handler) RejectKYC(c *fiber.Ctx) error {
	reqData, ok := c.Locals(proposalValidator.LocalReject).(*proposalValidator.RejectKYCRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	p, err := h.Engine.RejectKYC(c.UserContext(), c.Params("id"), reqData.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "KYC rejected.", p)
}

func (h *Handler) RetryPayment(c *fiber.Ctx) error {
	att, err := h.Engine.RetryPayment(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Payment can be submitted again.", att)
}

func (h *Handler) Delete(c *fiber.Ctx) error {
	reqData, ok := c.Locals(proposalValidator.LocalDelete).(*proposalValidator.DeleteRequest)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	err := h.Engine.Delete(c.UserContext(), c.Params("id"), workflow.DeleteConfirmation{
		Confirmed:      reqData.Confirmed,
		ConfirmedAgain: reqData.ConfirmedAgain,
	})
	if err != nil {
		return respondError(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Proposal deleted.", nil)
}

func (h *Handler) Policy(c *fiber.Ctx) error {
	policy, err := h.Engine.Policy(c.UserContext(), c.Params("policyNumber"))
	if errors.Is(err, repository.ErrNotFound) {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Policy not found!", nil)
	}
	if err != nil {
		return respondError(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Policy details.", policy)
}

// respondError maps workflow errors onto HTTP responses.
func respondError(c *fiber.Ctx, err error) error {
	var (
		validation *proposalValidator.ValidationError
		done       *issuer.AlreadyConvertedError
		mismatch   *verification.MismatchError
		document   *kyc.DocumentError
		failed     *payment.FailedError
	)

	switch {
	case errors.As(err, &validation):
		return middleware.ValidationErrorResponse(c, validation.AsMap())
	case errors.As(err, &done):
		return middleware.JsonResponse(c, fiber.StatusConflict, false, "Proposal is already converted to a policy.", fiber.Map{
			"policyNumber": done.PolicyNumber,
		})
	case errors.As(err, &mismatch),
		errors.Is(err, verification.ErrCodeExpired),
		errors.Is(err, verification.ErrNoActiveCode):
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, err.Error(), nil)
	case errors.As(err, &document):
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, err.Error(), nil)
	case errors.As(err, &failed):
		return middleware.JsonResponse(c, fiber.StatusPaymentRequired, false, err.Error(), fiber.Map{
			"attemptId": failed.AttemptID,
		})
	case errors.Is(err, repository.ErrNotFound):
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Proposal not found!", nil)
	case errors.Is(err, repository.ErrVersionConflict),
		errors.Is(err, payment.ErrInProgress),
		errors.Is(err, workflow.ErrStageNotReached):
		return middleware.JsonResponse(c, fiber.StatusConflict, false, err.Error(), nil)
	case errors.Is(err, payment.ErrRetryLimit),
		errors.Is(err, payment.ErrNoAttempt),
		errors.Is(err, payment.ErrAmountMismatch),
		errors.Is(err, workflow.ErrQuoteLocked),
		errors.Is(err, payment.ErrInvalidTransition):
		return middleware.JsonResponse(c, fiber.StatusConflict, false, err.Error(), nil)
	case errors.Is(err, workflow.ErrStageMismatch),
		errors.Is(err, workflow.ErrDeleteNotConfirmed),
		errors.Is(err, workflow.ErrNoContact),
		errors.Is(err, workflow.ErrInvalidInput):
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, err.Error(), nil)
	}

	logging.Error().
		Add(logging.Component("http")).
		Add(logging.Str("path", c.Path())).
		Add(logging.ErrorField(err)).
		Msg("request failed")
	return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Something went wrong!", nil)
}
