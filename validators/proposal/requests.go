package proposalValidator

import (
	"net/mail"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"presale/middleware"
	"presale/models"
)

// Locals keys shared with the proposal controller.
const (
	LocalCreate = "validatedCreateProposal"
	LocalQuote  = "validatedSelectQuote"
	LocalAddOns = "validatedAddOns"
	LocalStage  = "validatedStage"
	LocalBack   = "validatedBack"
	LocalOTP    = "validatedSendOTP"
	LocalReject = "validatedRejectKYC"
	LocalDelete = "validatedDelete"
	LocalSearch = "validatedSearch"
	LocalEnter  = "validatedEnter"
)

const (
	MaxPageLimit  = 100
	DefaultLimit  = 20
	maxAddOnCount = 30
)

type QuoteRequest struct {
	QuoteID      string  `json:"quoteId"`
	CompanyName  string  `json:"companyName"`
	TotalPremium float64 `json:"totalPremium"`
	IDV          float64 `json:"idv"`
}

type CreateProposalRequest struct {
	CustomerInfo      models.CustomerInfo  `json:"customerInfo"`
	PolicyDetails     models.PolicyDetails `json:"policyDetails"`
	NeedsCustomerInfo bool                 `json:"needsCustomerInfo"`
	Quote             *QuoteRequest        `json:"quote"`
	AddOns            []string             `json:"addOns"`
}

type AddOnsRequest struct {
	AddOns []string `json:"addOns"`
}

type BackRequest struct {
	Stage string `json:"stage"`
}

type SendOTPRequest struct {
	Contact string `json:"contact"`
}

type RejectKYCRequest struct {
	Reason string `json:"reason"`
}

type DeleteRequest struct {
	Confirmed      bool `json:"confirmed" query:"confirmed"`
	ConfirmedAgain bool `json:"confirmedAgain" query:"confirmedAgain"`
}

type SearchRequest struct {
	Status           string `query:"status"`
	Email            string `query:"email"`
	Phone            string `query:"phone"`
	PolicyNumber     string `query:"policyNumber"`
	Search           string `query:"search"`
	CreatedOn        string `query:"createdOn"`
	IncludeConverted bool   `query:"includeConverted"`
	Page             int    `query:"page"`
	Limit            int    `query:"limit"`
}

// Helper to validate email format
func isValidEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil && strings.Contains(email, "@")
}

// Helper to validate mobile number format
func isValidMobile(mobile string) bool {
	return mobileRegex.MatchString(mobile)
}

func invalidBody(c *fiber.Ctx) error {
	return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
}

func CreateProposal() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(CreateProposalRequest)
		if err := c.BodyParser(reqData); err != nil {
			return invalidBody(c)
		}

		errors := make(map[string]string)

		pd := reqData.PolicyDetails
		if strings.TrimSpace(pd.PolicyType) == "" {
			errors["policyDetails.policyType"] = "Policy type is required!"
		}
		if strings.TrimSpace(pd.PolicyFor) == "" {
			errors["policyDetails.policyFor"] = "Policy for is required!"
		}
		if pd.ExShowroomPrice < 0 {
			errors["policyDetails.exShowroomPrice"] = "Ex-showroom price cannot be negative!"
		}

		ci := reqData.CustomerInfo
		switch ci.CustomerType {
		case "", models.CustomerIndividual, models.CustomerCorporate:
		default:
			errors["customerInfo.customerType"] = "Customer type must be INDIVIDUAL or CORPORATE!"
		}
		if ci.Email != "" && !isValidEmail(ci.Email) {
			errors["customerInfo.email"] = "Invalid email format!"
		}
		if ci.Phone != "" && !isValidMobile(ci.Phone) {
			errors["customerInfo.phone"] = "Phone must be a 10-digit number!"
		}

		if q := reqData.Quote; q != nil {
			quoteErrors(q, "quote.", errors)
		}
		if len(reqData.AddOns) > maxAddOnCount {
			errors["addOns"] = "Too many add-ons selected!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals(LocalCreate, reqData)
		return c.Next()
	}
}

func quoteErrors(q *QuoteRequest, prefix string, errors map[string]string) {
	if strings.TrimSpace(q.CompanyName) == "" {
		errors[prefix+"companyName"] = "Insurer name is required!"
	}
	if q.TotalPremium <= 0 {
		errors[prefix+"totalPremium"] = "Total premium must be greater than 0!"
	}
	if q.IDV < 0 {
		errors[prefix+"idv"] = "IDV cannot be negative!"
	}
}

func SelectQuote() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(QuoteRequest)
		if err := c.BodyParser(reqData); err != nil {
			return invalidBody(c)
		}

		errors := make(map[string]string)
		quoteErrors(reqData, "", errors)
		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals(LocalQuote, reqData)
		return c.Next()
	}
}

func SetAddOns() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(AddOnsRequest)
		if err := c.BodyParser(reqData); err != nil {
			return invalidBody(c)
		}

		errors := make(map[string]string)
		if len(reqData.AddOns) > maxAddOnCount {
			errors["addOns"] = "Too many add-ons selected!"
		}
		for _, a := range reqData.AddOns {
			if strings.TrimSpace(a) == "" {
				errors["addOns"] = "Add-on identifiers cannot be empty!"
				break
			}
		}
		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals(LocalAddOns, reqData)
		return c.Next()
	}
}

// StageParam resolves :stage (name or display code) for the advance route.
func StageParam() fiber.Handler {
	return func(c *fiber.Ctx) error {
		stage, err := models.ParseStage(c.Params("stage"))
		if err != nil || stage == models.StagePolicyIssuance {
			return middleware.ValidationErrorResponse(c, map[string]string{
				"stage": "Stage must be a valid stage name or code before issuance!",
			})
		}
		c.Locals(LocalStage, stage)
		return c.Next()
	}
}

// Enter accepts an optional ?stage= to open the proposal at.
func Enter() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Query("stage")
		if raw == "" {
			return c.Next()
		}
		stage, err := models.ParseStage(raw)
		if err != nil {
			return middleware.ValidationErrorResponse(c, map[string]string{"stage": "Unknown stage!"})
		}
		c.Locals(LocalEnter, stage)
		return c.Next()
	}
}

func Back() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(BackRequest)
		if err := c.BodyParser(reqData); err != nil {
			return invalidBody(c)
		}
		stage, err := models.ParseStage(reqData.Stage)
		if err != nil {
			return middleware.ValidationErrorResponse(c, map[string]string{"stage": "Unknown stage!"})
		}
		c.Locals(LocalBack, stage)
		return c.Next()
	}
}

func SendOTP() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(SendOTPRequest)
		if len(c.Body()) > 0 {
			if err := c.BodyParser(reqData); err != nil {
				return invalidBody(c)
			}
		}

		reqData.Contact = strings.TrimSpace(reqData.Contact)
		if reqData.Contact != "" && !isValidEmail(reqData.Contact) && !isValidMobile(reqData.Contact) {
			return middleware.ValidationErrorResponse(c, map[string]string{
				"contact": "Contact must be an email address or a 10-digit mobile number!",
			})
		}

		c.Locals(LocalOTP, reqData)
		return c.Next()
	}
}

func RejectKYC() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(RejectKYCRequest)
		if err := c.BodyParser(reqData); err != nil {
			return invalidBody(c)
		}

		errors := make(map[string]string)
		reqData.Reason = strings.TrimSpace(reqData.Reason)
		if reqData.Reason == "" {
			errors["reason"] = "Rejection reason is required!"
		} else if len(reqData.Reason) > 500 {
			errors["reason"] = "Rejection reason must be at most 500 characters!"
		}
		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals(LocalReject, reqData)
		return c.Next()
	}
}

func DeleteProposal() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(DeleteRequest)
		if err := c.QueryParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request query!", nil)
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(reqData); err != nil {
				return invalidBody(c)
			}
		}
		c.Locals(LocalDelete, reqData)
		return c.Next()
	}
}

func SearchProposals() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(SearchRequest)
		if err := c.QueryParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request query!", nil)
		}

		errors := make(map[string]string)

		if reqData.Page == 0 {
			reqData.Page = 1
		}
		if reqData.Page < 1 {
			errors["page"] = "Page must be greater than 0!"
		}

		if reqData.Limit == 0 {
			reqData.Limit = DefaultLimit
		}
		if reqData.Limit < 1 || reqData.Limit > MaxPageLimit {
			errors["limit"] = "Limit must be between 1 and 100!"
		}

		if reqData.Status != "" {
			switch models.ProposalStatus(strings.ToUpper(reqData.Status)) {
			case models.ProposalDraft, models.ProposalSubmitted, models.ProposalApproved,
				models.ProposalRejected, models.ProposalConverted:
				reqData.Status = strings.ToUpper(reqData.Status)
			default:
				errors["status"] = "Invalid proposal status!"
			}
		}

		if reqData.CreatedOn != "" {
			if _, err := parseDate(reqData.CreatedOn); err != nil {
				errors["createdOn"] = "createdOn must be a date in YYYY-MM-DD format!"
			}
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals(LocalSearch, reqData)
		return c.Next()
	}
}

func parseDate(raw string) (time.Time, error) {
	return time.Parse("2006-01-02", raw)
}
