package authValidator

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"

	"presale/middleware"
)

const (
	LocalLogin        = "validatedLogin"
	LocalRegister     = "validatedRegisterAgent"
	LocalLoginHistory = "validatedLoginHistory"
)

var (
	emailRegex  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	mobileRegex = regexp.MustCompile(`^\d{10}$`)
)

type LoginRequest struct {
	Email    string `json:"email"`
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

type RegisterAgentRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginHistoryRequest struct {
	Page  int `query:"page"`
	Limit int `query:"limit"`
}

// Helper to validate email format
func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// Helper to validate mobile number format
func isValidMobile(mobile string) bool {
	return mobileRegex.MatchString(mobile)
}

// Login validator middleware
func Login() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(LoginRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		reqData.Email = strings.ToLower(strings.TrimSpace(reqData.Email))
		if reqData.Email == "" && reqData.Mobile == "" {
			errors["credentials"] = "Either email or mobile number is required!"
		} else {
			if reqData.Email != "" && !isValidEmail(reqData.Email) {
				errors["email"] = "Invalid email!"
			}
			if reqData.Mobile != "" && !isValidMobile(reqData.Mobile) {
				errors["mobile"] = "Invalid mobile number!"
			}
		}

		// Validate Password
		if len(strings.TrimSpace(reqData.Password)) < 8 {
			errors["password"] = "Password must be at least 8 characters long!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals(LocalLogin, reqData)
		return c.Next()
	}
}

// RegisterAgent validator middleware
func RegisterAgent() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(RegisterAgentRequest)
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		if len(strings.TrimSpace(reqData.Name)) < 3 {
			errors["name"] = "Name must be at least 3 characters long!"
		}
		reqData.Email = strings.ToLower(strings.TrimSpace(reqData.Email))
		if !isValidEmail(reqData.Email) {
			errors["email"] = "Invalid email!"
		}
		if reqData.Mobile != "" && !isValidMobile(reqData.Mobile) {
			errors["mobile"] = "Invalid mobile number!"
		}
		if len(strings.TrimSpace(reqData.Password)) < 8 {
			errors["password"] = "Password must be at least 8 characters long!"
		}

		reqData.Role = strings.ToUpper(strings.TrimSpace(reqData.Role))
		switch reqData.Role {
		case "":
			reqData.Role = middleware.RoleAgent
		case middleware.RoleAgent, middleware.RoleSupervisor:
		default:
			errors["role"] = "Role must be AGENT or SUPERVISOR!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals(LocalRegister, reqData)
		return c.Next()
	}
}

// Login History Validator middleware
func LoginHistoryList() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(LoginHistoryRequest)
		if err := c.QueryParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request query!", nil)
		}

		if reqData.Page == 0 {
			reqData.Page = 1
		}
		if reqData.Limit == 0 {
			reqData.Limit = 20
		}

		errors := make(map[string]string)
		if reqData.Page < 1 {
			errors["page"] = "Page must be greater than 0!"
		}
		if reqData.Limit < 1 || reqData.Limit > 100 {
			errors["limit"] = "Limit must be between 1 and 100!"
		}
		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals(LocalLoginHistory, reqData)
		return c.Next()
	}
}
