package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Agent roles carried in the token.
const (
	RoleAgent      = "AGENT"
	RoleSupervisor = "SUPERVISOR"
)

// RequireRole returns a middleware that lets through only the given roles.
// It must run after JWTMiddleware.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := c.Locals(LocalAgentID).(uint); !ok {
			return JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized: Agent ID not found", nil)
		}

		role, _ := c.Locals(LocalRole).(string)
		for _, r := range roles {
			if strings.EqualFold(role, r) {
				return c.Next()
			}
		}
		return JsonResponse(c, fiber.StatusForbidden, false, "You do not have permission to access this resource!", nil)
	}
}
