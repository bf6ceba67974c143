package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

// Locals keys set by JWTMiddleware.
const (
	LocalAgentID = "agentId"
	LocalRole    = "role"
)

const tokenTTL = 12 * time.Hour

// GenerateJWT generates a signed token for an agent
func GenerateJWT(agentID uint, name, role, email, secret string) (string, error) {
	claims := jwt.MapClaims{
		"agentId": agentID,
		"name":    name,
		"role":    role,
		"email":   email,
		"iat":     time.Now().Unix(),               // issued at
		"exp":     time.Now().Add(tokenTTL).Unix(), // expiry
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// JWTMiddleware checks for a valid bearer token signed with secret
func JWTMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return JsonResponse(c, fiber.StatusUnauthorized, false, "Missing or invalid Authorization header", nil)
		}

		// The token should be prefixed with "Bearer "
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return JsonResponse(c, fiber.StatusUnauthorized, false, "Invalid Authorization header format", nil)
		}
		tokenString := authHeader[len("Bearer "):]

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return JsonResponse(c, fiber.StatusUnauthorized, false, "Invalid or expired token", nil)
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return JsonResponse(c, fiber.StatusUnauthorized, false, "Invalid token payload", nil)
		}
		// JWT numbers decode as float64
		agentID, ok := claims["agentId"].(float64)
		if !ok {
			return JsonResponse(c, fiber.StatusUnauthorized, false, "Invalid token payload", nil)
		}
		role, _ := claims["role"].(string)

		c.Locals(LocalAgentID, uint(agentID))
		c.Locals(LocalRole, role)
		return c.Next()
	}
}

func JsonResponse(c *fiber.Ctx, statusCode int, status bool, message string, data interface{}) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

func ValidationErrorResponse(c *fiber.Ctx, errors map[string]string) error {
	return JsonResponse(c, fiber.StatusUnprocessableEntity, false, "Validation failed!", errors)
}
