package authRoutes

import (
	"github.com/gofiber/fiber/v2"

	authControllers "presale/controllers/auth"
	"presale/middleware"
	authValidators "presale/validators/auth"
)

func SetupAuthRoutes(app *fiber.App, jwtSecret string) {
	authGroup := app.Group("/auth")

	authGroup.Post("/login", authValidators.Login(), authControllers.Login)
	authGroup.Get("/login/history", middleware.JWTMiddleware(jwtSecret), authValidators.LoginHistoryList(), authControllers.LoginHistoryList)
	authGroup.Post("/agents", middleware.JWTMiddleware(jwtSecret), middleware.RequireRole(middleware.RoleSupervisor), authValidators.RegisterAgent(), authControllers.RegisterAgent)
}
