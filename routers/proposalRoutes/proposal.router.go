package proposalRoutes

import (
	"github.com/gofiber/fiber/v2"

	controller "presale/controllers/proposal"
	"presale/middleware"
	validator "presale/validators/proposal"
)

func SetupProposalRoutes(app *fiber.App, h *controller.Handler, jwtSecret string) {
	auth := middleware.JWTMiddleware(jwtSecret)

	proposals := app.Group("/proposals", auth)

	proposals.Post("/", validator.CreateProposal(), h.Create)
	proposals.Get("/", validator.SearchProposals(), h.List)
	proposals.Get("/:id", validator.Enter(), h.Enter)
	proposals.Post("/:id/quote", validator.SelectQuote(), h.SelectQuote)
	proposals.Put("/:id/addons", validator.SetAddOns(), h.SetAddOns)
	proposals.Post("/:id/stages/:stage", validator.StageParam(), h.Advance)
	proposals.Post("/:id/back", validator.Back(), h.Back)
	proposals.Post("/:id/otp", validator.SendOTP(), h.SendOTP)
	proposals.Post("/:id/kyc/reject", validator.RejectKYC(), h.RejectKYC)
	proposals.Post("/:id/payment/retry", h.RetryPayment)
	proposals.Delete("/:id", middleware.RequireRole(middleware.RoleSupervisor), validator.DeleteProposal(), h.Delete)

	app.Get("/policies/:policyNumber", auth, h.Policy)
}
