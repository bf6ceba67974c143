package main

import (
	"log"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"presale/config"
	proposalController "presale/controllers/proposal"
	"presale/database"
	"presale/eligibility"
	"presale/issuer"
	"presale/kyc"
	"presale/logging"
	"presale/models"
	"presale/notifier"
	"presale/payment"
	"presale/repository"
	authRoutes "presale/routers/authRoutes"
	"presale/routers/proposalRoutes"
	"presale/utils"
	proposalValidator "presale/validators/proposal"
	"presale/verification"
	"presale/workflow"
)

func main() {
	cfg := config.LoadConfig()
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	db := database.ConnectDb(cfg)
	wf := cfg.Workflow()

	notify := notifier.NewRetrying(buildNotifier(cfg), 3, 500*time.Millisecond)

	payments, err := payment.NewGate(db, buildGateway(cfg), wf)
	if err != nil {
		log.Fatalf("Failed to set up payments: %v", err)
	}
	verifier := verification.NewGate(db, notify, wf)
	proposals := repository.NewProposals(db)

	engine := workflow.New(workflow.Deps{
		Proposals:   proposals,
		Policies:    repository.NewPolicies(db),
		Eligibility: &eligibility.Evaluator{Now: time.Now},
		Validator:   proposalValidator.New(wf),
		Verifier:    verifier,
		KYC:         kyc.NewGate(wf),
		Payments:    payments,
		Issuer:      issuer.New(proposals, notify),
		Documents:   utils.DiskDocumentStore{Root: cfg.UploadDir},
	})

	scheduler, err := utils.InitializeHousekeepingScheduler(
		utils.HousekeepingJob{Name: "purge-expired-otps", Spec: "*/15 * * * *", Run: verifier.PurgeExpired},
		utils.HousekeepingJob{Name: "expire-stale-payments", Spec: "* * * * *", Run: payments.ExpireStale},
	)
	if err != nil {
		log.Fatalf("Failed to start housekeeping: %v", err)
	}
	defer scheduler.Stop()

	app := fiber.New(fiber.Config{
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
		// every KYC document at its size limit, plus form fields
		BodyLimit: 4*kyc.MaxDocumentSize + 1<<20,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE",        // Allowed HTTP methods
		AllowHeaders: "Content-Type,Authorization", // Allowed headers
	}))

	// Enable the built-in logger middleware to log all requests
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
	}))

	authRoutes.SetupAuthRoutes(app, cfg.JWTKey)
	proposalRoutes.SetupProposalRoutes(app, proposalController.New(engine), cfg.JWTKey)

	logging.Info().
		Add(logging.Component("server")).
		Add(logging.Str("port", cfg.Port)).
		Add(logging.Str("db", cfg.DBDriver)).
		Msg("server is running")
	log.Fatal(app.Listen(":" + cfg.Port))
}

// buildNotifier routes to SendGrid and the SMS gateway when they are
// configured and logs messages otherwise.
func buildNotifier(cfg *config.Config) notifier.Notifier {
	router := &notifier.Router{}
	if cfg.SendGridAPIKey != "" {
		router.Email = notifier.NewEmailNotifier(cfg.SendGridAPIKey, cfg.EmailSender)
	}
	if cfg.SMSApiURL != "" {
		router.SMS = notifier.NewSMSNotifier(cfg.SMSApiURL, cfg.SMSApiKey, cfg.SMSSenderID)
	}
	if router.Email == nil && router.SMS == nil {
		logging.Warn().Add(logging.Component("notifier")).Msg("no email or SMS provider configured, messages are only logged")
		return notifier.LogNotifier{}
	}
	if router.Email == nil {
		router.Email = notifier.LogNotifier{}
	}
	if router.SMS == nil {
		router.SMS = notifier.LogNotifier{}
	}
	return router
}

func buildGateway(cfg *config.Config) payment.Gateway {
	if cfg.PaymentGatewayURL == "" {
		logging.Warn().Add(logging.Component("payment")).Msg("no payment gateway configured, using the simulated gateway")
		return &payment.SimulatedGateway{}
	}
	timeout := cfg.PaymentTimeout
	if timeout <= 0 {
		timeout = models.DefaultWorkflowConfig().PaymentTimeout
	}
	return payment.NewRESTGateway(cfg.PaymentGatewayURL, cfg.PaymentGatewayKey, timeout)
}
