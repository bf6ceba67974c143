package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"presale/models"
)

// Config holds application configuration
type Config struct {
	Port string

	DBDriver   string // postgres or sqlite
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	SQLitePath string

	JWTKey string

	LogLevel  string
	LogFormat string

	SendGridAPIKey string
	EmailSender    string

	SMSApiURL   string
	SMSApiKey   string
	SMSSenderID string

	PaymentGatewayURL string
	PaymentGatewayKey string

	UploadDir string

	// Workflow switches. Read here once and injected; never consulted elsewhere.
	GateBypass           bool
	ZeroPremiumIsMissing bool
	MaxOTPAttempts       int
	OTPValidity          time.Duration
	PaymentTimeout       time.Duration
}

// AppConfig is a global variable to access configuration
var AppConfig *Config

// LoadConfig initializes configuration from environment variables or defaults
func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	defaults := models.DefaultWorkflowConfig()

	AppConfig = &Config{
		Port: getEnv("PORT", "3000"),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "presale"),
		DBPort:     getEnv("DB_PORT", "5432"),
		SQLitePath: getEnv("SQLITE_PATH", "presale.db"),

		JWTKey: getEnv("JWT_SECRET_KEY", "defaultSecret"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		EmailSender:    getEnv("EMAIL_SENDER", "no-reply@presale.local"),

		SMSApiURL:   getEnv("SMS_API_URL", ""),
		SMSApiKey:   getEnv("SMS_API_KEY", ""),
		SMSSenderID: getEnv("SMS_SENDER_ID", "PRESAL"),

		PaymentGatewayURL: getEnv("PAYMENT_GATEWAY_URL", ""),
		PaymentGatewayKey: getEnv("PAYMENT_GATEWAY_KEY", ""),

		UploadDir: getEnv("UPLOAD_DIR", "./uploads/kyc"),

		GateBypass:           getEnvBool("GATE_BYPASS", defaults.AllowGateBypass),
		ZeroPremiumIsMissing: getEnvBool("ZERO_PREMIUM_IS_MISSING", defaults.ZeroPremiumIsMissing),
		MaxOTPAttempts:       getEnvInt("OTP_MAX_ATTEMPTS", defaults.MaxOTPAttempts),
		OTPValidity:          getEnvDuration("OTP_VALIDITY", defaults.OTPValidity),
		PaymentTimeout:       getEnvDuration("PAYMENT_TIMEOUT", defaults.PaymentTimeout),
	}

	// Validate critical configuration
	if AppConfig.JWTKey == "defaultSecret" {
		log.Println("Warning: Using default JWT_SECRET_KEY. Update it in your environment.")
	}
	if AppConfig.GateBypass {
		log.Println("Warning: GATE_BYPASS is enabled. Verification codes will not be checked.")
	}

	return AppConfig
}

// Workflow returns the explicit switches handed to the workflow engine and gates.
func (c *Config) Workflow() models.WorkflowConfig {
	return models.WorkflowConfig{
		AllowGateBypass:      c.GateBypass,
		ZeroPremiumIsMissing: c.ZeroPremiumIsMissing,
		MaxOTPAttempts:       c.MaxOTPAttempts,
		OTPValidity:          c.OTPValidity,
		PaymentTimeout:       c.PaymentTimeout,
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns the default integer value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return intValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to bool: %v", key, err)
		return defaultValue
	}
	return b
}

// getEnvDuration accepts Go duration strings ("90s") or plain seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs := getEnvInt(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
