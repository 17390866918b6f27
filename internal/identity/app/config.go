package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/artintel/identity/internal/identity/ratelimit"
	"github.com/artintel/identity/internal/identity/service"
	"github.com/joho/godotenv"
)

type Config struct {
	Issuer    string        // Issuer claim for access tokens (default: identity)
	JWTSecret string        // Required: shared HS256 signing secret, min 32 bytes
	TokenTTL  time.Duration // Access token lifetime (default: 1h)

	DatabaseFile string // Path to SQLite database file (default: ./identity.db)
	PepperFile   string // Path to password hashing pepper file (default: ./pepper)

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)

	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)

	// Admin self-registration.
	AdminRegistrationKey string   // Required for POST /admin/register; empty disables it
	AllowedAdminDomains  []string // Email domains allowed for admin accounts ("*" = any)

	// Email delivery.
	EmailDriver  string // smtp or log (default: log)
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string
	FrontendURL  string // Base URL used in verification/reset links

	// Attempt budgets for the email flows and login.
	Limits service.Limits
}

// LoadConfig reads configuration from the environment, consulting a .env
// file when one exists. Construct once in main and pass down; nothing else
// reads the environment.
func LoadConfig() Config {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	defaults := service.DefaultLimits()

	return Config{
		Issuer:    getEnvOrDefault("AUTH_ISSUER", "identity"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		TokenTTL:  getEnvDurationOrDefault("TOKEN_TTL", time.Hour),

		DatabaseFile: getEnvOrDefault("DATABASE_FILE", "identity.db"),
		PepperFile:   getEnvOrDefault("PEPPER_FILE", "pepper"),

		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),

		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),

		AdminRegistrationKey: os.Getenv("ADMIN_REGISTRATION_KEY"),
		AllowedAdminDomains:  splitList(getEnvOrDefault("ALLOWED_ADMIN_DOMAINS", "*")),

		EmailDriver:  getEnvOrDefault("EMAIL_DRIVER", "log"),
		SMTPHost:     getEnvOrDefault("SMTP_HOST", "localhost"),
		SMTPPort:     getEnvIntOrDefault("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		EmailFrom:    getEnvOrDefault("EMAIL_FROM", "no-reply@localhost"),
		FrontendURL:  getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),

		Limits: service.Limits{
			VerifyEmail: ratelimit.Limit{
				MaxAttempts: getEnvIntOrDefault("VERIFY_EMAIL_MAX_ATTEMPTS", defaults.VerifyEmail.MaxAttempts),
				Window:      getEnvDurationOrDefault("VERIFY_EMAIL_WINDOW", defaults.VerifyEmail.Window),
			},
			VerifyEmailIP: ratelimit.Limit{
				MaxAttempts: getEnvIntOrDefault("IP_VERIFY_MAX_ATTEMPTS", defaults.VerifyEmailIP.MaxAttempts),
				Window:      getEnvDurationOrDefault("VERIFY_EMAIL_WINDOW", defaults.VerifyEmailIP.Window),
			},
			ResetPassword: ratelimit.Limit{
				MaxAttempts: getEnvIntOrDefault("RESET_PASSWORD_MAX_ATTEMPTS", defaults.ResetPassword.MaxAttempts),
				Window:      getEnvDurationOrDefault("RESET_PASSWORD_WINDOW", defaults.ResetPassword.Window),
			},
			ResetPasswordIP: ratelimit.Limit{
				MaxAttempts: getEnvIntOrDefault("IP_RESET_MAX_ATTEMPTS", defaults.ResetPasswordIP.MaxAttempts),
				Window:      getEnvDurationOrDefault("RESET_PASSWORD_WINDOW", defaults.ResetPasswordIP.Window),
			},
			Login: ratelimit.Limit{
				MaxAttempts: getEnvIntOrDefault("LOGIN_MAX_ATTEMPTS", defaults.Login.MaxAttempts),
				Window:      getEnvDurationOrDefault("LOGIN_WINDOW", defaults.Login.Window),
			},
			LoginIP: ratelimit.Limit{
				MaxAttempts: getEnvIntOrDefault("IP_LOGIN_MAX_ATTEMPTS", defaults.LoginIP.MaxAttempts),
				Window:      getEnvDurationOrDefault("LOGIN_WINDOW", defaults.LoginIP.Window),
			},
		},
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Duration syntax first ("1h", "30m", "90s").
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are read as seconds (TOKEN_TTL=3600).
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
