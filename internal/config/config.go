// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, audit trail only)

	// Account settings
	InitialBalance float64 // Mock balance each session starts with

	// Verification settings
	MaxVerificationAttempts int
	OTPTTL                  time.Duration
	SecurityQuestion        string
	SecurityAnswer          string
	VerifiedTTL             time.Duration // 0 = verified status never expires

	// Transaction settings
	PendingTTL time.Duration // How long an unconfirmed transfer/payment stays valid

	// Fraud thresholds
	HighValueThreshold   float64
	MediumValueThreshold float64
	FrequencyThreshold   int

	// External advisory service
	AdvisorURL     string // Optional, canned advice only if not set
	AdvisorTimeout time.Duration

	// Rate limiting
	RateLimitRPM int

	// Tracing
	OTLPEndpoint string
}

// Defaults
const (
	DefaultPort           = "8080"
	DefaultEnv            = "development"
	DefaultLogLevel       = "info"
	DefaultInitialBalance = 5000.00
	DefaultMaxAttempts    = 3
	DefaultOTPTTL         = 5 * time.Minute
	DefaultPendingTTL     = 15 * time.Minute
	DefaultAdvisorTimeout = 10 * time.Second
	DefaultRateLimit      = 60

	DefaultSecurityQuestion = "In which city were you born?"
	DefaultSecurityAnswer   = "New York"

	DefaultHighValueThreshold   = 500.0
	DefaultMediumValueThreshold = 200.0
	DefaultFrequencyThreshold   = 3
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                    getEnv("PORT", DefaultPort),
		Env:                     getEnv("ENV", DefaultEnv),
		LogLevel:                getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:             os.Getenv("DATABASE_URL"), // Optional
		InitialBalance:          getEnvFloat("INITIAL_BALANCE", DefaultInitialBalance),
		MaxVerificationAttempts: int(getEnvInt64("MAX_VERIFICATION_ATTEMPTS", DefaultMaxAttempts)),
		OTPTTL:                  getEnvDuration("OTP_TTL", DefaultOTPTTL),
		SecurityQuestion:        getEnv("SECURITY_QUESTION", DefaultSecurityQuestion),
		SecurityAnswer:          getEnv("SECURITY_ANSWER", DefaultSecurityAnswer),
		VerifiedTTL:             getEnvDuration("VERIFIED_TTL", 0),
		PendingTTL:              getEnvDuration("PENDING_TTL", DefaultPendingTTL),
		HighValueThreshold:      getEnvFloat("HIGH_VALUE_THRESHOLD", DefaultHighValueThreshold),
		MediumValueThreshold:    getEnvFloat("MEDIUM_VALUE_THRESHOLD", DefaultMediumValueThreshold),
		FrequencyThreshold:      int(getEnvInt64("FREQUENCY_THRESHOLD", DefaultFrequencyThreshold)),
		AdvisorURL:              os.Getenv("ADVISOR_URL"), // Optional
		AdvisorTimeout:          getEnvDuration("ADVISOR_TIMEOUT", DefaultAdvisorTimeout),
		RateLimitRPM:            int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimit)),
		OTLPEndpoint:            os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and coherent
func (c *Config) Validate() error {
	if c.InitialBalance < 0 {
		return fmt.Errorf("INITIAL_BALANCE must not be negative")
	}
	if c.MaxVerificationAttempts < 1 {
		return fmt.Errorf("MAX_VERIFICATION_ATTEMPTS must be at least 1")
	}
	if c.SecurityAnswer == "" {
		return fmt.Errorf("SECURITY_ANSWER must not be empty")
	}
	if c.MediumValueThreshold > c.HighValueThreshold {
		return fmt.Errorf("MEDIUM_VALUE_THRESHOLD must not exceed HIGH_VALUE_THRESHOLD")
	}
	if c.FrequencyThreshold < 1 {
		return fmt.Errorf("FREQUENCY_THRESHOLD must be at least 1")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
