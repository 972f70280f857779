// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// HTTP settings
	AllowedOrigins []string
	RateLimitRPM   int
	MaxUploadBytes int64 // per-request multipart body limit

	// Notification settings (simulated senders)
	EmailSuccessRate float64
	SMSSuccessRate   float64
}

// Defaults
const (
	DefaultPort           = "8080"
	DefaultEnv            = "development"
	DefaultLogLevel       = "info"
	DefaultRateLimitRPM   = 120
	DefaultMaxUploadBytes = 10 << 20 // 10MB

	DefaultEmailSuccessRate = 0.90
	DefaultSMSSuccessRate   = 0.85
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", DefaultPort),
		Env:              getEnv("ENV", DefaultEnv),
		LogLevel:         getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:      os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		AllowedOrigins:   splitList(getEnv("ALLOWED_ORIGINS", "*")),
		RateLimitRPM:     int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimitRPM)),
		MaxUploadBytes:   getEnvInt64("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),
		EmailSuccessRate: getEnvFloat("EMAIL_SUCCESS_RATE", DefaultEmailSuccessRate),
		SMSSuccessRate:   getEnvFloat("SMS_SUCCESS_RATE", DefaultSMSSuccessRate),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.EmailSuccessRate < 0 || c.EmailSuccessRate > 1 {
		return fmt.Errorf("EMAIL_SUCCESS_RATE must be in [0,1]")
	}
	if c.SMSSuccessRate < 0 || c.SMSSuccessRate > 1 {
		return fmt.Errorf("SMS_SUCCESS_RATE must be in [0,1]")
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

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
