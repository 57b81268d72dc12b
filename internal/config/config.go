// Package config loads process settings from the environment.
package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	DatabaseURL    string
	JWTSecret      string
	BaseURL        string
	LogLevel       slog.Level
	MetricsEnabled bool
	APIDocsEnabled bool
	RateLimitRPS   float64
	RateLimitBurst int
	WebhookURL     string
	WebhookSecret  string
}

var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")
	ErrMissingJWTSecret   = errors.New("JWT_SECRET is required")
	ErrMissingWebhookKey  = errors.New("WEBHOOK_SECRET is required when WEBHOOK_URL is set")
)

// Load reads an optional .env file from the working directory, then the
// environment. Variables already set in the environment win over .env.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() (Config, error) {
	cfg := Config{
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
		LogLevel:       parseLevel(getEnv("LOG_LEVEL", "info")),
		MetricsEnabled: getEnv("METRICS_ENABLED", "false") == "true",
		APIDocsEnabled: getEnv("API_DOCS_ENABLED", "false") == "true",
		RateLimitRPS:   getEnvFloat64("RATE_LIMIT_RPS", 5),
		RateLimitBurst: int(getEnvInt64("RATE_LIMIT_BURST", 20)),
		WebhookURL:     os.Getenv("WEBHOOK_URL"),
		WebhookSecret:  os.Getenv("WEBHOOK_SECRET"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, ErrMissingDatabaseURL
	}
	if cfg.JWTSecret == "" {
		return Config{}, ErrMissingJWTSecret
	}
	if cfg.WebhookURL != "" && cfg.WebhookSecret == "" {
		return Config{}, ErrMissingWebhookKey
	}
	return cfg, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat64(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
