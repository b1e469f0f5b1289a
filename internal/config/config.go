// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"].
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// JWTSecret is the HMAC key bearer tokens are signed with. Required.
	JWTSecret string

	// AMQPURL is the RabbitMQ connection string notifications are published
	// to. When empty, notifications are only logged.
	AMQPURL string

	// NotifyExchange is the topic exchange notifications are published to.
	NotifyExchange string

	// ServiceFeeBPS is the platform fee in basis points of the base price.
	// Defaults to 200 (2%).
	ServiceFeeBPS int64

	// MaxBodyBytes caps request body size. Defaults to 1 MiB.
	MaxBodyBytes int64

	// MigrateOnStart applies pending migrations before serving.
	MigrateOnStart bool
}

// Load reads configuration from environment variables and returns a Config.
// Variables may also come from a dotenv file (ENV_FILE, default ".env");
// real environment variables win over the file and a missing file is ignored.
// Returns an error listing any required variables that are not set or any
// values that cannot be parsed.
func Load() (Config, error) {
	if err := godotenv.Load(getEnv("ENV_FILE", ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config.Load: %w", err)
	}

	cfg := Config{
		Port:           getEnv("PORT", "8080"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		CORSOrigins:    splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		AMQPURL:        os.Getenv("AMQP_URL"),
		NotifyExchange: getEnv("NOTIFY_EXCHANGE", "booking_notifications"),
	}

	var missing, invalid []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	var err error
	if cfg.ServiceFeeBPS, err = strconv.ParseInt(getEnv("SERVICE_FEE_BPS", "200"), 10, 64); err != nil || cfg.ServiceFeeBPS < 0 {
		invalid = append(invalid, "SERVICE_FEE_BPS")
	}
	if cfg.MaxBodyBytes, err = strconv.ParseInt(getEnv("MAX_BODY_BYTES", "1048576"), 10, 64); err != nil || cfg.MaxBodyBytes <= 0 {
		invalid = append(invalid, "MAX_BODY_BYTES")
	}
	if cfg.MigrateOnStart, err = strconv.ParseBool(getEnv("MIGRATE_ON_START", "false")); err != nil {
		invalid = append(invalid, "MIGRATE_ON_START")
	}

	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "required environment variables not set: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		problems = append(problems, "invalid values for: "+strings.Join(invalid, ", "))
	}
	if len(problems) > 0 {
		return Config{}, errors.New(strings.Join(problems, "; "))
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
