// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // TRIP_TIMEZONE must resolve on hosts without a zoneinfo database
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. When empty the server
	// keeps trips in memory and they are lost on restart.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"]. Set CORS_ORIGINS to a
	// comma-separated list to override.
	CORSOrigins []string

	// JWTSecret signs and verifies caller tokens. Required.
	JWTSecret string

	// TokenTTL is the lifetime of tokens minted by cmd/devtoken. Defaults to 24h.
	TokenTTL time.Duration

	// Location is the reference time zone in which "today" is evaluated for
	// departure dates. Read from TRIP_TIMEZONE, defaults to UTC.
	Location *time.Location

	// MaxBodyBytes caps request body size. Defaults to 1 MiB.
	MaxBodyBytes int64

	// SeedDemoTrips posts a few demo trips at startup. Read from
	// SEED_DEMO_TRIPS, defaults to false.
	SeedDemoTrips bool
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing every required variable that is missing and every
// variable that could not be parsed.
func Load() (Config, error) {
	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
	}

	var missing, invalid []string

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	loc, err := time.LoadLocation(getEnv("TRIP_TIMEZONE", "UTC"))
	if err != nil {
		invalid = append(invalid, "TRIP_TIMEZONE")
	}
	cfg.Location = loc

	ttl, err := time.ParseDuration(getEnv("TOKEN_TTL", "24h"))
	if err != nil || ttl <= 0 {
		invalid = append(invalid, "TOKEN_TTL")
	}
	cfg.TokenTTL = ttl

	maxBody, err := strconv.ParseInt(getEnv("MAX_BODY_BYTES", "1048576"), 10, 64)
	if err != nil || maxBody <= 0 {
		invalid = append(invalid, "MAX_BODY_BYTES")
	}
	cfg.MaxBodyBytes = maxBody

	seed, err := strconv.ParseBool(getEnv("SEED_DEMO_TRIPS", "false"))
	if err != nil {
		invalid = append(invalid, "SEED_DEMO_TRIPS")
	}
	cfg.SeedDemoTrips = seed

	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "required environment variables not set: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		problems = append(problems, "invalid environment variables: "+strings.Join(invalid, ", "))
	}
	if len(problems) > 0 {
		return Config{}, fmt.Errorf("%s", strings.Join(problems, "; "))
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
