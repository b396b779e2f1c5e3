package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultSessionTTL = 30 * 24 * time.Hour

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port             string
	DatabaseURL      string
	AuthSecret       string
	AuthIssuer       string
	SessionTTL       time.Duration
	CORSOrigins      []string
	Environment      string
	Debug            bool
	LogFile          string
	BootstrapOnStart bool
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	cfg := Config{
		Port:             fallback(os.Getenv("PORT"), "8080"),
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		AuthSecret:       firstNonEmpty(os.Getenv("AUTH_SECRET"), os.Getenv("NEXTAUTH_SECRET"), os.Getenv("JWT_SECRET")),
		AuthIssuer:       fallback(os.Getenv("AUTH_ISSUER"), "wallet-auth"),
		CORSOrigins:      parseCSV(fallback(os.Getenv("CORS_ALLOWED_ORIGINS"), "*")),
		Environment:      strings.ToLower(fallback(os.Getenv("APP_ENV"), "production")),
		BootstrapOnStart: parseBool(os.Getenv("DB_BOOTSTRAP_ON_START")),
	}
	logs := LoadLogSettings()
	cfg.Debug, cfg.LogFile = logs.Debug, logs.File

	minutes := fallback(os.Getenv("SESSION_TTL_MINUTES"), "")
	if ttlMinutes, err := strconv.Atoi(minutes); err == nil && ttlMinutes > 0 {
		cfg.SessionTTL = time.Duration(ttlMinutes) * time.Minute
	} else {
		cfg.SessionTTL = defaultSessionTTL
	}

	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	if cfg.AuthSecret == "" {
		return Config{}, errors.New("AUTH_SECRET is required")
	}

	return cfg, nil
}

// LoadDatabaseURL reads only the store connection string, for tools that
// never issue sessions.
func LoadDatabaseURL() (string, error) {
	url := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if url == "" {
		return "", errors.New("DATABASE_URL is required")
	}
	return url, nil
}

// LogSettings is the logging subset of Config.
type LogSettings struct {
	Debug bool
	File  string
}

// LoadLogSettings reads DEBUG, APP_ENV and LOG_FILE. APP_ENV=development
// implies debug.
func LoadLogSettings() LogSettings {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV")))
	return LogSettings{
		Debug: parseBool(os.Getenv("DEBUG")) || env == "development",
		File:  strings.TrimSpace(os.Getenv("LOG_FILE")),
	}
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

// IsDevelopment reports whether APP_ENV selects the development profile.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func parseBool(value string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && b
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
