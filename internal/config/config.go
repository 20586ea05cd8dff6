package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// defaultAuditInterval applies when AUDIT_INTERVAL_HOURS is unset.
// An explicit 0 disables the audit.
const defaultAuditInterval = 24 * time.Hour

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken string
	APIID         int
	APIHash       string
	DatabaseURL   string
	Admins        []int64
	Device        string
	AuditInterval time.Duration
	LogLevel      string
}

// Load reads configuration from environment variables with sane defaults.
// A .env file next to the binary is picked up when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		TelegramToken: strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		APIHash:       strings.TrimSpace(os.Getenv("TELEGRAM_API_HASH")),
		DatabaseURL:   strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Admins:        parseAdmins(os.Getenv("ADMINS")),
		Device:        strings.TrimSpace(os.Getenv("DEVICE_NAME")),
		AuditInterval: parseInterval(strings.TrimSpace(os.Getenv("AUDIT_INTERVAL_HOURS"))),
		LogLevel:      strings.TrimSpace(os.Getenv("LOG_LEVEL")),
	}

	if raw := strings.TrimSpace(os.Getenv("TELEGRAM_API_ID")); raw != "" {
		apiID, err := strconv.Atoi(raw)
		if err != nil {
			return cfg, fmt.Errorf("invalid TELEGRAM_API_ID: %w", err)
		}
		cfg.APIID = apiID
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "sessions.db"
	}
	if cfg.Device == "" {
		cfg.Device = "SessionManager"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if cfg.APIID == 0 {
		return cfg, fmt.Errorf("TELEGRAM_API_ID is required")
	}
	if cfg.APIHash == "" {
		return cfg, fmt.Errorf("TELEGRAM_API_HASH is required")
	}

	return cfg, nil
}

// IsAdmin reports whether the user may use administrative commands.
func (c Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

// parseAdmins accepts a comma or semicolon separated id list, skipping junk.
func parseAdmins(raw string) []int64 {
	var result []int64
	for _, part := range strings.Split(strings.ReplaceAll(raw, ";", ","), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		result = append(result, id)
	}
	return result
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return defaultAuditInterval
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}
