// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port string

	OpenAIAPIKey string
	OpenAIModel  string

	WhatsAppAPIVersion    string
	WhatsAppPhoneNumberID string
	WhatsAppAccessToken   string
	WhatsAppVerifyToken   string

	MaxRequestsPerUser int
	SnapTurnThreshold  int
	ProcessTimeout     time.Duration

	ReceiptOutputDir string
	FontDir          string

	// DBPath selects the SQLite session store when set; empty keeps sessions
	// in memory, matching the reference behavior.
	DBPath string
	// SessionTTL evicts idle transcripts when positive; zero never evicts.
	SessionTTL time.Duration
	// QuotaWindow resets request counts after the window when positive; zero
	// means lifetime counts with no reset.
	QuotaWindow time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port: getEnv("PORT", "3000"),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o"),

		WhatsAppAPIVersion:    getEnv("WHATSAPP_API_VERSION", "v18.0"),
		WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppAccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppVerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", ""),

		MaxRequestsPerUser: getEnvInt("MAX_REQUESTS_PER_USER", 10),
		SnapTurnThreshold:  getEnvInt("SNAP_TURN_THRESHOLD", 4),
		ProcessTimeout:     getEnvDuration("PROCESS_TIMEOUT", 60*time.Second),

		ReceiptOutputDir: getEnv("RECEIPT_OUTPUT_DIR", "./public/receipts"),
		FontDir:          getEnv("FONT_DIR", "./fonts"),

		DBPath:      getEnv("DB_PATH", ""),
		SessionTTL:  getEnvDuration("SESSION_TTL", 0),
		QuotaWindow: getEnvDuration("QUOTA_WINDOW", 0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the fields needed to serve at all. Upstream credentials
// are deliberately not required here; their absence surfaces on the first
// outbound call instead.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.ReceiptOutputDir == "" {
		return fmt.Errorf("RECEIPT_OUTPUT_DIR cannot be empty")
	}
	if c.SnapTurnThreshold < 1 {
		return fmt.Errorf("SNAP_TURN_THRESHOLD must be >= 1")
	}
	if c.MaxRequestsPerUser < 0 {
		return fmt.Errorf("MAX_REQUESTS_PER_USER must be >= 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
