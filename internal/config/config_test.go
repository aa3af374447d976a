package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "3000" {
		t.Errorf("Port = %q, want 3000", cfg.Port)
	}
	if cfg.OpenAIModel != "gpt-4o" {
		t.Errorf("OpenAIModel = %q", cfg.OpenAIModel)
	}
	if cfg.WhatsAppAPIVersion != "v18.0" {
		t.Errorf("WhatsAppAPIVersion = %q", cfg.WhatsAppAPIVersion)
	}
	if cfg.MaxRequestsPerUser != 10 {
		t.Errorf("MaxRequestsPerUser = %d, want 10", cfg.MaxRequestsPerUser)
	}
	if cfg.SnapTurnThreshold != 4 {
		t.Errorf("SnapTurnThreshold = %d, want 4", cfg.SnapTurnThreshold)
	}
	if cfg.SessionTTL != 0 || cfg.QuotaWindow != 0 {
		t.Error("eviction and quota window must default to disabled")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("MAX_REQUESTS_PER_USER", "3")
	t.Setenv("SESSION_TTL", "45m")
	t.Setenv("QUOTA_WINDOW", "24h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8081" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.MaxRequestsPerUser != 3 {
		t.Errorf("MaxRequestsPerUser = %d", cfg.MaxRequestsPerUser)
	}
	if cfg.SessionTTL != 45*time.Minute {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.QuotaWindow != 24*time.Hour {
		t.Errorf("QuotaWindow = %v", cfg.QuotaWindow)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("MAX_REQUESTS_PER_USER", "lots")
	t.Setenv("SESSION_TTL", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxRequestsPerUser != 10 {
		t.Errorf("MaxRequestsPerUser = %d, want fallback 10", cfg.MaxRequestsPerUser)
	}
	if cfg.SessionTTL != 0 {
		t.Errorf("SessionTTL = %v, want fallback 0", cfg.SessionTTL)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{Port: "", ReceiptOutputDir: "./r", SnapTurnThreshold: 4}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty PORT")
	}

	cfg = &Config{Port: "3000", ReceiptOutputDir: "", SnapTurnThreshold: 4}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty RECEIPT_OUTPUT_DIR")
	}

	cfg = &Config{Port: "3000", ReceiptOutputDir: "./r", SnapTurnThreshold: 0}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero snap threshold")
	}
}
