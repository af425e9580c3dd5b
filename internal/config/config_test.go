package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("PIN_PEPPER", "0123456789abcdef")
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PIN_PEPPER", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when JWT_SECRET is unset")
	}

	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when PIN_PEPPER is unset")
	}
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "")
	t.Setenv("TOKEN_TTL_MINUTES", "")
	t.Setenv("BODY_LIMIT_BYTES", "")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "")
	t.Setenv("ALLOW_NEGATIVE_STOCK", "")
	t.Setenv("STALE_BILL_HOURS", "")
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.TokenTTL != 4*time.Hour {
		t.Fatalf("expected 4h token TTL, got %s", cfg.TokenTTL)
	}
	if cfg.BodyLimitBytes != 2<<20 {
		t.Fatalf("expected 2MiB body limit, got %d", cfg.BodyLimitBytes)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("expected 30s request timeout, got %s", cfg.RequestTimeout)
	}
	if !cfg.AllowNegativeStock {
		t.Fatalf("expected negative stock allowed by default")
	}
	if cfg.StaleBillAfter != 6*time.Hour {
		t.Fatalf("expected 6h stale bill cutoff, got %s", cfg.StaleBillAfter)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:5173" {
		t.Fatalf("unexpected default origins: %v", cfg.AllowedOrigins)
	}
}

func TestLoadParsesOrigins(t *testing.T) {
	setRequired(t)
	t.Setenv("ALLOWED_ORIGINS", "https://pos.example.com, https://admin.example.com ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.AllowedOrigins)
	}
	if cfg.AllowedOrigins[1] != "https://admin.example.com" {
		t.Fatalf("expected trimmed origin, got %q", cfg.AllowedOrigins[1])
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	setRequired(t)
	t.Setenv("TOKEN_TTL_MINUTES", "four")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for non-numeric TOKEN_TTL_MINUTES")
	}
}
