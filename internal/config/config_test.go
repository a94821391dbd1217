package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("ACCESS_TOKEN_TTL", "")
	t.Setenv("REDIS_ADDR", "")

	cfg := Load()
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Errorf("AccessTokenTTL = %v", cfg.AccessTokenTTL)
	}
	if cfg.HeadmasterEmailPrefix != "headmaster" {
		t.Errorf("HeadmasterEmailPrefix = %q", cfg.HeadmasterEmailPrefix)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want cache disabled by default", cfg.RedisAddr)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("ACCESS_TOKEN_TTL", "30m")
	t.Setenv("RESET_TOKEN_TTL", "")
	t.Setenv("RESET_TOKEN_TTL_SECONDS", "120")

	cfg := Load()
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.AccessTokenTTL != 30*time.Minute {
		t.Errorf("AccessTokenTTL = %v", cfg.AccessTokenTTL)
	}
	if cfg.ResetTokenTTL != 2*time.Minute {
		t.Errorf("ResetTokenTTL = %v", cfg.ResetTokenTTL)
	}
}

func TestGetenvDurationBadValue(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "not-a-duration")
	cfg := Load()
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Errorf("expected the fallback, got %v", cfg.AccessTokenTTL)
	}
}
