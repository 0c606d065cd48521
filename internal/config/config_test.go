package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DATABASE_URL", "REMOTE_API_BASE_URL", "PORT", "API_AUTH_TOKEN",
		"ALLOWED_ORIGINS", "FALLBACK_STRATEGY", "MAX_RETRIES",
		"INITIAL_RETRY_DELAY_MS", "MAX_RETRY_DELAY_MS",
		"BREAKER_FAIL_THRESHOLD", "BREAKER_OPEN_TIMEOUT_MS",
		"BREAKER_SUCCESS_THRESHOLD", "API_TIMEOUT_MS", "CACHE_TIMEOUT_MS",
		"ENROLLMENT_CACHE_TTL_MS", "SESSION_TTL_MS", "MAX_SESSION_ATTEMPTS",
		"MIN_FACTORS", "MAX_FACTORS", "MIN_CATEGORIES",
		"ENROLLMENTS_PER_HOUR", "FRAUD_THRESHOLD_WARN",
		"FRAUD_THRESHOLD_CHALLENGE", "FRAUD_THRESHOLD_BLOCK",
		"ENABLE_SHADOW_REPLAY",
	} {
		os.Unsetenv(k)
	}
}

func TestFromEnvRequiresRemoteAPIBaseURL(t *testing.T) {
	clearEnv(t)
	os.Setenv("DATABASE_URL", "postgres://localhost/authcore")
	defer os.Unsetenv("DATABASE_URL")

	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected an error when REMOTE_API_BASE_URL is unset")
	}
}

func TestFromEnvAppliesDefaults(t *testing.T) {
	clearEnv(t)
	os.Setenv("DATABASE_URL", "postgres://localhost/authcore")
	os.Setenv("REMOTE_API_BASE_URL", "https://api.example.com")
	defer clearEnv(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SessionTTL != 5*time.Minute {
		t.Fatalf("expected default session ttl of 5m, got %s", cfg.SessionTTL)
	}
	if cfg.MaxSessionAttempts != 3 {
		t.Fatalf("expected default max session attempts of 3, got %d", cfg.MaxSessionAttempts)
	}
	if cfg.MinFactors != 6 || cfg.MaxFactors != 10 {
		t.Fatalf("expected default factor bounds 6/10, got %d/%d", cfg.MinFactors, cfg.MaxFactors)
	}
	if cfg.FraudThresholds.Block != 80 {
		t.Fatalf("expected default fraud block threshold of 80, got %d", cfg.FraudThresholds.Block)
	}
}

func TestFromEnvOverridesFromEnvironment(t *testing.T) {
	clearEnv(t)
	os.Setenv("DATABASE_URL", "postgres://localhost/authcore")
	os.Setenv("REMOTE_API_BASE_URL", "https://api.example.com")
	os.Setenv("SESSION_TTL_MS", "60000")
	os.Setenv("MAX_SESSION_ATTEMPTS", "5")
	defer clearEnv(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SessionTTL != time.Minute {
		t.Fatalf("expected overridden session ttl of 1m, got %s", cfg.SessionTTL)
	}
	if cfg.MaxSessionAttempts != 5 {
		t.Fatalf("expected overridden max session attempts of 5, got %d", cfg.MaxSessionAttempts)
	}
}
