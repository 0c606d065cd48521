// Package config loads the authentication core's runtime configuration
// from the environment, mirroring spec.md §6's configuration table field
// for field. Grounded on the teacher's requireEnv/getEnvOrDefault pattern
// in cmd/engine/main.go: required values fail loudly before the server
// starts listening, everything else falls back to the spec's stated
// default.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/rawblock/authcore/internal/fraud"
	"github.com/rawblock/authcore/internal/integration"
	"github.com/rawblock/authcore/internal/ratelimit"
	"github.com/rawblock/authcore/pkg/models"
)

// Config is a flat struct mirroring spec.md §6's configuration table.
type Config struct {
	Port   string
	DBURL  string
	APIKey string

	RemoteAPIBaseURL string
	AuthToken        string
	AllowedOrigins   string

	FallbackStrategy        integration.Strategy
	MaxRetries              int
	InitialRetryDelay       time.Duration
	MaxRetryDelay           time.Duration
	BreakerFailThreshold    int
	BreakerOpenTimeout      time.Duration
	BreakerSuccessThreshold int
	APITimeout              time.Duration
	CacheTimeout            time.Duration

	EnrollmentCacheTTL time.Duration
	SessionTTL         time.Duration
	MaxSessionAttempts int

	MinFactors    int
	MaxFactors    int
	MinCategories int

	EnrollmentsPerHour int
	FraudThresholds    fraud.Thresholds

	EnableShadowReplay bool
}

// FromEnv loads Config from the process environment, applying spec.md §6's
// defaults for anything unset. DATABASE_URL and REMOTE_API_BASE_URL are the
// only hard requirements — everything security-sensitive the teacher treats
// as a secret, this repo treats the same way.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:             getEnvOrDefault("PORT", "8443"),
		RemoteAPIBaseURL: getEnvOrDefault("REMOTE_API_BASE_URL", ""),
		APIKey:           os.Getenv("REMOTE_API_KEY"),
		AuthToken:        os.Getenv("API_AUTH_TOKEN"),
		AllowedOrigins:   os.Getenv("ALLOWED_ORIGINS"),

		FallbackStrategy:        integration.Strategy(getEnvOrDefault("FALLBACK_STRATEGY", string(integration.DefaultStrategy))),
		MaxRetries:              getEnvIntOrDefault("MAX_RETRIES", integration.DefaultRetryConfig.MaxRetries),
		InitialRetryDelay:       getEnvMsOrDefault("INITIAL_RETRY_DELAY_MS", integration.DefaultRetryConfig.Initial),
		MaxRetryDelay:           getEnvMsOrDefault("MAX_RETRY_DELAY_MS", integration.DefaultRetryConfig.Max),
		BreakerFailThreshold:    getEnvIntOrDefault("BREAKER_FAIL_THRESHOLD", integration.DefaultBreakerConfig.FailThreshold),
		BreakerOpenTimeout:      getEnvMsOrDefault("BREAKER_OPEN_TIMEOUT_MS", integration.DefaultBreakerConfig.OpenTimeout),
		BreakerSuccessThreshold: getEnvIntOrDefault("BREAKER_SUCCESS_THRESHOLD", integration.DefaultBreakerConfig.SuccessThreshold),
		APITimeout:              getEnvMsOrDefault("API_TIMEOUT_MS", 10*time.Second),
		CacheTimeout:            getEnvMsOrDefault("CACHE_TIMEOUT_MS", 5*time.Second),

		EnrollmentCacheTTL: getEnvMsOrDefault("ENROLLMENT_CACHE_TTL_MS", 24*time.Hour),
		SessionTTL:         getEnvMsOrDefault("SESSION_TTL_MS", models.DefaultSessionTTL),
		MaxSessionAttempts: getEnvIntOrDefault("MAX_SESSION_ATTEMPTS", models.DefaultMaxAttempts),

		MinFactors:    getEnvIntOrDefault("MIN_FACTORS", models.MinFactors),
		MaxFactors:    getEnvIntOrDefault("MAX_FACTORS", models.MaxFactors),
		MinCategories: getEnvIntOrDefault("MIN_CATEGORIES", models.MinCategories),

		EnrollmentsPerHour: getEnvIntOrDefault("ENROLLMENTS_PER_HOUR", ratelimit.DefaultEnrollmentPolicy.MaxEvents),
		FraudThresholds: fraud.Thresholds{
			Warn:      getEnvIntOrDefault("FRAUD_THRESHOLD_WARN", fraud.DefaultThresholds.Warn),
			Challenge: getEnvIntOrDefault("FRAUD_THRESHOLD_CHALLENGE", fraud.DefaultThresholds.Challenge),
			Block:     getEnvIntOrDefault("FRAUD_THRESHOLD_BLOCK", fraud.DefaultThresholds.Block),
		},

		EnableShadowReplay: os.Getenv("ENABLE_SHADOW_REPLAY") == "true",
	}

	cfg.DBURL = requireEnv("DATABASE_URL")
	if cfg.RemoteAPIBaseURL == "" {
		return nil, fmt.Errorf("config: REMOTE_API_BASE_URL is required")
	}

	return cfg, nil
}

// requireEnv reads a required environment variable and exits the process if
// it is unset, matching the teacher's fail-fast posture for credentials.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: required environment variable %s is not set", key)
	}
	return val
}

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("config: invalid int for %s=%q, using default %d", key, val, fallback)
		return fallback
	}
	return n
}

func getEnvMsOrDefault(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	ms, err := strconv.Atoi(val)
	if err != nil {
		log.Printf("config: invalid duration (ms) for %s=%q, using default %s", key, val, fallback)
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
