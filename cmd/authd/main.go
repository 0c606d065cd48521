package main

import (
	"log"
	"os"

	"github.com/rawblock/authcore/internal/alerts"
	"github.com/rawblock/authcore/internal/api"
	"github.com/rawblock/authcore/internal/attestation"
	"github.com/rawblock/authcore/internal/config"
	"github.com/rawblock/authcore/internal/enroll"
	"github.com/rawblock/authcore/internal/fraud"
	"github.com/rawblock/authcore/internal/integration"
	"github.com/rawblock/authcore/internal/ratelimit"
	"github.com/rawblock/authcore/internal/remoteapi"
	"github.com/rawblock/authcore/internal/store"
	"github.com/rawblock/authcore/internal/verify"
)

func main() {
	log.Println("Starting authcore authentication engine...")

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	// ─── Local secure store (Postgres) ───────────────────────────────
	pg, err := store.ConnectPostgres(cfg.DBURL)
	if err != nil {
		log.Fatalf("FATAL: failed to connect to postgres: %v", err)
	}
	defer pg.Close()
	if err := pg.InitSchema("internal/store/schema.sql"); err != nil {
		log.Printf("Warning: schema init failed, assuming it already exists: %v", err)
	}

	// ─── C7 integration engine + A5 remote backend + cache, composed
	// into the "durable store" leg (see internal/store.EngineBackedStore)
	engine := integration.NewEngine(
		cfg.FallbackStrategy,
		integration.RetryConfig{
			Initial:    cfg.InitialRetryDelay,
			Max:        cfg.MaxRetryDelay,
			MaxRetries: cfg.MaxRetries,
		},
		integration.BreakerConfig{
			FailThreshold:    cfg.BreakerFailThreshold,
			OpenTimeout:      cfg.BreakerOpenTimeout,
			SuccessThreshold: cfg.BreakerSuccessThreshold,
		},
	)
	remoteClient := remoteapi.New(remoteapi.Config{
		BaseURL: cfg.RemoteAPIBaseURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.APITimeout,
	})
	cache := store.NewMemoryCache()
	defer cache.Close()
	durable := store.NewEngineBackedStore(engine, remoteClient, cache)

	// ─── C3 rate limiters ─────────────────────────────────────────────
	enrollLimiter := ratelimit.New(ratelimit.Policy{
		MaxEvents: cfg.EnrollmentsPerHour,
		Window:    ratelimit.DefaultEnrollmentPolicy.Window,
	})
	userLimiter := ratelimit.New(ratelimit.DefaultVerificationPolicy)
	merchLimiter := ratelimit.New(ratelimit.DefaultVerificationPolicy)

	// ─── C5 fraud detector ────────────────────────────────────────────
	fraudCfg := fraud.DefaultConfig
	fraudCfg.Thresholds = cfg.FraudThresholds
	blacklist := fraud.NewBlacklist()
	detector := fraud.NewDetector(fraudCfg, blacklist)

	// ─── Alerting: websocket hub + manager ─────────────────────────────
	hub := alerts.NewHub()
	go hub.Run()
	alertMgr := alerts.NewManager(hub.Broadcast)

	// ─── Attestation: production wiring is the caller's responsibility.
	// Defaults to nil unless an operator opts a static provider in via
	// ATTESTATION_MODE=static, for exercising the enroll attestation
	// gate without a real platform authenticator.
	var attester attestation.Provider
	if os.Getenv("ATTESTATION_MODE") == "static" {
		attester = attestation.StaticProvider{Attestation: attestation.PlatformAttestation{OK: true}}
		log.Println("Warning: ATTESTATION_MODE=static — platform attestation is a no-op, do not use in production")
	}

	// ─── C8 enroll orchestrator ────────────────────────────────────────
	enrollOrch := enroll.NewOrchestrator(attester, enrollLimiter, pg, durable)

	// ─── C9 verify orchestrator ────────────────────────────────────────
	verifyOrch := verify.NewOrchestrator(detector, userLimiter, merchLimiter, pg, durable, alertMgr)

	r := api.SetupRouter(enrollOrch, verifyOrch, alertMgr, hub, engine.Breaker())

	log.Printf("authcore listening on :%s\n", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("FATAL: server exited: %v", err)
	}
}
