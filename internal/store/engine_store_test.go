package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rawblock/authcore/internal/integration"
	"github.com/rawblock/authcore/internal/remoteapi"
	"github.com/rawblock/authcore/pkg/models"
)

func fastEngine(strategy integration.Strategy) *integration.Engine {
	retryCfg := integration.RetryConfig{Initial: time.Millisecond, Max: 2 * time.Millisecond, MaxRetries: 1}
	return integration.NewEngine(strategy, retryCfg, integration.DefaultBreakerConfig)
}

func sampleRecord(userID string) models.EnrollmentRecord {
	return models.EnrollmentRecord{
		UserID: userID,
		Alias:  "alice",
		Digests: map[models.FactorKind]models.FactorDigest{
			models.FactorPIN: {1, 2, 3},
		},
		Consent:   models.Consent{Terms: true, Privacy: true, Processing: true},
		CreatedAt: time.Now(),
	}
}

func TestEngineBackedStoreSaveWritesThroughToCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req remoteapi.PersistRequest
		json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(remoteapi.PersistResponse{UserID: req.UserID})
	}))
	defer srv.Close()

	cache := NewMemoryCache()
	defer cache.Close()
	client := remoteapi.New(remoteapi.Config{BaseURL: srv.URL})
	s := NewEngineBackedStore(fastEngine(integration.DefaultStrategy), client, cache)

	rec := sampleRecord("u1")
	if err := s.Save(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cache.Load(context.Background(), "u1"); err != nil {
		t.Fatalf("expected Save to write through to cache: %v", err)
	}
}

func TestEngineBackedStoreLoadPrefersRemoteAndWritesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(remoteapi.PersistRequest{
			UserID:  "u2",
			Alias:   "bob",
			Digests: map[string]string{"PIN": strings.Repeat("ab", models.DigestSize)},
		})
	}))
	defer srv.Close()

	cache := NewMemoryCache()
	defer cache.Close()
	client := remoteapi.New(remoteapi.Config{BaseURL: srv.URL})
	s := NewEngineBackedStore(fastEngine(integration.DefaultStrategy), client, cache)

	rec, err := s.Load(context.Background(), "u2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.UserID != "u2" || rec.Alias != "bob" {
		t.Fatalf("expected remote record, got %+v", rec)
	}
	if _, err := cache.Load(context.Background(), "u2"); err != nil {
		t.Fatalf("expected Load to write through to cache: %v", err)
	}
}

func TestEngineBackedStoreLoadFallsBackToCacheOnRemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cache := NewMemoryCache()
	defer cache.Close()
	rec := sampleRecord("u3")
	if err := cache.Save(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error priming cache: %v", err)
	}

	client := remoteapi.New(remoteapi.Config{BaseURL: srv.URL})
	s := NewEngineBackedStore(fastEngine(integration.DefaultStrategy), client, cache)

	got, err := s.Load(context.Background(), "u3")
	if err != nil {
		t.Fatalf("expected fallback to cache to succeed: %v", err)
	}
	if got.UserID != "u3" {
		t.Fatalf("expected cached record, got %+v", got)
	}
}

func TestEngineBackedStoreDeleteRemovesRemoteAndCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cache := NewMemoryCache()
	defer cache.Close()
	rec := sampleRecord("u4")
	cache.Save(context.Background(), rec)

	client := remoteapi.New(remoteapi.Config{BaseURL: srv.URL})
	s := NewEngineBackedStore(fastEngine(integration.DefaultStrategy), client, cache)

	if err := s.Delete(context.Background(), "u4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cache.Load(context.Background(), "u4"); err == nil {
		t.Fatalf("expected cache entry to be deleted")
	}
}
