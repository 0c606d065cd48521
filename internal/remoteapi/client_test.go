package remoteapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rawblock/authcore/internal/errs"
)

func TestPersistRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/enrollments" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req PersistRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(PersistResponse{UserID: req.UserID})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	resp, err := c.Persist(context.Background(), PersistRequest{UserID: "u1", Alias: "alias1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.UserID != "u1" {
		t.Fatalf("expected echoed user id, got %q", resp.UserID)
	}
}

func TestDeleteTreats404AsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	if err := c.Delete(context.Background(), "missing-user"); err != nil {
		t.Fatalf("expected delete of a missing record to be idempotent-success, got %v", err)
	}
}

func TestEveryRequestCarriesANonceAndTimestamp(t *testing.T) {
	var gotPersistNonce, gotPersistTimestamp string
	var gotFetchHeader, gotDeleteHeader http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var req PersistRequest
			json.NewDecoder(r.Body).Decode(&req)
			gotPersistNonce = req.Nonce
			gotPersistTimestamp = req.Timestamp
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(PersistResponse{UserID: req.UserID})
		case http.MethodGet:
			gotFetchHeader = r.Header.Clone()
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(PersistRequest{UserID: "u1"})
		case http.MethodDelete:
			gotDeleteHeader = r.Header.Clone()
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})

	if _, err := c.Persist(context.Background(), PersistRequest{UserID: "u1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPersistNonce == "" || len(gotPersistNonce) != 64 {
		t.Fatalf("expected a 32-byte hex nonce on Persist, got %q", gotPersistNonce)
	}
	if gotPersistTimestamp == "" {
		t.Fatalf("expected a non-empty timestamp on Persist")
	}
	if _, err := time.Parse(time.RFC3339, gotPersistTimestamp); err != nil {
		t.Fatalf("expected an ISO-8601 (RFC3339) timestamp, got %q: %v", gotPersistTimestamp, err)
	}

	if _, err := c.Fetch(context.Background(), "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotFetchHeader.Get(replayNonceHeader) == "" || gotFetchHeader.Get(replayTimestampHeader) == "" {
		t.Fatalf("expected Fetch to carry nonce/timestamp headers, got %v", gotFetchHeader)
	}

	if err := c.Delete(context.Background(), "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotDeleteHeader.Get(replayNonceHeader) == "" || gotDeleteHeader.Get(replayTimestampHeader) == "" {
		t.Fatalf("expected Delete to carry nonce/timestamp headers, got %v", gotDeleteHeader)
	}
	if gotFetchHeader.Get(replayNonceHeader) == gotDeleteHeader.Get(replayNonceHeader) {
		t.Fatalf("expected a fresh nonce per request, got the same nonce twice")
	}
}

func TestRateLimitedMapsToRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.Persist(context.Background(), PersistRequest{UserID: "u1"})
	if errs.KindOf(err) != errs.RateLimited {
		t.Fatalf("expected RateLimited kind, got %v", errs.KindOf(err))
	}
}

func TestServerErrorMapsToUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.Persist(context.Background(), PersistRequest{UserID: "u1"})
	if errs.KindOf(err) != errs.Unavailable {
		t.Fatalf("expected Unavailable kind, got %v", errs.KindOf(err))
	}
}

func TestAuthErrorMapsToAuthKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "wrong-key"})
	_, err := c.Persist(context.Background(), PersistRequest{UserID: "u1"})
	if errs.KindOf(err) != errs.Auth {
		t.Fatalf("expected Auth kind, got %v", errs.KindOf(err))
	}
}
