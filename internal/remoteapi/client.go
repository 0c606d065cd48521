// Package remoteapi is the C7 remote-API leg: a thin HTTP JSON client for
// the durable backend that persists and verifies enrollment records.
// Grounded on the teacher's bitcoin.Client RPC-wrapper shape (one struct
// holding a configured transport, one method per logical operation) and its
// alert_system.go's raw net/http JSON POST texture.
package remoteapi

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rawblock/authcore/internal/crypto"
	"github.com/rawblock/authcore/internal/errs"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// DefaultTimeout matches the teacher's own webhook client timeout.
const DefaultTimeout = 5 * time.Second

// Client is a thin wrapper over net/http for the durable backend's JSON API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a Client. If cfg.Timeout is zero, DefaultTimeout is used.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// PersistRequest is the payload sent to persist an enrollment record
// remotely. Nonce and Timestamp guard against replay (spec.md §6: "the
// server rejects duplicate nonces within a 5-minute window"); GDPRConsent
// records the consent the orchestrator already validated. Persist also
// sends the nonce/timestamp pair as headers; Client.Fetch and Client.Delete,
// which send no JSON body, carry it as headers only.
type PersistRequest struct {
	UserID      string            `json:"user_id"`
	Alias       string            `json:"alias"`
	Digests     map[string]string `json:"digests"` // factor name -> hex digest
	Nonce       string            `json:"nonce"`
	Timestamp   string            `json:"timestamp"` // ISO-8601 (RFC 3339)
	GDPRConsent bool              `json:"gdpr_consent"`
}

// PersistResponse confirms a successful remote persist.
type PersistResponse struct {
	UserID string `json:"user_id"`
}

// replayNonceHeader and replayTimestampHeader carry the per-request replay
// guard as headers on every request (Persist, Fetch, Delete).
const (
	replayNonceHeader     = "X-Request-Nonce"
	replayTimestampHeader = "X-Request-Timestamp"
)

// newReplayGuard generates a fresh 32-byte CSPRNG nonce (hex) and the
// current wall-clock timestamp (ISO-8601), per spec.md §6. A fresh pair is
// drawn for every outbound request; none is ever reused.
func newReplayGuard() (nonce, timestamp string, err error) {
	b, err := crypto.CSPRNGBytes(32)
	if err != nil {
		return "", "", errs.Wrap(errs.Internal, err, "remoteapi: failed to generate nonce")
	}
	return hex.EncodeToString(b), time.Now().UTC().Format(time.RFC3339), nil
}

// Persist writes an enrollment record to the remote durable store.
func (c *Client) Persist(ctx context.Context, req PersistRequest) (*PersistResponse, error) {
	nonce, timestamp, err := newReplayGuard()
	if err != nil {
		return nil, err
	}
	req.Nonce = nonce
	req.Timestamp = timestamp

	var resp PersistResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/enrollments", req, &resp, replayHeaders(nonce, timestamp)); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Fetch retrieves a stored enrollment record's digests by user id.
func (c *Client) Fetch(ctx context.Context, userID string) (*PersistRequest, error) {
	nonce, timestamp, err := newReplayGuard()
	if err != nil {
		return nil, err
	}
	var resp PersistRequest
	if err := c.doJSON(ctx, http.MethodGet, "/v1/enrollments/"+userID, nil, &resp, replayHeaders(nonce, timestamp)); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delete removes a remote enrollment record. Idempotent: a 404 is treated as
// success (spec.md §4.8 "Delete ... succeeds even if no record exists").
func (c *Client) Delete(ctx context.Context, userID string) error {
	nonce, timestamp, err := newReplayGuard()
	if err != nil {
		return err
	}
	err = c.doJSON(ctx, http.MethodDelete, "/v1/enrollments/"+userID, nil, nil, replayHeaders(nonce, timestamp))
	if errs.Is(err, errs.NotFound) {
		return nil
	}
	return err
}

func replayHeaders(nonce, timestamp string) map[string]string {
	return map[string]string{replayNonceHeader: nonce, replayTimestampHeader: timestamp}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, headers map[string]string) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errs.Wrap(errs.Internal, err, "remoteapi: failed to marshal request body")
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
	if err != nil {
		return errs.Wrap(errs.Internal, err, "remoteapi: failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.Wrap(errs.Unavailable, err, "remoteapi: request failed")
	}
	defer resp.Body.Close()

	if err := mapStatusError(resp); err != nil {
		return err
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Wrap(errs.Internal, err, "remoteapi: failed to decode response body")
	}
	return nil
}

// mapStatusError maps an HTTP response status to the shared error taxonomy
// (spec.md §4.7 "Retry": never retry 4xx except 429, which honors
// retry_after_ms; 5xx and timeouts are retryable Unavailable).
func mapStatusError(resp *http.Response) error {
	switch {
	case resp.StatusCode < 400:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfterHeader(resp.Header.Get("Retry-After"))
		return errs.RateLimitedAfter(retryAfter)
	case resp.StatusCode == http.StatusNotFound:
		return errs.New(errs.NotFound, "remoteapi: record not found")
	case resp.StatusCode == http.StatusConflict:
		return errs.New(errs.Conflict, "remoteapi: conflicting or duplicate request")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errs.New(errs.Auth, fmt.Sprintf("remoteapi: denied (status %d)", resp.StatusCode))
	case resp.StatusCode >= 500:
		return errs.New(errs.Unavailable, fmt.Sprintf("remoteapi: upstream returned %d", resp.StatusCode))
	default:
		return errs.New(errs.Validation, fmt.Sprintf("remoteapi: request rejected with status %d", resp.StatusCode))
	}
}

func parseRetryAfterHeader(v string) time.Duration {
	if v == "" {
		return time.Second
	}
	var seconds int
	if _, err := fmt.Sscanf(v, "%d", &seconds); err != nil || seconds <= 0 {
		return time.Second
	}
	return time.Duration(seconds) * time.Second
}
