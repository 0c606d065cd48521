package integration

import (
	"context"
	"testing"
	"time"

	"github.com/rawblock/authcore/internal/errs"
)

func TestDoRetriesRetryableErrors(t *testing.T) {
	cfg := RetryConfig{Initial: time.Millisecond, Max: 5 * time.Millisecond, MaxRetries: 3}
	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errs.New(errs.Unavailable, "transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls (2 retries), got %d", calls)
	}
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	cfg := RetryConfig{Initial: time.Millisecond, Max: 2 * time.Millisecond, MaxRetries: 2}
	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		return errs.New(errs.Unavailable, "still down")
	})
	if err == nil {
		t.Fatalf("expected an error after exhausting retries")
	}
	if calls != 3 {
		t.Fatalf("expected MaxRetries+1=3 calls, got %d", calls)
	}
}

func TestDoDoesNotRetryValidationErrors(t *testing.T) {
	cfg := RetryConfig{Initial: time.Millisecond, Max: time.Millisecond, MaxRetries: 3}
	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		return errs.Validationf("field", "bad input")
	})
	if err == nil {
		t.Fatalf("expected validation error to surface")
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call for a non-retryable error, got %d", calls)
	}
}

func TestDoHonorsRateLimitedRetryAfter(t *testing.T) {
	cfg := RetryConfig{Initial: time.Second, Max: 5 * time.Second, MaxRetries: 1}
	calls := 0
	start := time.Now()
	err := Do(context.Background(), cfg, func() error {
		calls++
		if calls == 1 {
			return errs.RateLimitedAfter(5 * time.Millisecond)
		}
		return nil
	})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed > 200*time.Millisecond {
		t.Fatalf("expected the short server-specified retry_after to be honored instead of the much larger backoff default, took %v", elapsed)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	cfg := RetryConfig{Initial: time.Hour, Max: time.Hour, MaxRetries: 2}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, cfg, func() error {
		return errs.New(errs.Unavailable, "down")
	})
	if err == nil {
		t.Fatalf("expected cancellation to surface as an error")
	}
}
