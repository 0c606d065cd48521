package integration

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rawblock/authcore/internal/errs"
)

// RetryConfig tunes exponential backoff with jitter (spec.md §4.7 "Retry").
type RetryConfig struct {
	Initial    time.Duration
	Max        time.Duration
	MaxRetries int
}

// DefaultRetryConfig matches spec.md §4.7's stated defaults.
var DefaultRetryConfig = RetryConfig{
	Initial:    1000 * time.Millisecond,
	Max:        5000 * time.Millisecond,
	MaxRetries: 3,
}

// backoffDelay returns delay_i = min(initial*2^(i-1), max) for attempt i
// (1-indexed, i.e. the delay before the i-th retry), with up to 20% jitter
// so a fleet of clients doesn't retry in lockstep.
func backoffDelay(cfg RetryConfig, i int) time.Duration {
	mult := math.Pow(2, float64(i-1))
	d := time.Duration(float64(cfg.Initial) * mult)
	if d > cfg.Max {
		d = cfg.Max
	}
	jitter := time.Duration(rand.Int63n(int64(d)/5 + 1))
	return d + jitter
}

// Do runs fn, retrying up to cfg.MaxRetries times on a retryable error
// (spec.md §4.7: network timeout, 5xx, transient unavailable — never
// validation/auth/4xx, except 429 which honors its own retry_after_ms via
// errs.Error.RetryAfter). Sleeps respect ctx cancellation.
func Do(ctx context.Context, cfg RetryConfig, fn func() error) error {
	var err error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !shouldRetry(err) {
			return err
		}
		if attempt == cfg.MaxRetries {
			break
		}
		delay := retryDelay(cfg, attempt+1, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

// shouldRetry reports whether err is retryable per the taxonomy's own
// policy (spec.md §7): rate-limited errors are retried using their own
// RetryAfter, not backoff.
func shouldRetry(err error) bool {
	if errs.KindOf(err) == errs.RateLimited {
		return true
	}
	return errs.Retryable(err)
}

// retryDelay returns the server-specified retry_after for a RateLimited
// error, otherwise the computed exponential backoff delay.
func retryDelay(cfg RetryConfig, attempt int, err error) time.Duration {
	if errs.KindOf(err) == errs.RateLimited {
		if e, ok := err.(*errs.Error); ok && e.RetryAfter > 0 {
			return e.RetryAfter
		}
	}
	return backoffDelay(cfg, attempt)
}
