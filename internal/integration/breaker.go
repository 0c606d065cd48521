// Package integration implements the backend-integration engine (C7):
// circuit breaker, retry with exponential backoff, EMA metrics, and the
// fallback-strategy dispatcher that sits between the orchestrators (C8/C9)
// and the remote API / cache collaborators.
package integration

import (
	"sync"
	"time"

	"github.com/rawblock/authcore/pkg/models"
)

// BreakerConfig tunes a CircuitBreaker. Defaults match spec.md §4.7.
type BreakerConfig struct {
	FailThreshold    int
	OpenTimeout      time.Duration
	SuccessThreshold int
}

// DefaultBreakerConfig matches spec.md §4.7's stated defaults.
var DefaultBreakerConfig = BreakerConfig{
	FailThreshold:    5,
	OpenTimeout:      30 * time.Second,
	SuccessThreshold: 2,
}

// CircuitBreaker tracks one upstream's health and gates calls to it
// (spec.md §4.7 "Circuit breaker"). Transition table:
//
//	CLOSED    -> OPEN      consecutive failures >= FailThreshold
//	OPEN      -> HALF_OPEN  OpenTimeout elapsed since opening
//	HALF_OPEN -> CLOSED     SuccessThreshold consecutive successes
//	HALF_OPEN -> OPEN       any single failure
type CircuitBreaker struct {
	cfg BreakerConfig

	mu                  sync.Mutex
	state               models.BreakerState
	consecutiveFailures int
	consecutiveSuccess  int
	openedAt            time.Time
}

// NewCircuitBreaker creates a CLOSED breaker with cfg.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, state: models.BreakerClosed}
}

// Allow reports whether a call may proceed at now, transitioning OPEN to
// HALF_OPEN if OpenTimeout has elapsed.
func (b *CircuitBreaker) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case models.BreakerOpen:
		if now.Sub(b.openedAt) >= b.cfg.OpenTimeout {
			b.state = models.BreakerHalfOpen
			b.consecutiveSuccess = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess reports a successful call, possibly closing a HALF_OPEN
// breaker.
func (b *CircuitBreaker) RecordSuccess(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	switch b.state {
	case models.BreakerHalfOpen:
		b.consecutiveSuccess++
		if b.consecutiveSuccess >= b.cfg.SuccessThreshold {
			b.state = models.BreakerClosed
			b.consecutiveSuccess = 0
		}
	case models.BreakerClosed:
		// no-op: already healthy.
	}
}

// RecordFailure reports a failed call, possibly opening the breaker.
func (b *CircuitBreaker) RecordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case models.BreakerHalfOpen:
		b.state = models.BreakerOpen
		b.openedAt = now
		b.consecutiveSuccess = 0
	case models.BreakerClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.cfg.FailThreshold {
			b.state = models.BreakerOpen
			b.openedAt = now
		}
	}
}

// State returns the breaker's current state without mutating it.
func (b *CircuitBreaker) State() models.BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
