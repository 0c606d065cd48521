package integration

import (
	"context"
	"time"

	"github.com/rawblock/authcore/internal/errs"
	"github.com/rawblock/authcore/internal/obslog"
)

// Strategy selects how Engine reconciles a remote API call against a local
// cache (spec.md §4.7 "Fallback strategies").
type Strategy string

const (
	StrategyAPIOnly               Strategy = "API_ONLY"
	StrategyCacheOnly             Strategy = "CACHE_ONLY"
	StrategyAPIFirstCacheFallback Strategy = "API_FIRST_CACHE_FALLBACK"
	StrategyCacheFirstAPISync     Strategy = "CACHE_FIRST_API_SYNC"
)

// DefaultStrategy is API_FIRST_CACHE_FALLBACK per spec.md §4.7.
const DefaultStrategy = StrategyAPIFirstCacheFallback

// APICall performs one call to the remote backend and returns its result.
type APICall func(ctx context.Context) (any, error)

// CacheRead reads from, and CacheWrite writes through to, the local cache.
type CacheRead func(ctx context.Context) (any, error)
type CacheWrite func(ctx context.Context, value any) error

// Engine dispatches a logical backend call through retry, the circuit
// breaker, and the configured fallback strategy.
type Engine struct {
	strategy Strategy
	retryCfg RetryConfig
	breaker  *CircuitBreaker
	metrics  *Metrics
	log      *obslog.Logger
}

// NewEngine creates an Engine using strategy, with a fresh breaker and
// metrics collector.
func NewEngine(strategy Strategy, retryCfg RetryConfig, breakerCfg BreakerConfig) *Engine {
	breaker := NewCircuitBreaker(breakerCfg)
	return &Engine{
		strategy: strategy,
		retryCfg: retryCfg,
		breaker:  breaker,
		metrics:  NewMetrics(breaker),
		log:      obslog.New("integration"),
	}
}

// Metrics exposes a read-only snapshot of this engine's counters.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// Breaker exposes the engine's circuit breaker so callers outside the
// integration package (the health-check handler) can report its state
// without going through a full Metrics snapshot.
func (e *Engine) Breaker() *CircuitBreaker { return e.breaker }

// Call dispatches api/cacheRead/cacheWrite according to the engine's
// strategy (spec.md §4.7).
func (e *Engine) Call(ctx context.Context, api APICall, cacheRead CacheRead, cacheWrite CacheWrite) (any, error) {
	switch e.strategy {
	case StrategyAPIOnly:
		return e.callAPI(ctx, api)
	case StrategyCacheOnly:
		v, err := cacheRead(ctx)
		e.metrics.RecordCache(err == nil)
		return v, err
	case StrategyCacheFirstAPISync:
		return e.cacheFirstAPISync(ctx, api, cacheRead, cacheWrite)
	case StrategyAPIFirstCacheFallback:
		fallthrough
	default:
		return e.apiFirstCacheFallback(ctx, api, cacheRead, cacheWrite)
	}
}

func (e *Engine) callAPI(ctx context.Context, api APICall) (any, error) {
	if !e.breaker.Allow(time.Now()) {
		return nil, errs.New(errs.BreakerOpen, "circuit breaker open for this upstream")
	}

	var result any
	start := time.Now()
	err := Do(ctx, e.retryCfg, func() error {
		v, callErr := api(ctx)
		if callErr != nil {
			return callErr
		}
		result = v
		return nil
	})
	latency := time.Since(start)

	if err != nil {
		e.metrics.RecordAPI(false, latency)
		e.breaker.RecordFailure(time.Now())
		return nil, err
	}
	e.metrics.RecordAPI(true, latency)
	e.breaker.RecordSuccess(time.Now())
	return result, nil
}

// apiFirstCacheFallback tries the API (through retry+breaker); on success it
// writes through to cache; on failure it falls through to cache
// (spec.md §4.7, default strategy).
func (e *Engine) apiFirstCacheFallback(ctx context.Context, api APICall, cacheRead CacheRead, cacheWrite CacheWrite) (any, error) {
	v, err := e.callAPI(ctx, api)
	if err == nil {
		if cacheWrite != nil {
			if werr := cacheWrite(ctx, v); werr != nil {
				e.log.Warn("cache write-through failed: %v", werr)
			}
		}
		return v, nil
	}

	e.log.Warn("api call failed (%v), falling back to cache", err)
	cv, cerr := cacheRead(ctx)
	e.metrics.RecordCache(cerr == nil)
	if cerr != nil {
		return nil, err
	}
	return cv, nil
}

// cacheFirstAPISync returns the cached value immediately and refreshes from
// the API in the background; an API failure is logged, never surfaced
// (spec.md §4.7).
func (e *Engine) cacheFirstAPISync(ctx context.Context, api APICall, cacheRead CacheRead, cacheWrite CacheWrite) (any, error) {
	v, err := cacheRead(ctx)
	e.metrics.RecordCache(err == nil)

	go func() {
		bgCtx := context.Background()
		fresh, apiErr := e.callAPI(bgCtx, api)
		if apiErr != nil {
			e.log.Warn("background refresh failed: %v", apiErr)
			return
		}
		if cacheWrite != nil {
			if werr := cacheWrite(bgCtx, fresh); werr != nil {
				e.log.Warn("background cache write failed: %v", werr)
			}
		}
	}()

	if err != nil {
		return nil, err
	}
	return v, nil
}
