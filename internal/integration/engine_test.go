package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rawblock/authcore/internal/errs"
)

func fastRetryCfg() RetryConfig {
	return RetryConfig{Initial: time.Millisecond, Max: 2 * time.Millisecond, MaxRetries: 1}
}

func TestAPIOnlyFailsWithoutAPI(t *testing.T) {
	e := NewEngine(StrategyAPIOnly, fastRetryCfg(), DefaultBreakerConfig)
	_, err := e.Call(context.Background(), func(ctx context.Context) (any, error) {
		return nil, errs.New(errs.Unavailable, "down")
	}, nil, nil)
	if err == nil {
		t.Fatalf("expected API_ONLY to surface the API failure")
	}
}

func TestAPIFirstCacheFallbackUsesCacheOnAPIFailure(t *testing.T) {
	e := NewEngine(StrategyAPIFirstCacheFallback, fastRetryCfg(), DefaultBreakerConfig)
	v, err := e.Call(context.Background(),
		func(ctx context.Context) (any, error) { return nil, errs.New(errs.Unavailable, "down") },
		func(ctx context.Context) (any, error) { return "cached-value", nil },
		nil,
	)
	if err != nil {
		t.Fatalf("expected fallback to cache to succeed: %v", err)
	}
	if v != "cached-value" {
		t.Fatalf("expected cached value, got %v", v)
	}
}

func TestAPIFirstCacheFallbackWritesThroughOnSuccess(t *testing.T) {
	e := NewEngine(StrategyAPIFirstCacheFallback, fastRetryCfg(), DefaultBreakerConfig)
	written := false
	v, err := e.Call(context.Background(),
		func(ctx context.Context) (any, error) { return "fresh-value", nil },
		func(ctx context.Context) (any, error) { return nil, errors.New("should not be called") },
		func(ctx context.Context, value any) error { written = true; return nil },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "fresh-value" {
		t.Fatalf("expected fresh API value, got %v", v)
	}
	if !written {
		t.Fatalf("expected a write-through to cache on API success")
	}
}

func TestCacheOnlyNeverCallsAPI(t *testing.T) {
	e := NewEngine(StrategyCacheOnly, fastRetryCfg(), DefaultBreakerConfig)
	v, err := e.Call(context.Background(),
		func(ctx context.Context) (any, error) { return nil, errors.New("should not be called") },
		func(ctx context.Context) (any, error) { return "cached", nil },
		nil,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "cached" {
		t.Fatalf("expected cached value, got %v", v)
	}
}

func TestCacheFirstAPISyncReturnsCacheImmediately(t *testing.T) {
	e := NewEngine(StrategyCacheFirstAPISync, fastRetryCfg(), DefaultBreakerConfig)
	v, err := e.Call(context.Background(),
		func(ctx context.Context) (any, error) { return "fresh", nil },
		func(ctx context.Context) (any, error) { return "stale-but-fast", nil },
		func(ctx context.Context, value any) error { return nil },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "stale-but-fast" {
		t.Fatalf("expected the cached value to be returned immediately, got %v", v)
	}
}

func TestBreakerOpensAcrossRepeatedEngineFailures(t *testing.T) {
	cfg := BreakerConfig{FailThreshold: 2, OpenTimeout: time.Hour, SuccessThreshold: 2}
	e := NewEngine(StrategyAPIOnly, RetryConfig{Initial: time.Millisecond, Max: time.Millisecond, MaxRetries: 0}, cfg)
	failingAPI := func(ctx context.Context) (any, error) { return nil, errs.New(errs.Unavailable, "down") }

	e.Call(context.Background(), failingAPI, nil, nil)
	e.Call(context.Background(), failingAPI, nil, nil)

	_, err := e.Call(context.Background(), failingAPI, nil, nil)
	if errs.KindOf(err) != errs.BreakerOpen {
		t.Fatalf("expected BreakerOpen after exceeding fail threshold, got %v", errs.KindOf(err))
	}
}
