package integration

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rawblock/authcore/pkg/models"
)

const metricsEMAAlpha = 0.1

// Metrics tracks per-upstream counters and an EMA of call latency
// (spec.md §4.7 "Metrics"). Counters are atomic; the EMA is guarded by a
// small mutex since it is not a simple monotonic increment. Grounded on the
// teacher's clustering metrics collector: atomic counters plus a single
// mutex-guarded derived statistic, exposed as a read-only snapshot.
type Metrics struct {
	apiOk, apiFail     uint64
	cacheOk, cacheFail uint64

	mu         sync.Mutex
	latencyEMA float64
	emaInit    bool

	breaker *CircuitBreaker
}

// NewMetrics creates a Metrics bound to breaker for snapshotting its state.
func NewMetrics(breaker *CircuitBreaker) *Metrics {
	return &Metrics{breaker: breaker}
}

// RecordAPI records the outcome and latency of an API call.
func (m *Metrics) RecordAPI(ok bool, latency time.Duration) {
	if ok {
		atomic.AddUint64(&m.apiOk, 1)
	} else {
		atomic.AddUint64(&m.apiFail, 1)
	}
	m.recordLatency(latency)
}

// RecordCache records the outcome of a cache call. Cache calls are assumed
// fast enough not to need latency EMA tracking of their own.
func (m *Metrics) RecordCache(ok bool) {
	if ok {
		atomic.AddUint64(&m.cacheOk, 1)
	} else {
		atomic.AddUint64(&m.cacheFail, 1)
	}
}

func (m *Metrics) recordLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms := float64(d.Milliseconds())
	if !m.emaInit {
		m.latencyEMA = ms
		m.emaInit = true
		return
	}
	m.latencyEMA = metricsEMAAlpha*ms + (1-metricsEMAAlpha)*m.latencyEMA
}

// Snapshot returns a read-only copy of current metrics state.
func (m *Metrics) Snapshot() models.MetricsSnapshot {
	m.mu.Lock()
	ema := m.latencyEMA
	m.mu.Unlock()

	state := models.BreakerClosed
	if m.breaker != nil {
		state = m.breaker.State()
	}

	return models.MetricsSnapshot{
		APIOk:        atomic.LoadUint64(&m.apiOk),
		APIFail:      atomic.LoadUint64(&m.apiFail),
		CacheOk:      atomic.LoadUint64(&m.cacheOk),
		CacheFail:    atomic.LoadUint64(&m.cacheFail),
		LatencyEMAMs: ema,
		BreakerState: state,
	}
}
