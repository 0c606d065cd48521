package models

// MetricsSnapshot is a read-only point-in-time copy of the integration
// engine's counters and latency estimate (spec.md §3, §4.7). It carries no
// behavior — Metrics.Snapshot() in internal/integration produces it under
// a brief lock.
type MetricsSnapshot struct {
	APIOk          uint64
	APIFail        uint64
	CacheOk        uint64
	CacheFail      uint64
	LatencyEMAMs   float64
	BreakerState   BreakerState
}
