// Package ratelimit implements the rate limiter (C3): three independently
// keyed sliding-window limiters — per-user, per-device-fingerprint, and
// per-IP — each enforcing a max-N-events-per-window policy. Grounded on the
// per-IP token-bucket limiter shape (mutex-guarded map, background idle
// cleanup), generalized here to sliding-window-of-timestamps semantics
// (spec.md §4.3).
package ratelimit

import (
	"sync"
	"time"

	"github.com/rawblock/authcore/internal/errs"
)

const cleanupIdleDuration = 10 * time.Minute

// Policy bounds how many events a single key may record within Window.
type Policy struct {
	MaxEvents int
	Window    time.Duration
}

// DefaultEnrollmentPolicy allows 10 enrollment attempts per actor per hour
// (spec.md §4.3 "defaults: 10/hour for enrollment").
var DefaultEnrollmentPolicy = Policy{MaxEvents: 10, Window: time.Hour}

// DefaultVerificationPolicy allows 20 verification attempts per actor per
// hour; verification policy is configurable per spec.md §4.3.
var DefaultVerificationPolicy = Policy{MaxEvents: 20, Window: time.Hour}

type window struct {
	mu        sync.Mutex
	events    []time.Time
	lastSeen  time.Time
}

// Limiter is a single sliding-window limiter keyed by an arbitrary string
// (user id, device fingerprint, or IP — one Limiter instance per dimension).
type Limiter struct {
	policy Policy
	mu     sync.Mutex
	keys   map[string]*window
	stop   chan struct{}
}

// New creates a Limiter enforcing policy and starts its background cleanup
// loop. Call Close to stop the loop.
func New(policy Policy) *Limiter {
	l := &Limiter{
		policy: policy,
		keys:   make(map[string]*window),
		stop:   make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow records an event for key at now and reports whether it is within
// policy. On rejection it returns an errs.RateLimited error carrying the
// duration until the oldest event in the window falls out of range (the
// full Window when the policy admits no events at all).
func (l *Limiter) Allow(key string, now time.Time) error {
	l.mu.Lock()
	w, ok := l.keys[key]
	if !ok {
		w = &window{}
		l.keys[key] = w
	}
	l.mu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-l.policy.Window)
	w.events = evict(w.events, cutoff)
	w.lastSeen = now

	if len(w.events) >= l.policy.MaxEvents {
		retryAfter := l.policy.Window
		if len(w.events) > 0 {
			retryAfter = w.events[0].Add(l.policy.Window).Sub(now)
		}
		if retryAfter < 0 {
			retryAfter = 0
		}
		return errs.RateLimitedAfter(retryAfter)
	}

	w.events = append(w.events, now)
	return nil
}

// evict drops every timestamp at or before cutoff. events is assumed sorted
// ascending, which holds because Allow only ever appends at now.
func evict(events []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(events) && !events[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return events
	}
	return append(events[:0], events[i:]...)
}

// Close stops the background cleanup loop.
func (l *Limiter) Close() {
	close(l.stop)
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupIdleDuration)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-cleanupIdleDuration)
			l.mu.Lock()
			for key, w := range l.keys {
				w.mu.Lock()
				idle := w.lastSeen.Before(cutoff)
				w.mu.Unlock()
				if idle {
					delete(l.keys, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Dimensions bundles the three independent sliding windows admission control
// checks at C3/C9 (spec.md §4.3: "per-user, per-device-fingerprint, per-IP").
type Dimensions struct {
	User   *Limiter
	Device *Limiter
	IP     *Limiter
}

// NewDimensions creates the three independent limiters sharing policy.
func NewDimensions(policy Policy) *Dimensions {
	return &Dimensions{
		User:   New(policy),
		Device: New(policy),
		IP:     New(policy),
	}
}

// Admit checks all three dimensions for (userID, deviceFP, ip) at now,
// stopping at the first rejection encountered.
func (d *Dimensions) Admit(userID, deviceFP, ip string, now time.Time) error {
	if err := d.User.Allow(userID, now); err != nil {
		return err
	}
	if deviceFP != "" {
		if err := d.Device.Allow(deviceFP, now); err != nil {
			return err
		}
	}
	if ip != "" {
		if err := d.IP.Allow(ip, now); err != nil {
			return err
		}
	}
	return nil
}

// Close stops all three limiters' cleanup loops.
func (d *Dimensions) Close() {
	d.User.Close()
	d.Device.Close()
	d.IP.Close()
}
