package ratelimit

import (
	"testing"
	"time"

	"github.com/rawblock/authcore/internal/errs"
)

func TestAllowWithinPolicy(t *testing.T) {
	l := New(Policy{MaxEvents: 3, Window: time.Minute})
	defer l.Close()

	now := time.Unix(0, 0)
	for i := 0; i < 3; i++ {
		if err := l.Allow("user1", now); err != nil {
			t.Fatalf("event %d: unexpected error: %v", i, err)
		}
	}
}

func TestRejectsOverPolicy(t *testing.T) {
	l := New(Policy{MaxEvents: 2, Window: time.Minute})
	defer l.Close()

	now := time.Unix(0, 0)
	if err := l.Allow("user1", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Allow("user1", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := l.Allow("user1", now)
	if err == nil {
		t.Fatalf("expected rate limit rejection on third event")
	}
	if errs.KindOf(err) != errs.RateLimited {
		t.Fatalf("expected RateLimited kind, got %v", errs.KindOf(err))
	}
}

func TestWindowSlidesOverTime(t *testing.T) {
	l := New(Policy{MaxEvents: 1, Window: time.Minute})
	defer l.Close()

	t0 := time.Unix(0, 0)
	if err := l.Allow("user1", t0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Allow("user1", t0.Add(30*time.Second)); err == nil {
		t.Fatalf("expected rejection within the same window")
	}
	if err := l.Allow("user1", t0.Add(61*time.Second)); err != nil {
		t.Fatalf("expected admission once the window has slid past the first event: %v", err)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l := New(Policy{MaxEvents: 1, Window: time.Minute})
	defer l.Close()

	now := time.Unix(0, 0)
	if err := l.Allow("user1", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Allow("user2", now); err != nil {
		t.Fatalf("expected a different key to have its own independent window: %v", err)
	}
}

func TestDimensionsAdmitChecksAllThree(t *testing.T) {
	d := NewDimensions(Policy{MaxEvents: 1, Window: time.Minute})
	defer d.Close()

	now := time.Unix(0, 0)
	if err := d.Admit("user1", "device1", "1.2.3.4", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Same device, different user and IP: still rejected because the device
	// dimension is shared.
	if err := d.Admit("user2", "device1", "5.6.7.8", now); err == nil {
		t.Fatalf("expected rejection when the device dimension is exhausted")
	}
}
