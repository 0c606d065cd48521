package store

import (
	"context"
	"sync"
	"time"

	"github.com/rawblock/authcore/internal/errs"
	"github.com/rawblock/authcore/pkg/models"
)

// MemoryCache is the local secure-store/cache leg of C8's two-step
// persistence and the C7 cache-strategy target. Grounded on the teacher's
// idle-bucket-cleanup idiom: a mutex-guarded map with a background ticker
// evicting entries whose ExpiresAt has passed.
type MemoryCache struct {
	cleanupInterval time.Duration

	mu      sync.RWMutex
	records map[string]models.EnrollmentRecord
	stop    chan struct{}
}

// DefaultCleanupInterval matches the cadence other background loops in this
// repo use for idle-entry eviction.
const DefaultCleanupInterval = 10 * time.Minute

// NewMemoryCache creates an empty MemoryCache and starts its cleanup loop.
func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{
		cleanupInterval: DefaultCleanupInterval,
		records:         make(map[string]models.EnrollmentRecord),
		stop:            make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Save stores or overwrites rec, keyed by UserID.
func (c *MemoryCache) Save(ctx context.Context, rec models.EnrollmentRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[rec.UserID] = rec
	return nil
}

// Load returns the cached record for userID, or NotFound if absent or
// expired.
func (c *MemoryCache) Load(ctx context.Context, userID string) (*models.EnrollmentRecord, error) {
	c.mu.RLock()
	rec, ok := c.records[userID]
	c.mu.RUnlock()
	if !ok {
		return nil, errs.New(errs.NotFound, "store: no cached enrollment for user")
	}
	if !rec.ExpiresAt.IsZero() && time.Now().After(rec.ExpiresAt) {
		c.Delete(ctx, userID)
		return nil, errs.New(errs.NotFound, "store: cached enrollment expired")
	}
	return &rec, nil
}

// Delete removes userID's cached record. Idempotent.
func (c *MemoryCache) Delete(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, userID)
	return nil
}

// Close stops the background cleanup loop.
func (c *MemoryCache) Close() {
	close(c.stop)
}

func (c *MemoryCache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for id, rec := range c.records {
				if !rec.ExpiresAt.IsZero() && now.After(rec.ExpiresAt) {
					delete(c.records, id)
				}
			}
			c.mu.Unlock()
		}
	}
}
