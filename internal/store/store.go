// Package store implements the durable and cache persistence layers the
// enrollment orchestrator (C8) writes through via the C7 integration
// engine: a Postgres-backed durable store and an in-memory TTL cache.
package store

import (
	"context"

	"github.com/rawblock/authcore/pkg/models"
)

// Store is the persistence contract C8 depends on. Both the durable
// Postgres store and the in-memory cache implement it so the integration
// engine can dispatch to either uniformly.
type Store interface {
	Save(ctx context.Context, rec models.EnrollmentRecord) error
	Load(ctx context.Context, userID string) (*models.EnrollmentRecord, error)
	Delete(ctx context.Context, userID string) error
}
