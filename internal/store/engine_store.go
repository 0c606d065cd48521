package store

import (
	"context"
	"encoding/hex"

	"github.com/rawblock/authcore/internal/integration"
	"github.com/rawblock/authcore/internal/remoteapi"
	"github.com/rawblock/authcore/pkg/models"
)

// EngineBackedStore is the "durable store" leg of C7's
// "C7 -> {cache, durable store}" dispatch: remoteapi.Client is the remote
// durable backend, MemoryCache is the engine's own fallback cache, and
// integration.Engine reconciles the two under retry, the circuit breaker,
// and the configured fallback strategy. It implements the same Store
// interface as Postgres so enroll/verify can hold it as their "durable"
// leg without knowing it is actually a remote HTTP backend underneath.
type EngineBackedStore struct {
	engine *integration.Engine
	remote *remoteapi.Client
	cache  *MemoryCache
}

// NewEngineBackedStore builds an EngineBackedStore.
func NewEngineBackedStore(engine *integration.Engine, remote *remoteapi.Client, cache *MemoryCache) *EngineBackedStore {
	return &EngineBackedStore{engine: engine, remote: remote, cache: cache}
}

// Save persists rec to the remote backend, then writes through to the local
// cache on success. Unlike Load, this does not route through Engine.Call:
// that dispatch models a cacheable read with a stale-data fallback, and a
// write has no sensible "fall back to the old cached value" behavior on
// failure. The breaker and retry still protect the remote call itself.
func (s *EngineBackedStore) Save(ctx context.Context, rec models.EnrollmentRecord) error {
	if _, err := s.remote.Persist(ctx, toPersistRequest(rec)); err != nil {
		return err
	}
	return s.cache.Save(ctx, rec)
}

// Load fetches rec through the engine: the remote Fetch is the API leg, the
// local cache is the fallback leg, reconciled per the engine's configured
// strategy (API_FIRST_CACHE_FALLBACK by default).
func (s *EngineBackedStore) Load(ctx context.Context, userID string) (*models.EnrollmentRecord, error) {
	v, err := s.engine.Call(ctx,
		func(ctx context.Context) (any, error) {
			req, err := s.remote.Fetch(ctx, userID)
			if err != nil {
				return nil, err
			}
			return fromPersistRequest(*req), nil
		},
		func(ctx context.Context) (any, error) {
			return s.cache.Load(ctx, userID)
		},
		func(ctx context.Context, value any) error {
			rec, ok := value.(*models.EnrollmentRecord)
			if !ok || rec == nil {
				return nil
			}
			return s.cache.Save(ctx, *rec)
		},
	)
	if err != nil {
		return nil, err
	}
	rec, ok := v.(*models.EnrollmentRecord)
	if !ok || rec == nil {
		return nil, nil
	}
	return rec, nil
}

// Delete removes rec from the remote backend and the local cache.
func (s *EngineBackedStore) Delete(ctx context.Context, userID string) error {
	if err := s.remote.Delete(ctx, userID); err != nil {
		return err
	}
	return s.cache.Delete(ctx, userID)
}

// toPersistRequest projects an EnrollmentRecord onto the remote wire shape.
// Digests are hex-encoded; the remote backend only ever sees encoded bytes,
// never raw digest material out of band of this transport. Nonce and
// Timestamp are intentionally left zero here: Client.Persist stamps a fresh
// nonce/timestamp pair on every call, immediately before the request goes
// out, so a record can never be persisted twice under the same nonce.
func toPersistRequest(rec models.EnrollmentRecord) remoteapi.PersistRequest {
	digests := make(map[string]string, len(rec.Digests))
	for kind, d := range rec.Digests {
		digests[kind.String()] = hex.EncodeToString(d[:])
	}
	return remoteapi.PersistRequest{
		UserID:      rec.UserID,
		Alias:       rec.Alias,
		Digests:     digests,
		GDPRConsent: rec.Consent.AllGranted(),
	}
}

// fromPersistRequest reconstructs an EnrollmentRecord from the remote wire
// shape. CreatedAt/ExpiresAt are not part of the remote payload (the remote
// backend is a pure digest store, not the system of record for enrollment
// metadata) so the cache copy carries zero-value timestamps; callers that
// need fresh timestamps read them from the local secure store instead.
func fromPersistRequest(req remoteapi.PersistRequest) *models.EnrollmentRecord {
	digests := make(map[models.FactorKind]models.FactorDigest, len(req.Digests))
	for name, encoded := range req.Digests {
		kind, ok := models.ParseFactorKind(name)
		if !ok {
			continue
		}
		raw, err := hex.DecodeString(encoded)
		if err != nil || len(raw) != models.DigestSize {
			continue
		}
		var d models.FactorDigest
		copy(d[:], raw)
		digests[kind] = d
	}
	consent := models.Consent{}
	if req.GDPRConsent {
		consent = models.Consent{Terms: true, Privacy: true, Processing: true}
	}
	return &models.EnrollmentRecord{
		UserID:  req.UserID,
		Alias:   req.Alias,
		Digests: digests,
		Consent: consent,
	}
}
