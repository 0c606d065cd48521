// Package enroll implements the enrollment orchestrator (spec.md §4.8,
// component C8): enroll, retrieve_kinds, update, delete, export. This is
// the UI-facing entry point for C2 (factor processors) and C7 (the
// integration engine's persistence leg), grounded on the teacher's
// top-level session-orchestration flow in cmd/engine/main.go's request
// handling, generalized from a single coordinator loop into a named
// sequence of admission -> validate -> rate-limit -> process -> persist
// steps.
package enroll

import (
	"context"
	"time"

	"github.com/rawblock/authcore/internal/attestation"
	"github.com/rawblock/authcore/internal/crypto"
	"github.com/rawblock/authcore/internal/errs"
	"github.com/rawblock/authcore/internal/factors"
	"github.com/rawblock/authcore/internal/obslog"
	"github.com/rawblock/authcore/internal/ratelimit"
	"github.com/rawblock/authcore/pkg/models"
)

// FactorSubmission is one selected factor's raw, unprocessed input plus
// the kind it should be dispatched as.
type FactorSubmission struct {
	Kind  models.FactorKind
	Input any
}

// EnrollRequest carries everything needed to run the enroll algorithm.
type EnrollRequest struct {
	Alias             string
	Factors           []FactorSubmission
	Consent           models.Consent
	AttestationKind   string
	DeviceFingerprint string
	IP                string
}

// EnrollSuccess is returned on a completed enrollment (spec.md §4.8 step 8).
type EnrollSuccess struct {
	UserID    string
	Alias     string
	ExpiresAt time.Time
}

// Orchestrator wires together admission, validation, rate limiting, factor
// processing and two-store persistence with reverse-order compensation.
type Orchestrator struct {
	attester attestation.Provider
	limiter  *ratelimit.Limiter
	local    Store
	durable  Store
	cacheTTL time.Duration
	log      *obslog.Logger
}

// Store is the minimal persistence contract C8 needs from each leg
// (local secure store, remote durable store). internal/store's Postgres
// and MemoryCache both satisfy it.
type Store interface {
	Save(ctx context.Context, rec models.EnrollmentRecord) error
	Load(ctx context.Context, userID string) (*models.EnrollmentRecord, error)
	Delete(ctx context.Context, userID string) error
}

// DefaultCacheTTL matches the spec's enrollment_cache_ttl_ms default (24h).
const DefaultCacheTTL = 24 * time.Hour

// NewOrchestrator constructs an Orchestrator. local is written first and
// compensated first; durable is written second (spec.md §4.8 step 6).
func NewOrchestrator(attester attestation.Provider, limiter *ratelimit.Limiter, local, durable Store) *Orchestrator {
	return &Orchestrator{
		attester: attester,
		limiter:  limiter,
		local:    local,
		durable:  durable,
		cacheTTL: DefaultCacheTTL,
		log:      obslog.New("enroll"),
	}
}

// Enroll runs the full enroll algorithm (spec.md §4.8) under a freshly
// generated user_id.
func (o *Orchestrator) Enroll(ctx context.Context, req EnrollRequest, now time.Time) (*EnrollSuccess, error) {
	return o.enrollAs(ctx, req, now, "")
}

// enrollAs runs the enroll algorithm, persisting the record under userID,
// or under a freshly generated UUIDv4 when userID is empty.
func (o *Orchestrator) enrollAs(ctx context.Context, req EnrollRequest, now time.Time, userID string) (*EnrollSuccess, error) {
	// 1. Admission: platform attestation must be present and OK before any
	// other work happens.
	if o.attester != nil && req.AttestationKind != "" {
		att, err := o.attester.Attest(req.AttestationKind)
		if err != nil {
			return nil, errs.Wrap(errs.Auth, err, "enroll: attestation unavailable")
		}
		if !att.OK {
			return nil, errs.New(errs.Auth, "enroll: attestation failed, enrollment blocked")
		}
	}

	// 2. Validate the selection (cardinality, categories, pattern exclusion,
	// consent) from the submitted kinds alone, before rate limiting or any
	// factor processing.
	selection := models.EnrollmentRecord{Consent: req.Consent, Digests: make(map[models.FactorKind]models.FactorDigest, len(req.Factors))}
	for _, f := range req.Factors {
		selection.Digests[f.Kind] = models.FactorDigest{}
	}
	if err := selection.Validate(); err != nil {
		return nil, err
	}

	// 3. Rate-limit per key, ahead of any factor processing, so a flood is
	// rejected before any processor runs. The enrollment flow does not
	// yet have a user_id to key on at this point, so the caller supplies a
	// stable rate-limit key (device fingerprint) ahead of user_id
	// assignment.
	key := req.DeviceFingerprint
	if key == "" {
		key = req.IP
	}
	if o.limiter != nil {
		if err := o.limiter.Allow(key, now); err != nil {
			return nil, err
		}
	}

	// 4. Run every selected factor's processor and assemble the digest set;
	// the first processor failure aborts the enrollment.
	digests := make(map[models.FactorKind]models.FactorDigest, len(req.Factors))
	for _, f := range req.Factors {
		d, err := factors.Process(f.Kind, f.Input)
		if err != nil {
			return nil, err
		}
		digests[f.Kind] = d
	}

	if userID == "" {
		var err error
		userID, err = crypto.UUIDv4()
		if err != nil {
			return nil, errs.Wrap(errs.Internal, err, "enroll: failed to generate user id")
		}
	}

	rec := models.EnrollmentRecord{
		UserID:    userID,
		Alias:     req.Alias,
		Digests:   digests,
		Consent:   req.Consent,
		CreatedAt: now,
		ExpiresAt: now.Add(o.cacheTTL),
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	// 6. Persist in order: local secure store, then remote durable store.
	// Compensate in reverse order on a later failure.
	if err := o.local.Save(ctx, rec); err != nil {
		return nil, errs.Wrap(errs.Internal, err, "enroll: local persistence failed")
	}
	if err := o.durable.Save(ctx, rec); err != nil {
		if derr := o.local.Delete(ctx, userID); derr != nil {
			o.log.Error("enroll: compensation failed, record partially persisted for user %s: %v", userID, derr)
			return nil, errs.Wrap(errs.PartiallyPersisted, err, "enroll: durable persistence failed and local compensation failed")
		}
		return nil, errs.Wrap(errs.Internal, err, "enroll: durable persistence failed, local compensated")
	}

	o.log.Printf("enrolled user=%s factors=%d", userID, len(digests))
	return &EnrollSuccess{UserID: userID, Alias: rec.Alias, ExpiresAt: rec.ExpiresAt}, nil
}

// RetrieveKinds returns the enrolled FactorKinds for userID, never digests
// (spec.md §4.8 "Export").
func (o *Orchestrator) RetrieveKinds(ctx context.Context, userID string) ([]models.FactorKind, error) {
	rec, err := o.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return rec.FactorKinds(), nil
}

// Export returns enrolled FactorKinds and non-sensitive metadata.
func (o *Orchestrator) Export(ctx context.Context, userID string) (*ExportView, error) {
	rec, err := o.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ExportView{
		UserID:    rec.UserID,
		Alias:     rec.Alias,
		Kinds:     rec.FactorKinds(),
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// ExportView is the non-sensitive projection of an EnrollmentRecord
// returned to callers. It never carries a digest.
type ExportView struct {
	UserID    string
	Alias     string
	Kinds     []models.FactorKind
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Update deletes and re-enrolls under the same user_id, atomically at the
// orchestrator boundary: if the re-enroll fails, the prior record is
// restored (spec.md §4.8 "Update").
func (o *Orchestrator) Update(ctx context.Context, userID string, req EnrollRequest, now time.Time) (*EnrollSuccess, error) {
	prior, err := o.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := o.Delete(ctx, userID); err != nil {
		return nil, err
	}

	result, err := o.enrollAs(ctx, req, now, userID)
	if err != nil {
		// restore the prior record rather than leaving the user
		// unenrolled after a failed update.
		if rerr := o.local.Save(ctx, *prior); rerr != nil {
			o.log.Error("update: failed to restore prior record for user %s: %v", userID, rerr)
		}
		if rerr := o.durable.Save(ctx, *prior); rerr != nil {
			o.log.Error("update: failed to restore prior durable record for user %s: %v", userID, rerr)
		}
		return nil, err
	}
	return result, nil
}

// Delete removes cache and durable copies; idempotent (spec.md §4.8
// "Delete"). NotFound from either leg is not an error.
func (o *Orchestrator) Delete(ctx context.Context, userID string) error {
	if err := o.local.Delete(ctx, userID); err != nil && errs.KindOf(err) != errs.NotFound {
		return errs.Wrap(errs.Internal, err, "delete: local store failed")
	}
	if err := o.durable.Delete(ctx, userID); err != nil && errs.KindOf(err) != errs.NotFound {
		return errs.Wrap(errs.Internal, err, "delete: durable store failed")
	}
	return nil
}

// load tries the local (fast) store first, falling back to durable, and
// writes a durable hit back to the local store.
func (o *Orchestrator) load(ctx context.Context, userID string) (*models.EnrollmentRecord, error) {
	rec, err := o.local.Load(ctx, userID)
	if err == nil {
		return rec, nil
	}
	if errs.KindOf(err) != errs.NotFound {
		o.log.Warn("local load failed for user %s: %v", userID, err)
	}
	rec, err = o.durable.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if werr := o.local.Save(ctx, *rec); werr != nil {
		o.log.Warn("cache write-back failed for user %s: %v", userID, werr)
	}
	return rec, nil
}
