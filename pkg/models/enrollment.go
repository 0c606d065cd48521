package models

import (
	"time"

	"github.com/rawblock/authcore/internal/errs"
)

// MinFactors and MaxFactors bound the cardinality of an enrollment's digest
// set (spec.md §3, §6 defaults).
const (
	MinFactors    = 6
	MaxFactors    = 10
	MinCategories = 2
)

// Consent records the three GDPR consent flags. All three must be true for
// an EnrollmentRecord to be valid.
type Consent struct {
	Terms      bool `json:"terms"`
	Privacy    bool `json:"privacy"`
	Processing bool `json:"processing"`
}

// AllGranted reports whether every consent flag is true.
func (c Consent) AllGranted() bool {
	return c.Terms && c.Privacy && c.Processing
}

// EnrollmentRecord is the durable record of a user's enrolled factors.
// Digests never leave the persistence boundary once stored; only
// commitment proofs do.
type EnrollmentRecord struct {
	UserID    string                  `json:"user_id"`
	Alias     string                  `json:"alias,omitempty"`
	Digests   map[FactorKind]FactorDigest `json:"-"`
	Consent   Consent                 `json:"consent"`
	CreatedAt time.Time               `json:"created_at"`
	ExpiresAt time.Time               `json:"expires_at"` // cache copy TTL, CreatedAt+24h
}

// Validate checks the PSD3 SCA invariants from spec.md §3: cardinality in
// [MinFactors,MaxFactors], at least MinCategories distinct categories, all
// consent flags granted, every digest exactly DigestSize bytes (guaranteed
// by the FactorDigest type), no duplicate kinds (guaranteed by the map),
// and at most one of PATTERN_NORMAL/PATTERN_MICRO.
func (r *EnrollmentRecord) Validate() error {
	n := len(r.Digests)
	if n < MinFactors || n > MaxFactors {
		return errs.Validationf("digests", "enrollment must have between %d and %d factors, got %d", MinFactors, MaxFactors, n)
	}
	if !r.Consent.AllGranted() {
		return errs.Validationf("consent", "all consent flags (terms, privacy, processing) must be granted")
	}
	if _, hasNormal := r.Digests[FactorPatternNormal]; hasNormal {
		if _, hasMicro := r.Digests[FactorPatternMicro]; hasMicro {
			return errs.Validationf("digests", "at most one of PATTERN_NORMAL/PATTERN_MICRO may be selected")
		}
	}
	categories := map[Category]bool{}
	for kind := range r.Digests {
		cat, ok := kind.Category()
		if !ok {
			return errs.Validationf("digests", "unknown factor kind %v", kind)
		}
		categories[cat] = true
	}
	if len(categories) < MinCategories {
		return errs.Validationf("digests", "enrollment must span at least %d categories, got %d", MinCategories, len(categories))
	}
	return nil
}

// FactorKinds returns the enrolled factor kinds in their natural
// enumeration order.
func (r *EnrollmentRecord) FactorKinds() []FactorKind {
	out := make([]FactorKind, 0, len(r.Digests))
	for _, k := range AllFactorKinds {
		if _, ok := r.Digests[k]; ok {
			out = append(out, k)
		}
	}
	return out
}
