// Package compare implements the verification-time digest comparator (C4):
// constant-time equality for exact-match factors, and constant-time
// any-of-candidate-set matching for the two fuzzy factors, IMAGE_TAP and
// BALANCE.
package compare

import (
	"github.com/rawblock/authcore/internal/crypto"
	"github.com/rawblock/authcore/pkg/models"
)

// Exact runs a full constant-time comparison of a submitted digest against
// the enrolled digest. submitted is wiped on exit regardless of outcome
// (spec.md §4.4).
func Exact(submitted *[models.DigestSize]byte, stored *[models.DigestSize]byte) bool {
	defer crypto.Wipe(submitted[:])
	return crypto.ConstantTimeEqual(submitted[:], stored[:])
}

// AnyMatch compares submitted against every candidate digest, running every
// comparison to completion regardless of whether an earlier candidate
// already matched, so the loop's timing does not leak which candidate (or
// whether any) matched. submitted is wiped on exit.
//
// Used for IMAGE_TAP and BALANCE: the enrollment processor derives one
// canonical digest, but the verification-time candidate set additionally
// includes digests for neighboring grid buckets (IMAGE_TAP) or small
// variance perturbations (BALANCE), built by the caller from the same
// enrollment policy (spec.md §4.4 "fuzzy" note).
func AnyMatch(submitted *[models.DigestSize]byte, candidates [][models.DigestSize]byte) bool {
	defer crypto.Wipe(submitted[:])
	matched := false
	for _, c := range candidates {
		if crypto.ConstantTimeEqual(submitted[:], c[:]) {
			matched = true
		}
	}
	return matched
}

// IsFuzzy reports whether kind uses AnyMatch-style candidate-set comparison
// rather than a plain Exact comparison (spec.md §4.2 and §4.4).
func IsFuzzy(kind models.FactorKind) bool {
	return kind == models.FactorImageTap || kind == models.FactorBalance
}
