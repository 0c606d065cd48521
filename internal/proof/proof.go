// Package proof implements the proof emitter (C6): assembles the opaque
// commitment verification success carries forward, given the factors a
// session actually verified (spec.md §4.6).
package proof

import (
	"sort"
	"time"

	"github.com/rawblock/authcore/internal/crypto"
	"github.com/rawblock/authcore/pkg/models"
)

// Emit builds a ProofEnvelope for userID from the digests a verification
// session collected. The commitment is
// sha256(user_id || for k in sort(keys): k_name || digest_k), matching
// spec.md §4.6 exactly; key ordering is sorted so the commitment is
// independent of submission order.
func Emit(userID, sessionID string, digests map[models.FactorKind]models.FactorDigest, now time.Time) models.ProofEnvelope {
	kinds := make([]models.FactorKind, 0, len(digests))
	for k := range digests {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i].String() < kinds[j].String() })

	buf := []byte(userID)
	for _, k := range kinds {
		buf = append(buf, []byte(k.String())...)
		d := digests[k]
		buf = append(buf, d[:]...)
	}

	return models.ProofEnvelope{
		Commitment: crypto.SHA256(buf),
		Version:    models.ProofEnvelopeVersion,
		SessionID:  sessionID,
		Timestamp:  now,
	}
}
