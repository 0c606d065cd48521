package models

import "time"

// ProofEnvelopeVersion is bumped if the commitment layout ever changes.
const ProofEnvelopeVersion = 1

// ProofEnvelope is the placeholder commitment the system emits in place of
// a future zero-knowledge proof (spec.md §4.6, §9 open question 2).
// Callers must treat it as opaque — it carries no semantics beyond "this
// commitment binds this session's factor digests".
type ProofEnvelope struct {
	Commitment [DigestSize]byte `json:"commitment"`
	Version    int              `json:"version"`
	SessionID  string           `json:"session_id"`
	Timestamp  time.Time        `json:"timestamp"`
}
