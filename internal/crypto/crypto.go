// Package crypto provides the cryptographic primitives the authentication
// core is built on: hashing, keyed hashing, key derivation, CSPRNG bytes,
// constant-time comparison, and secure buffer wiping. Nothing in this
// package allocates more than it has to and nothing here ever falls back to
// a non-cryptographic RNG.
package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// DigestSize is the length in bytes of every factor digest and commitment
// produced by this package.
const DigestSize = 32

// MinPBKDF2Iterations is the floor below which PBKDF2 refuses to run.
const MinPBKDF2Iterations = 100_000

// ErrInvalidParameter is returned by PBKDF2SHA256 when iters or outLen are
// out of range. It is the only error PBKDF2SHA256 returns.
var ErrInvalidParameter = errors.New("crypto: invalid parameter")

// SHA256 returns the SHA-256 digest of b.
func SHA256(b []byte) [DigestSize]byte {
	return sha256.Sum256(b)
}

// HMACSHA256 returns HMAC-SHA256(key, data).
func HMACSHA256(key, data []byte) [DigestSize]byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	var out [DigestSize]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// PBKDF2SHA256 derives outLen bytes from password and salt using
// PBKDF2-HMAC-SHA256. iters must be at least MinPBKDF2Iterations and outLen
// must be positive; anything else is ValidationError territory upstream, so
// this function simply reports ErrInvalidParameter and never silently
// weakens the derivation.
func PBKDF2SHA256(password, salt []byte, iters, outLen int) ([]byte, error) {
	if iters < MinPBKDF2Iterations {
		return nil, fmt.Errorf("%w: iters %d below minimum %d", ErrInvalidParameter, iters, MinPBKDF2Iterations)
	}
	if outLen <= 0 {
		return nil, fmt.Errorf("%w: outLen must be positive", ErrInvalidParameter)
	}
	return pbkdf2.Key(password, salt, iters, outLen, sha256.New), nil
}

// CSPRNGBytes returns n bytes read from the platform CSPRNG. It never falls
// back to math/rand: a read failure is a hard error, not a degraded mode.
func CSPRNGBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("crypto: csprng read failed: %w", err)
	}
	return b, nil
}

// ConstantTimeEqual reports whether a and b are equal, in time independent
// of where they first differ. The only data-dependent branch is the
// length check, which cannot leak anything about digest content.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Wipe overwrites b with zeroes. It copies a zero buffer over b with
// subtle.ConstantTimeCopy rather than assigning zeroes directly, so the
// store is not a plain "assign zero then never read" loop that aggressive
// inlining could eliminate as dead code.
func Wipe(b []byte) {
	zero := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zero)
}

// UUIDv4 returns a random RFC 4122 version-4 UUID in canonical hyphenated
// hex form, generated from 16 CSPRNG bytes.
func UUIDv4() (string, error) {
	b, err := CSPRNGBytes(16)
	if err != nil {
		return "", err
	}
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // RFC 4122 variant
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16]), nil
}
