// Package errs defines the error taxonomy shared by every component in the
// authentication core (spec §7). Callers switch on Kind to decide
// retryability; nothing downstream needs to parse error strings.
package errs

import (
	"errors"
	"fmt"
	"time"
)

// Kind is a closed taxonomy of failure categories. New kinds are not added
// lightly — every call site that retries or maps errors to HTTP status
// switches exhaustively over this set.
type Kind int

const (
	// Validation marks bad input or a failed invariant. Never retried.
	Validation Kind = iota
	// Auth marks an attestation/admission failure. Never retried.
	Auth
	// RateLimited carries RetryAfter; the caller decides whether to wait.
	RateLimited
	// NotFound marks an absent record. Deletes treat this as success.
	NotFound
	// Conflict marks a nonce replay or duplicate operation. Never retried.
	Conflict
	// Unavailable marks a transient upstream failure. Retryable, counts
	// toward the circuit breaker.
	Unavailable
	// Timeout marks an upstream call that exceeded its deadline. Retryable,
	// counts toward the circuit breaker.
	Timeout
	// BreakerOpen marks a fast-failed call while the breaker is OPEN.
	// Never retried directly; triggers fallback per strategy instead.
	BreakerOpen
	// Internal is the catch-all. Logged, never retried.
	Internal
	// PartiallyPersisted marks an enrollment whose compensating delete
	// failed after a later persistence step failed. Surfaced only to the
	// operator audit channel, never to the end user.
	PartiallyPersisted
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "VALIDATION"
	case Auth:
		return "AUTH"
	case RateLimited:
		return "RATE_LIMITED"
	case NotFound:
		return "NOT_FOUND"
	case Conflict:
		return "CONFLICT"
	case Unavailable:
		return "UNAVAILABLE"
	case Timeout:
		return "TIMEOUT"
	case BreakerOpen:
		return "BREAKER_OPEN"
	case Internal:
		return "INTERNAL"
	case PartiallyPersisted:
		return "PARTIALLY_PERSISTED"
	default:
		return "UNKNOWN"
	}
}

// Error is the single error type every component returns. Field is set
// only for Validation errors, naming the offending input.
type Error struct {
	Kind       Kind
	Message    string
	Field      string
	RetryAfter time.Duration
	cause      error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Kind, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Validationf builds a Validation error naming the offending field.
func Validationf(field, format string, args ...any) *Error {
	return &Error{Kind: Validation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// RateLimitedAfter builds a RateLimited error carrying a retry delay.
func RateLimitedAfter(d time.Duration) *Error {
	return &Error{Kind: RateLimited, Message: "rate limit exceeded", RetryAfter: d}
}

// Is reports whether err has the given kind, following wrapped errors.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to Internal for errors not
// produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Retryable reports whether an error of this kind is retried with
// exponential backoff. Only Unavailable and Timeout are; everything else —
// including validation, auth, conflict and breaker-open — is not (spec
// §4.7, §7). RateLimited is not Retryable either: C7's retry loop retries
// it separately, waiting for its RetryAfter.
func Retryable(err error) bool {
	switch KindOf(err) {
	case Unavailable, Timeout:
		return true
	default:
		return false
	}
}
