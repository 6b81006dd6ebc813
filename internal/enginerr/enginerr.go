// Package enginerr defines the typed error taxonomy shared across the
// indexing engine. Every component that can fail in a way a caller needs
// to branch on (not just log) returns an *Error with one of the Kinds
// below, following the propagation policy: per-record ingest failures are
// counted not raised, fanout failures are aggregated and classified, and
// metadata reconcile failures are logged but never abort a merge.
package enginerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure the way a caller is expected to branch on it.
type Kind string

const (
	// InvalidArgument indicates a malformed request, typically caught by a
	// command parser before it reaches the engine proper.
	InvalidArgument Kind = "invalid_argument"
	// NotFound indicates a missing schema, attribute, or metadata entry.
	NotFound Kind = "not_found"
	// AlreadyExists indicates a duplicate create (schema name collision).
	AlreadyExists Kind = "already_exists"
	// OutOfRange indicates a numeric parameter outside its accepted bounds.
	OutOfRange Kind = "out_of_range"
	// FailedPrecondition indicates a fingerprint/version/slot mismatch that
	// a retry may resolve once the cluster converges.
	FailedPrecondition Kind = "failed_precondition"
	// DeadlineExceeded indicates a query's cancellation deadline elapsed.
	DeadlineExceeded Kind = "deadline_exceeded"
	// Internal indicates a host capability call failed unexpectedly.
	Internal Kind = "internal"
	// OutOfMemory indicates a backfill pause triggered by host OOM signal.
	OutOfMemory Kind = "out_of_memory"
)

// Error is the engine's typed error. It wraps an underlying cause (if any)
// so callers can still use errors.Is/errors.As against it or the cause.
type Error struct {
	Cause error
	Msg   string
	Kind  Kind
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap constructs an *Error wrapping cause, or nil if cause is nil.
func Wrap(kind Kind, msg string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

// Is reports whether err is an *Error of the given Kind, unwrapping
// through any chain in between.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to Internal when err isn't
// an *Error — every unclassified failure from a host capability is treated
// as internal rather than silently swallowed.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if err == nil {
		return ""
	}
	return Internal
}
