// Package cyerr defines the error taxonomy shared across cyroid's
// components: validation, authorization, not-found, conflict, transient
// runtime, and unrecoverable runtime failures.
package cyerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of propagation (spec §7):
// whether it should be journaled, what status it surfaces as, and
// whether the owning entity should move to an Error state.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindForbidden     Kind = "forbidden"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindTransient     Kind = "transient"
	KindUnrecoverable Kind = "unrecoverable"
)

// Error is a kind-tagged error that wraps an underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation reports a malformed request: bad CIDR, duplicate hostname,
// illegal state transition, and the like. Never journaled.
func Validation(format string, args ...any) *Error {
	return newf(KindValidation, format, args...)
}

// Forbidden reports an authorization failure. Never journaled.
func Forbidden(format string, args ...any) *Error {
	return newf(KindForbidden, format, args...)
}

// NotFound reports a missing referenced entity.
func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

// Conflict reports a collision: duplicate subnet, in-flight cache key,
// already-existing tag.
func Conflict(format string, args ...any) *Error {
	return newf(KindConflict, format, args...)
}

// Transient wraps a recoverable runtime failure (engine unreachable, HTTP
// timeout). The caller is expected to move the owning entity to Error and
// journal the cause, not retry automatically.
func Transient(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindTransient, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Unrecoverable wraps a failure that requires operator intervention
// (commit failure, irrecoverable PTY error).
func Unrecoverable(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindUnrecoverable, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err (or anything it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind of err, defaulting to KindUnrecoverable for
// errors that never passed through this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnrecoverable
}
