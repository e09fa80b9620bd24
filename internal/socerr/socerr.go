// Package socerr defines the error taxonomy shared by the workflow core.
//
// Every operation exposed upward returns either a record or one of four
// error classes: validation (bad input), conflict (illegal state transition
// or a lost concurrent write), not found (missing entity, including
// entities owned by another tenant), and dependency unavailable (cache or
// store unreachable). Handlers map these onto transport status codes.
package socerr

import (
	"errors"
	"fmt"
)

// Code identifies the error class on the wire.
type Code string

const (
	CodeValidation  Code = "validation_error"
	CodeConflict    Code = "conflict"
	CodeNotFound    Code = "not_found"
	CodeUnavailable Code = "dependency_unavailable"
	CodeInternal    Code = "internal"
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.cause }

// Validation reports malformed caller input.
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a transition that is not legal from the current state,
// or a conditional write that lost to a concurrent caller.
func Conflict(format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing entity. Cross-tenant access reports the same
// code so callers cannot probe for another tenant's records.
func NotFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Unavailable wraps a cache or store failure.
func Unavailable(cause error, format string, args ...any) *Error {
	return &Error{Code: CodeUnavailable, Message: fmt.Sprintf(format, args...), cause: cause}
}

// CodeOf extracts the taxonomy code from err, or CodeInternal for
// anything outside the taxonomy.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return CodeOf(err) == CodeValidation }

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool { return CodeOf(err) == CodeConflict }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsUnavailable reports whether err is a dependency-unavailable error.
func IsUnavailable(err error) bool { return CodeOf(err) == CodeUnavailable }
