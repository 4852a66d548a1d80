package ir

import (
	"errors"
	"fmt"
)

// Error represents a failure in one reconciliation cycle.
//
// Error kinds:
//   - Transport: network/HTTP failure, retried within a cycle
//   - Shape: unparseable or ambiguous snapshot, candidate discarded whole
//   - Guard rejection: sanity/coherence check failed
//   - Monotonic violation: a single field's commit was vetoed
//
// None of these is fatal to the process. The poll loop logs and carries on.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Reason is a short machine-friendly tag (guard check name, field name).
	Reason string

	// Source names the adapter or table involved, if any.
	Source string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes cycle errors.
type ErrorCode string

const (
	// ErrCodeTransport indicates a network or HTTP failure.
	ErrCodeTransport ErrorCode = "TRANSPORT"

	// ErrCodeShape indicates an unparseable or ambiguous snapshot.
	ErrCodeShape ErrorCode = "SHAPE"

	// ErrCodeGuardRejected indicates the candidate failed a consistency check.
	ErrCodeGuardRejected ErrorCode = "GUARD_REJECTED"

	// ErrCodeMonotonicViolation indicates a backward transition was vetoed.
	ErrCodeMonotonicViolation ErrorCode = "MONOTONIC_VIOLATION"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Reason != "" {
		msg += fmt.Sprintf(" (reason=%s)", e.Reason)
	}
	if e.Source != "" {
		msg += fmt.Sprintf(" (source=%s)", e.Source)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewTransportError wraps a network or HTTP failure.
func NewTransportError(source, message string, err error) *Error {
	return &Error{Code: ErrCodeTransport, Message: message, Source: source, Err: err}
}

// NewShapeError reports a snapshot that cannot be ingested.
func NewShapeError(source, message string) *Error {
	return &Error{Code: ErrCodeShape, Message: message, Source: source}
}

// NewGuardRejection reports a failed consistency check.
func NewGuardRejection(reason, message string) *Error {
	return &Error{Code: ErrCodeGuardRejected, Message: message, Reason: reason}
}

// NewMonotonicViolation reports a vetoed backward transition of field.
func NewMonotonicViolation(field string, committed, candidate int64) *Error {
	return &Error{
		Code:    ErrCodeMonotonicViolation,
		Message: fmt.Sprintf("%s would regress from %d to %d", field, committed, candidate),
		Reason:  field,
	}
}

// CodeOf returns the error code, or "" if err is not an *Error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ReasonOf returns the reason tag, or "" if err is not an *Error.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// IsTransportError returns true if the error is a transport failure.
func IsTransportError(err error) bool {
	return CodeOf(err) == ErrCodeTransport
}

// IsShapeError returns true if the error is a shape failure.
func IsShapeError(err error) bool {
	return CodeOf(err) == ErrCodeShape
}

// IsGuardRejection returns true if the error is a guard rejection.
func IsGuardRejection(err error) bool {
	return CodeOf(err) == ErrCodeGuardRejected
}

// IsMonotonicViolation returns true if the error is a vetoed regression.
func IsMonotonicViolation(err error) bool {
	return CodeOf(err) == ErrCodeMonotonicViolation
}
