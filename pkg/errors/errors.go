// Package errors provides the structured error taxonomy for quarry.
//
// Resolution is batch-oriented: per-item failures are collected, not thrown,
// so that partial successes stay usable. This package defines the per-item
// error kinds (not-found, transfer, checksum, version resolution, collect)
// and the aggregate error raised after a batch completes.
//
// Error codes are machine-readable and stable; messages are for humans.
// Codes also drive the negative-result cache: only NOT_FOUND and
// TRANSFER_ERROR are cacheable, and offline violations never are.
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for the resolution taxonomy.
const (
	// ErrCodeNotFound: the item is absent from every consulted repository.
	// Cacheable as a negative result.
	ErrCodeNotFound Code = "NOT_FOUND"

	// ErrCodeTransfer: connectivity, authentication or corruption during
	// transfer. Cacheable separately from NOT_FOUND.
	ErrCodeTransfer Code = "TRANSFER_ERROR"

	// ErrCodeChecksum: content integrity mismatch, escalation gated by the
	// checksum policy.
	ErrCodeChecksum Code = "CHECKSUM_FAILURE"

	// ErrCodeVersionResolution: a meta-version had no resolution candidate.
	ErrCodeVersionResolution Code = "VERSION_RESOLUTION_FAILURE"

	// ErrCodeRangeResolution: a range was unparsable or, where a concrete
	// version was required, matched nothing.
	ErrCodeRangeResolution Code = "RANGE_RESOLUTION_FAILURE"

	// ErrCodeCollect: non-fatal failure reading a dependency's own
	// descriptor during graph collection.
	ErrCodeCollect Code = "COLLECT_ERROR"

	// ErrCodeOffline: a remote repository was needed while the session is
	// offline. Session state, not resource state: never cached.
	ErrCodeOffline Code = "OFFLINE"

	// ErrCodeCancelled: a transfer was cancelled by its listener.
	ErrCodeCancelled Code = "CANCELLED"

	// ErrCodeInvalidConfig: unrecognized policy or option value.
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"

	// ErrCodeInternal: unexpected internal failure.
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err carries the given error code anywhere in its chain.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error chain holds no *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Cacheable reports whether the error may be recorded as a negative result
// in the local repository's staleness cache.
func Cacheable(err error) bool {
	switch GetCode(err) {
	case ErrCodeNotFound, ErrCodeTransfer:
		return true
	default:
		return false
	}
}
