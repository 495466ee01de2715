// Package derrors provides coded domain errors. Services return these so
// transport layers can translate business failures to HTTP statuses without
// string matching. Infrastructure facts (not found, conflict, unavailable)
// live in pkg/platform/sentinel; this package is for errors that carry a
// caller-facing classification.
package derrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error.
type Code string

const (
	// CodeBadRequest marks malformed or missing caller input.
	CodeBadRequest Code = "bad_request"
	// CodeUnknownPrefix marks a scan whose terminal prefix maps to no location.
	CodeUnknownPrefix Code = "unknown_prefix"
	// CodeUnknownResident marks a scan for an unregistered MDOC under the
	// reject policy.
	CodeUnknownResident Code = "unknown_resident"
	// CodeNotFound marks a missing entity on a read path.
	CodeNotFound Code = "not_found"
	// CodeConflict marks a state conflict that the caller may resolve.
	CodeConflict Code = "conflict"
	// CodeUnavailable marks a transient infrastructure fault. The write, if
	// any, did not happen; the caller decides whether to retry.
	CodeUnavailable Code = "unavailable"
	// CodeInternal marks an unexpected failure.
	CodeInternal Code = "internal"
)

// Error is a domain error with a classification code.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is/As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from an error chain, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the HTTP status transport layers should emit.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnknownPrefix, CodeNotFound:
		return http.StatusNotFound
	case CodeUnknownResident:
		return http.StatusUnprocessableEntity
	case CodeConflict:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
