// Package domainerrors defines the coded error taxonomy shared by all
// certification services. Services create or wrap errors with a Code; the
// transport layer translates codes into HTTP statuses. No error in the core
// is retried automatically: every failure is deterministic for a given state
// and only becomes retryable after the underlying state changes.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error.
type Code string

const (
	CodeNotFound         Code = "not_found"
	CodeBadRequest       Code = "bad_request"
	CodeValidation       Code = "validation"
	CodeForbidden        Code = "forbidden"
	CodeInvalidState     Code = "invalid_state"
	CodeMissingEvidence  Code = "missing_evidence"
	CodeGateNotSatisfied Code = "gate_not_satisfied"
	CodeAlreadyIssued    Code = "already_issued"
	CodeConflict         Code = "conflict"
	CodeInternal         Code = "internal"
)

// Error is the concrete coded error type. Details carries machine-readable
// context such as the indicator ids blocking a stage gate.
type Error struct {
	Code    Code
	Message string
	Details []string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// WithDetails returns a copy of the error carrying extra detail strings.
func (e *Error) WithDetails(details ...string) *Error {
	clone := *e
	clone.Details = append(append([]string{}, e.Details...), details...)
	return &clone
}

// HasCode reports whether err or anything it wraps carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is a readability alias for HasCode used at call sites that branch on
// error codes.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the code from err, defaulting to CodeInternal for
// un-coded errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// DetailsOf extracts detail strings from err, if any.
func DetailsOf(err error) []string {
	var de *Error
	if errors.As(err, &de) {
		return de.Details
	}
	return nil
}

// ToHTTPStatus maps a domain code onto an HTTP status for the transport
// layer. Unknown codes map to 500.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeBadRequest, CodeValidation:
		return http.StatusBadRequest
	case CodeForbidden:
		return http.StatusForbidden
	case CodeInvalidState, CodeMissingEvidence, CodeGateNotSatisfied, CodeConflict, CodeAlreadyIssued:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
