// Package domainerrors provides coded domain errors shared across services.
//
// Services return these so transport layers can map failures to status codes
// without string matching. Stores return pkg/platform/sentinel errors instead;
// services translate them into coded errors at the service boundary.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error for boundary mapping.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeUnauthorized       Code = "unauthorized"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal"
)

// DomainError carries a code alongside a human-readable message. The message
// is safe to return to API clients verbatim.
type DomainError struct {
	Code    Code
	Message string
	cause   error
}

func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.cause }

// New constructs a coded error with no underlying cause.
func New(code Code, message string) error {
	return &DomainError{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &DomainError{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for uncoded
// errors so unexpected failures never leak as client errors.
func CodeOf(err error) Code {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the client-safe message from err. Uncoded errors map to
// a generic message.
func MessageOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal server error"
}

// ToHTTPStatus maps a code to its HTTP status equivalent.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvariantViolation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
