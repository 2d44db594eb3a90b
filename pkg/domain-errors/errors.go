// Package domainerrors provides coded domain errors shared by services and
// transport. Stores return sentinel errors; services wrap them with a code so
// handlers can translate to HTTP without inspecting store internals.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies the class of failure for transport translation.
type Code string

const (
	// CodeBadRequest marks malformed or incomplete input; the caller fixes the request.
	CodeBadRequest Code = "bad_request"
	// CodeNotFound marks an unknown id or public number.
	CodeNotFound Code = "not_found"
	// CodeConflict marks a lifecycle transition rejected from the current status.
	CodeConflict Code = "conflict"
	// CodeUnavailable marks a collaborator failure the caller may retry.
	CodeUnavailable Code = "unavailable"
	// CodeInternal marks everything we cannot blame on the caller.
	CodeInternal Code = "internal"
)

// DomainError carries a Code alongside the message so transport layers can map
// failures to status codes without string matching.
type DomainError struct {
	Code    Code
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Err }

// New builds a DomainError without a cause.
func New(code Code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// Is reports whether err (or anything it wraps) carries the given code.
func Is(err error, code Code) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to its HTTP equivalent.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
