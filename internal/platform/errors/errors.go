// Package errors classifies request failures so the HTTP layer can pick a
// status code and log level without inspecting causes.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	// TypeValidation indicates a request that could not be decoded or is incomplete (HTTP 400).
	TypeValidation ErrorType = "validation"
	// TypeRateLimited indicates the caller exceeded its request budget (HTTP 429).
	TypeRateLimited ErrorType = "rate_limited"
	// TypeInternal indicates a server-side failure such as a rejected insert (HTTP 500).
	TypeInternal ErrorType = "internal"
)

// Error is a classified error with log context. Context is never sent to clients.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func ValidationError(message string) *Error {
	return newError(TypeValidation, message, nil)
}

func RateLimitedError(message string) *Error {
	return newError(TypeRateLimited, message, nil)
}

func InternalError(message string, cause error) *Error {
	return newError(TypeInternal, message, cause)
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{
		Type:    t,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// WithField adds a log field to the error (chainable).
func (e *Error) WithField(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// AsStructuredError returns the *Error in err's chain, or wraps err as an
// internal error when there is none.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	return InternalError("internal server error", err)
}
