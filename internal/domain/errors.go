package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every layer. HTTP handlers map them to status codes.
var (
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrInsufficientRole    = errors.New("insufficient role")
	ErrSelfActionForbidden = errors.New("action not allowed on own account")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrValidation          = errors.New("validation failed")
	ErrNotConfigured       = errors.New("ai service not configured")
	ErrExternalService     = errors.New("external service error")
	ErrMalformedSuggestion = errors.New("malformed suggestions")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// ExternalServiceError carries the raw reply of a failed text-generation call.
// StatusCode is zero when the request never produced a response.
type ExternalServiceError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ExternalServiceError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("external service returned %d: %s", e.StatusCode, e.Body)
	case e.Err != nil:
		return "external service request failed: " + e.Err.Error()
	default:
		return "external service error: " + e.Body
	}
}

// Unwrap exposes both the sentinel and the transport cause.
func (e *ExternalServiceError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrExternalService, e.Err}
	}
	return []error{ErrExternalService}
}

// MalformedSuggestionsError is returned when a plan reply fails schema validation.
// Raw holds the unmodified reply text for diagnosis.
type MalformedSuggestionsError struct {
	Raw    string
	Reason string
}

func (e *MalformedSuggestionsError) Error() string {
	return "malformed suggestions: " + e.Reason
}

// Unwrap lets errors.Is match ErrMalformedSuggestion.
func (e *MalformedSuggestionsError) Unwrap() error { return ErrMalformedSuggestion }
