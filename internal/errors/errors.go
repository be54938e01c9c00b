package errors

import (
	"fmt"
	"net/http"
)

// APIError represents a standardized API error response
type APIError struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	Field    string    `json:"field,omitempty"`
	Details  string    `json:"details,omitempty"`
	Degraded bool      `json:"degraded,omitempty"`
	Status   int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NotFound creates a NOT_FOUND error
func NotFound(resource string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
	}
}

// BadRequest creates a BAD_REQUEST error
func BadRequest(message string) *APIError {
	return &APIError{
		Code:    ErrBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// InvalidParameter rejects a request parameter before any cache or store access
func InvalidParameter(field, message string) *APIError {
	return &APIError{
		Code:    ErrInvalidParameter,
		Message: message,
		Field:   field,
		Status:  http.StatusBadRequest,
	}
}

// InternalError creates an INTERNAL_ERROR
func InternalError(message string) *APIError {
	return &APIError{
		Code:    ErrInternalError,
		Message: message,
		Status:  http.StatusInternalServerError,
	}
}

// ServiceUnavailable creates a SERVICE_UNAVAILABLE error. Degraded marks responses
// that could not be served from either the store or a stale cache copy.
func ServiceUnavailable(service string) *APIError {
	return &APIError{
		Code:     ErrServiceUnavail,
		Message:  fmt.Sprintf("%s is temporarily unavailable", service),
		Degraded: true,
		Status:   http.StatusServiceUnavailable,
	}
}

// Timeout creates a TIMEOUT error
func Timeout(operation string) *APIError {
	return &APIError{
		Code:    ErrTimeout,
		Message: fmt.Sprintf("%s timed out", operation),
		Status:  http.StatusGatewayTimeout,
	}
}

// WithDetails adds additional details to an error
func (e *APIError) WithDetails(details string) *APIError {
	e.Details = details
	return e
}
