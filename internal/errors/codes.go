package errors

import "net/http"

// ErrorCode represents the type of error
type ErrorCode string

const (
	ErrNotFound         ErrorCode = "NOT_FOUND"
	ErrBadRequest       ErrorCode = "BAD_REQUEST"
	ErrInvalidParameter ErrorCode = "INVALID_PARAMETER"
	ErrInternalError    ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavail   ErrorCode = "SERVICE_UNAVAILABLE"
	ErrTimeout          ErrorCode = "TIMEOUT"
)

// StatusCodeMap maps ErrorCode to HTTP status code
var StatusCodeMap = map[ErrorCode]int{
	ErrNotFound:         http.StatusNotFound,
	ErrBadRequest:       http.StatusBadRequest,
	ErrInvalidParameter: http.StatusBadRequest,
	ErrInternalError:    http.StatusInternalServerError,
	ErrServiceUnavail:   http.StatusServiceUnavailable,
	ErrTimeout:          http.StatusGatewayTimeout,
}

// StatusCode returns the HTTP status code for this error code
func (e ErrorCode) StatusCode() int {
	if code, ok := StatusCodeMap[e]; ok {
		return code
	}
	return http.StatusInternalServerError
}
