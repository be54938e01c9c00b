package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/sidechain/ranking/internal/errors"
	"github.com/zfogg/sidechain/ranking/internal/logger"
	"go.uber.org/zap"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message,omitempty"`
	Field    string `json:"field,omitempty"`
	Details  string `json:"details,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
}

// DegradedListResponse answers a list read that could be served neither
// from the store nor from a stale copy
type DegradedListResponse struct {
	ErrorResponse
	Items []struct{} `json:"items"`
}

func logAPIError(c *gin.Context, apiErr *errors.APIError) {
	fields := []zap.Field{
		zap.String("code", string(apiErr.Code)),
		zap.String("message", apiErr.Message),
		zap.String("field", apiErr.Field),
		zap.String("path", c.FullPath()),
		logger.WithStatus(apiErr.Status),
	}
	if apiErr.Status >= http.StatusInternalServerError {
		logger.Log.Error("API error", fields...)
	} else if apiErr.Status >= http.StatusBadRequest {
		logger.Log.Warn("API error", fields...)
	}
}

func toResponse(apiErr *errors.APIError) ErrorResponse {
	return ErrorResponse{
		Code:     string(apiErr.Code),
		Message:  apiErr.Message,
		Field:    apiErr.Field,
		Details:  apiErr.Details,
		Degraded: apiErr.Degraded,
	}
}

// RespondWithAPIError sends a structured API error response
func RespondWithAPIError(c *gin.Context, apiErr *errors.APIError) {
	logAPIError(c, apiErr)
	c.JSON(apiErr.Status, toResponse(apiErr))
}

// RespondDegradedList sends apiErr with an empty items list so list clients
// can render the degraded state without special casing the error body
func RespondDegradedList(c *gin.Context, apiErr *errors.APIError) {
	logAPIError(c, apiErr)
	c.JSON(apiErr.Status, DegradedListResponse{
		ErrorResponse: toResponse(apiErr),
		Items:         []struct{}{},
	})
}

// RespondNotFound sends a 404 Not Found response
func RespondNotFound(c *gin.Context, resource string) {
	RespondWithAPIError(c, errors.NotFound(resource))
}

// RespondBadRequest sends a 400 Bad Request response
func RespondBadRequest(c *gin.Context, message string) {
	RespondWithAPIError(c, errors.BadRequest(message))
}

// RespondInternalError sends a 500 Internal Server Error response
func RespondInternalError(c *gin.Context, message string) {
	RespondWithAPIError(c, errors.InternalError(message))
}
