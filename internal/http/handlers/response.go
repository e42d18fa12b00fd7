// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response helpers shared by every endpoint:
//   - All error responses are an ErrorResponse with a stable `code`.
//   - fail() and failErr() centralize error formatting; 5xx responses are
//     logged with the request-scoped logger.
//   - ok() and noContent() write success responses.
//
// Example error response:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "doubt not found"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-lms-backend/internal/http/middleware"
	"github.com/tbourn/go-lms-backend/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"doubt not found"`
	// Field-level problems, present for validation_failed
	Details []services.FieldError `json:"details,omitempty"`
}

// fail aborts the request with a structured error. 5xx responses are logged.
func fail(c *gin.Context, status int, code, msg string) {
	failWith(c, status, ErrorResponse{Code: code, Message: msg})
}

func failWith(c *gin.Context, status int, resp ErrorResponse) {
	resp.RequestID = c.Writer.Header().Get("X-Request-ID")
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", resp.Code).
			Str("message", resp.Message).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, resp)
}

// failErr translates a service error into the error envelope. Validation
// errors keep their field details; unknown errors become a 500 and the cause
// is logged but never returned to the client.
func failErr(c *gin.Context, err error) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		failValidation(c, verr.Fields)
		return
	}
	status, code, msg := classify(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		middleware.LoggerFrom(c).Error().Err(err).Msg("request failed")
	}
	fail(c, status, code, msg)
}

func failValidation(c *gin.Context, fields []services.FieldError) {
	failWith(c, http.StatusBadRequest, ErrorResponse{
		Code:    ErrCodeValidation,
		Message: services.ErrValidation.Error(),
		Details: fields,
	})
}

// Fail is the exported variant of fail() for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
