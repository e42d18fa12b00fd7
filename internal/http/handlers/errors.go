// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case. Generic codes mirror HTTP status semantics;
// domain codes name business outcomes a client may want to branch on (for
// example already_enrolled when a checkout is opened twice).
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "validation_failed",
//	  "message": "validation failed",
//	  "details": [{"field": "title", "message": "is required"}]
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/tbourn/go-lms-backend/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeValidation       = "validation_failed"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeAccountInactive    = "account_inactive"
	ErrCodeEmailTaken         = "email_taken"
	ErrCodeInvalidSignature   = "invalid_signature"
	ErrCodeAlreadyEnrolled    = "already_enrolled"
	ErrCodeNotPurchasable     = "not_purchasable"
	ErrCodeOrderProcessed     = "order_already_processed"
	ErrCodeGateway            = "payment_gateway_error"
)

// errorMapping ties a service error to its HTTP status, code and public
// message.
type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

// serviceErrors is consulted in order; the first errors.Is match wins.
// ValidationError is handled separately because it carries details.
var serviceErrors = []errorMapping{
	{services.ErrUnauthorized, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required"},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeInvalidCredentials, "invalid email or password"},
	{services.ErrAccountInactive, http.StatusForbidden, ErrCodeAccountInactive, "account is not active"},
	{services.ErrForbidden, http.StatusForbidden, ErrCodeForbidden, "not allowed"},
	{services.ErrEmailTaken, http.StatusConflict, ErrCodeEmailTaken, "email already registered"},

	{services.ErrThreadNotFound, http.StatusNotFound, ErrCodeNotFound, "doubt not found"},
	{services.ErrMessageNotFound, http.StatusNotFound, ErrCodeNotFound, "message not found"},
	{services.ErrUserNotFound, http.StatusNotFound, ErrCodeNotFound, "user not found"},
	{services.ErrCourseNotFound, http.StatusNotFound, ErrCodeNotFound, "course not found"},
	{services.ErrLessonNotFound, http.StatusNotFound, ErrCodeNotFound, "lesson not found"},
	{services.ErrOrderNotFound, http.StatusNotFound, ErrCodeNotFound, "order not found"},

	// A payment proof that fails verification is a forbidden settlement, not
	// a missing credential.
	{services.ErrInvalidSignature, http.StatusForbidden, ErrCodeInvalidSignature, "payment verification failed"},
	{services.ErrAlreadyEnrolled, http.StatusConflict, ErrCodeAlreadyEnrolled, "already enrolled in this course"},
	{services.ErrCourseNotPurchasable, http.StatusConflict, ErrCodeNotPurchasable, "course is not available for this purchase flow"},
	{services.ErrOrderAlreadyProcessed, http.StatusConflict, ErrCodeOrderProcessed, "order was already processed"},
	{services.ErrGateway, http.StatusBadGateway, ErrCodeGateway, "payment gateway unavailable"},
}

// classify returns the response for err. Unknown errors are internal.
func classify(err error) (status int, code, message string) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			return m.status, m.code, m.message
		}
	}
	return http.StatusInternalServerError, ErrCodeInternal, "internal server error"
}
