// Package services defines the business logic for identity, doubt threads and
// payment reconciliation. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer (REST) and in the realtime package (doubtError events).
package services

import (
	"errors"
	"strings"
)

// Generic errors.
var (
	// ErrValidation is matched by every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized indicates a missing, malformed or expired credential, or
	// an account that may no longer sign in.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates an authenticated actor lacking the capability
	// required for the operation.
	ErrForbidden = errors.New("forbidden")
)

// Identity errors.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is not active")
	ErrUserNotFound       = errors.New("user not found")
)

// Doubt errors.
var (
	ErrThreadNotFound  = errors.New("doubt thread not found")
	ErrMessageNotFound = errors.New("doubt message not found")
	ErrCourseNotFound  = errors.New("course not found")
	ErrLessonNotFound  = errors.New("lesson not found")
)

// Payment errors.
var (
	// ErrInvalidSignature is returned when a payment proof or webhook
	// envelope does not match the expected HMAC.
	ErrInvalidSignature = errors.New("invalid payment signature")

	// ErrOrderNotFound indicates no order with the gateway order id exists
	// (or it belongs to a different user/course).
	ErrOrderNotFound = errors.New("payment order not found")

	// ErrOrderAlreadyProcessed indicates the order left PENDING without
	// producing an enrollment for the caller (e.g. it FAILED).
	ErrOrderAlreadyProcessed = errors.New("payment order already processed")

	// ErrAlreadyEnrolled is returned when a user tries to buy or enroll in a
	// course they already have.
	ErrAlreadyEnrolled = errors.New("already enrolled in this course")

	// ErrCourseNotPurchasable is returned for unpublished courses or a price
	// that does not match the requested flow.
	ErrCourseNotPurchasable = errors.New("course is not available for this purchase flow")

	// ErrGateway wraps failures talking to the payment gateway.
	ErrGateway = errors.New("payment gateway error")

	// ErrEventAlreadyProcessed is returned for a redelivered webhook event.
	ErrEventAlreadyProcessed = errors.New("webhook event already processed")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field-level problems with an input.
type ValidationError struct {
	Fields []FieldError
}

// Error implements error.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// invalid builds a single-field ValidationError.
func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: msg}}}
}

// add appends a field problem; it is a no-op helper for building errors
// incrementally.
func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

// errOrNil returns e when it holds at least one field, else nil.
func (e *ValidationError) errOrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
