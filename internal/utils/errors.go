// Package utils provides utility functions used throughout the application.
package utils

import (
	"errors"
	"fmt"
	"maps"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Common error types
var (
	ErrBadRequest  = errors.New("invalid request")
	ErrValidation  = errors.New("validation error")
	ErrUnavailable = errors.New("service unavailable")
)

// AppError represents an application error with context.
// It implements the error interface and can be used to provide
// additional information about an error.
type AppError struct {
	// Original is the underlying error that caused this error
	Original error
	// Message is a human-readable error message
	Message string
	// Code is the HTTP status code that should be returned
	Code int
	// Details contains additional error context
	Details map[string]any
}

// Error returns the error message, satisfying the error interface.
func (e *AppError) Error() string {
	if e.Original != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Original)
	}
	return e.Message
}

// Unwrap returns the underlying error, supporting errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Original
}

// WithDetails adds context to the error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	maps.Copy(e.Details, details)
	return e
}

// NewAppError creates a new AppError.
func NewAppError(err error, message string, code int) *AppError {
	return &AppError{
		Original: err,
		Message:  message,
		Code:     code,
		Details:  make(map[string]any),
	}
}

// BadRequestError creates a new 400 Bad Request error.
func BadRequestError(message string, err error) *AppError {
	if message == "" {
		message = "Invalid request"
	}
	return NewAppError(err, message, http.StatusBadRequest)
}

// ValidationError creates a new 422 Unprocessable Entity error.
func ValidationError(message string, err error) *AppError {
	if message == "" {
		message = "Validation error"
	}
	return NewAppError(err, message, http.StatusUnprocessableEntity)
}

// UnavailableError creates a new 503 Service Unavailable error.
func UnavailableError(message string, err error) *AppError {
	if message == "" {
		message = "Service unavailable"
	}
	return NewAppError(err, message, http.StatusServiceUnavailable)
}

// StatusCode returns the HTTP status code for the error.
func StatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}

	// Default error mappings
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorDetails returns the message and details to show a client for err.
// Validation errors are keyed by field.
func ErrorDetails(err error) (string, map[string]any) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message, appErr.Details
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := FormatValidationErrors(validationErrs)
		details := make(map[string]any, len(fields))
		for field, message := range fields {
			details[field] = message
		}
		return "Validation failed", details
	}

	return err.Error(), nil
}
