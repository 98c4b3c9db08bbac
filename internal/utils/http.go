// Package utils provides utility functions used throughout the application.
package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// APIResponse represents a standard API response.
type APIResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
	Error   any  `json:"error,omitempty"`
}

// ValidationErrorItem represents a single validation error.
type ValidationErrorItem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RespondWithJSON sends a JSON response with the given status code and data.
func RespondWithJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			GetLogger().Error("Failed to encode JSON response", err)
		}
	}
}

// RespondWithData wraps data in a successful APIResponse.
func RespondWithData(w http.ResponseWriter, statusCode int, data any) {
	RespondWithJSON(w, statusCode, APIResponse{
		Success: true,
		Data:    data,
	})
}

// RespondWithError sends an error response with the given status code and message.
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	response := APIResponse{
		Success: false,
		Error: map[string]string{
			"message": message,
		},
	}
	RespondWithJSON(w, statusCode, response)
}

// RespondWithAppError maps err to a status code and sends it.
func RespondWithAppError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		RespondWithValidationError(w, validationErrs)
		return
	}

	message := err.Error()
	var appErr *AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	RespondWithError(w, StatusCode(err), message)
}

// RespondWithValidationError sends a validation error response.
func RespondWithValidationError(w http.ResponseWriter, err error) {
	var validationErrors []ValidationErrorItem

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for field, message := range FormatValidationErrors(validationErrs) {
			validationErrors = append(validationErrors, ValidationErrorItem{
				Field:   field,
				Message: message,
			})
		}
	} else {
		// If it's not a validation error, treat it as a general error
		validationErrors = append(validationErrors, ValidationErrorItem{
			Field:   "general",
			Message: err.Error(),
		})
	}

	response := APIResponse{
		Success: false,
		Error: map[string]any{
			"message": "Validation failed",
			"errors":  validationErrors,
		},
	}

	RespondWithJSON(w, http.StatusBadRequest, response)
}
