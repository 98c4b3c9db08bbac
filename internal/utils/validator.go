// Package utils provides utility functions used throughout the application.
package utils

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// rpcMethodRegex matches JSON-RPC method names of the Namespace.Method form
	rpcMethodRegex = regexp.MustCompile(`^[A-Z][A-Za-z]*\.[A-Za-z][A-Za-z0-9]*$`)

	// Custom error messages for validation errors
	validationErrorMessages = map[string]string{
		"required":    "This field is required",
		"min":         "Value must be greater than or equal to %s",
		"max":         "Value must be less than or equal to %s",
		"oneof":       "Value must be one of: %s",
		"rpcmethod":   "Must be a JSON-RPC method name such as Input.Select",
		"required_if": "This field is required for this gesture",
	}
)

// Initialize validator with custom validations
func init() {
	validate = validator.New()

	// Register function to get tag name from json tags
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("rpcmethod", validateRPCMethod)
}

// Validate performs validation on the given struct and returns validation errors.
func Validate(s any) error {
	return validate.Struct(s)
}

// FormatValidationErrors formats validation errors into a user-friendly map.
func FormatValidationErrors(err error) map[string]string {
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"general": err.Error()}
	}

	validationErrors := make(map[string]string)
	for _, err := range validationErrs {
		field := err.Field()
		tag := err.Tag()
		param := err.Param()

		message, exists := validationErrorMessages[tag]
		if !exists {
			message = "Invalid value"
		}

		// Replace parameter placeholders in error messages
		if param != "" && strings.Contains(message, "%s") {
			message = strings.Replace(message, "%s", param, 1)
		}

		validationErrors[field] = message
	}

	return validationErrors
}

// IsRPCMethod reports whether s looks like a JSON-RPC method name.
func IsRPCMethod(s string) bool {
	return rpcMethodRegex.MatchString(s)
}

// validateRPCMethod checks if a string is a JSON-RPC method name. Empty
// strings pass so the rule composes with omitempty/required.
func validateRPCMethod(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == "" || IsRPCMethod(value)
}
