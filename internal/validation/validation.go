// Package validation provides input validation for the fraud guardian API.
package validation

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (256KB). Transaction
// payloads are small; anything larger is abuse.
const MaxRequestSize = 256 << 10

// MaxDescriptionLength is the maximum length for transaction descriptions.
const MaxDescriptionLength = 500

// accountNumRegex validates bank account numbers (10 digits).
var accountNumRegex = regexp.MustCompile(`^[0-9]{10}$`)

// routingNumRegex validates bank routing numbers (9 digits).
var routingNumRegex = regexp.MustCompile(`^[0-9]{9}$`)

// RequestSizeMiddleware limits request body size.
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidAccountNum checks if a string is a valid 10-digit account number.
func IsValidAccountNum(num string) bool {
	return accountNumRegex.MatchString(num)
}

// IsValidRoutingNum checks if a string is a valid 9-digit routing number.
func IsValidRoutingNum(num string) bool {
	return routingNumRegex.MatchString(num)
}

// SanitizeString trims whitespace, strips null bytes, and limits length.
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	s = strings.ReplaceAll(s, "\x00", "")
	return s
}

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Validate runs the given validators and collects their errors.
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errors ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errors = append(errors, *err)
		}
	}
	return errors
}

// Required checks if a field is non-empty.
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// ValidAccountNum checks if a field is a valid account number.
func ValidAccountNum(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil // Use Required for required fields
		}
		if !IsValidAccountNum(value) {
			return &ValidationError{Field: field, Message: "must be a 10-digit account number"}
		}
		return nil
	}
}

// MaxLength checks if a field exceeds max length.
func MaxLength(field, value string, max int) func() *ValidationError {
	return func() *ValidationError {
		if len(value) > max {
			return &ValidationError{Field: field, Message: "exceeds maximum length"}
		}
		return nil
	}
}
