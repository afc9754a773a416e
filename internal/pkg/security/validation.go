// Package security provides security utilities for input validation,
// sanitization, and sensitive data masking.
package security

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validation limits for user-supplied request fields.
const (
	// Query limits.
	MinQueryLength = 1
	MaxQueryLength = 10000

	// Document name limits.
	MaxDocumentNameLength = 256

	// Result limits.
	MinTopK = 1
	MaxTopK = 100

	// Content limits.
	MaxDocumentSize = 10 * 1024 * 1024 // 10MB
)

// ValidationError represents a field validation error.
type ValidationError struct {
	Field      string
	Value      interface{}
	Constraint string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed for %s: %s (got: %v)", e.Field, e.Constraint, e.Value)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Constraint)
}

// ValidateQuery validates a user query string.
// Requirements: required, 1-10000 chars, valid UTF-8.
func ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return &ValidationError{
			Field:      "query",
			Constraint: "required",
		}
	}

	length := utf8.RuneCountInString(query)
	if length > MaxQueryLength {
		return &ValidationError{
			Field:      "query",
			Value:      length,
			Constraint: fmt.Sprintf("maximum length is %d characters", MaxQueryLength),
		}
	}

	if !utf8.ValidString(query) {
		return &ValidationError{
			Field:      "query",
			Constraint: "must be valid UTF-8",
		}
	}

	return nil
}

// ValidateDocumentName validates an uploaded document's name.
// Requirements: required, at most 256 chars, no null bytes or other
// control characters.
func ValidateDocumentName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{
			Field:      "document",
			Constraint: "required",
		}
	}

	if len(name) > MaxDocumentNameLength {
		return &ValidationError{
			Field:      "document",
			Value:      len(name),
			Constraint: fmt.Sprintf("maximum length is %d characters", MaxDocumentNameLength),
		}
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return &ValidationError{
				Field:      "document",
				Value:      SanitizeForLog(name),
				Constraint: "must not contain control characters",
			}
		}
	}

	return nil
}

// ValidateTopK validates the top_k parameter.
// Requirements: 1-100.
func ValidateTopK(topK int) error {
	if topK < MinTopK {
		return &ValidationError{
			Field:      "top_k",
			Value:      topK,
			Constraint: fmt.Sprintf("minimum value is %d", MinTopK),
		}
	}

	if topK > MaxTopK {
		return &ValidationError{
			Field:      "top_k",
			Value:      topK,
			Constraint: fmt.Sprintf("maximum value is %d", MaxTopK),
		}
	}

	return nil
}

// ValidateDocumentContent validates uploaded document text.
// Requirements: valid UTF-8, at most 10MB.
func ValidateDocumentContent(content string) error {
	if len(content) > MaxDocumentSize {
		return &ValidationError{
			Field:      "text",
			Value:      formatSize(len(content)),
			Constraint: fmt.Sprintf("maximum size is %s", formatSize(MaxDocumentSize)),
		}
	}

	if !utf8.ValidString(content) {
		return &ValidationError{
			Field:      "text",
			Constraint: "must be valid UTF-8",
		}
	}

	return nil
}
