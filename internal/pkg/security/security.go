// Package security provides security utilities for input validation,
// sanitization, and sensitive data masking.
package security

import (
	"fmt"
	"net/http"
	"strings"
	"unicode"
)

// SanitizeForLog sanitizes a string for safe logging.
// It prevents log injection by:
// - Replacing newlines with escaped versions
// - Replacing carriage returns
// - Removing other control characters
// - Truncating to a maximum length
func SanitizeForLog(s string) string {
	return SanitizeForLogWithLength(s, 200)
}

// SanitizeForLogWithLength sanitizes a string for logging with a custom max length.
func SanitizeForLogWithLength(s string, maxLen int) string {
	if s == "" {
		return ""
	}

	// Use a builder for efficiency
	var b strings.Builder
	b.Grow(minInt(len(s), maxLen+10))

	count := 0
	for _, r := range s {
		if count >= maxLen {
			b.WriteString("...")
			break
		}

		switch r {
		case '\n':
			b.WriteString("\\n")
			count += 2
		case '\r':
			b.WriteString("\\r")
			count += 2
		case '\t':
			b.WriteString("\\t")
			count += 2
		default:
			// Remove other control characters, keep printable
			if !unicode.IsControl(r) || r == ' ' {
				b.WriteRune(r)
				count++
			}
		}
	}

	return b.String()
}

// sensitiveHeaders are HTTP header names that contain sensitive data.
// These should be masked in logs.
var sensitiveHeaders = map[string]bool{
	"authorization":       true,
	"x-api-key":           true,
	"api-key":             true,
	"x-auth-token":        true,
	"cookie":              true,
	"set-cookie":          true,
	"x-csrf-token":        true,
	"x-xsrf-token":        true,
	"proxy-authorization": true,
}

// sensitiveFieldPatterns are patterns in header names that indicate sensitive data.
var sensitiveFieldPatterns = []string{
	"password",
	"secret",
	"token",
	"key",
	"credential",
	"auth",
}

// MaskSensitiveHeaders creates a copy of headers with sensitive values masked.
// This is safe to use for logging.
func MaskSensitiveHeaders(headers http.Header) http.Header {
	if headers == nil {
		return nil
	}

	masked := make(http.Header, len(headers))
	for key, values := range headers {
		if isSensitiveHeader(key) {
			masked[key] = []string{"[REDACTED]"}
		} else {
			// Copy values
			masked[key] = append([]string(nil), values...)
		}
	}
	return masked
}

// MaskSensitiveMap masks sensitive values in a string map.
// Useful for logging request parameters or config values.
func MaskSensitiveMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}

	masked := make(map[string]string, len(m))
	for key, value := range m {
		if isSensitiveKey(key) {
			masked[key] = "[REDACTED]"
		} else {
			masked[key] = value
		}
	}
	return masked
}

// isSensitiveHeader checks if a header name contains sensitive data.
func isSensitiveHeader(name string) bool {
	lower := strings.ToLower(name)

	// Check exact matches
	if sensitiveHeaders[lower] {
		return true
	}

	// Check patterns
	return isSensitiveKey(lower)
}

// isSensitiveKey checks if a key name likely contains sensitive data.
func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, pattern := range sensitiveFieldPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// SanitizeQuery sanitizes a user query string.
// It removes control characters while preserving normal whitespace.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}

	// Use strings.Map for efficiency
	sanitized := strings.Map(func(r rune) rune {
		// Keep newlines and tabs (may be intentional in a pasted question)
		if r == '\n' || r == '\t' {
			return r
		}
		// Remove other control characters
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, query)

	return strings.TrimSpace(sanitized)
}

// IsBinaryContent checks if content appears to be binary (non-text).
func IsBinaryContent(content string) bool {
	if len(content) == 0 {
		return false
	}

	// Check first 8KB for binary indicators
	checkLen := minInt(len(content), 8192)
	sample := content[:checkLen]

	nullCount := 0
	nonPrintable := 0

	for _, b := range []byte(sample) {
		if b == 0 {
			nullCount++
			// More than a few null bytes strongly indicates binary
			if nullCount > 3 {
				return true
			}
		} else if b < 32 && b != '\t' && b != '\n' && b != '\r' {
			nonPrintable++
		}
	}

	// If more than 10% non-printable, likely binary
	return float64(nonPrintable)/float64(checkLen) > 0.1
}

// formatSize formats a byte size as human-readable.
func formatSize(bytes int) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%dB", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	units := []string{"KB", "MB", "GB"}
	if exp >= len(units) {
		exp = len(units) - 1
	}
	return fmt.Sprintf("%.1f%s", float64(bytes)/float64(div), units[exp])
}

// minInt returns the smaller of two integers.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
