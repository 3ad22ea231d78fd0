package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Length caps applied before a value is logged. User-supplied strings can be
// arbitrarily large; the caps keep log lines bounded.
const (
	MaxPathLength          = 500
	MaxUserIDLength        = 128
	MaxErrorMessageLength  = 1000
	MaxGeneralStringLength = 2000
	MaxDebugContentLength  = 10000
)

// SanitizeString strips control characters, repairs invalid UTF-8, and
// truncates to maxLength. Everything else in this file is a cap-specific
// wrapper around it.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	s = sanitizeFilterRunes(s)
	if len(s) > maxLength {
		s = s[:maxLength] + "..."
	}
	return s
}

// sanitizeFilterRunes keeps printable runes plus space, tab, newline, and CR.
func sanitizeFilterRunes(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

// SanitizePath scrubs a URL path for logging
func SanitizePath(path string) string {
	return SanitizeString(path, MaxPathLength)
}

// SanitizeError scrubs an error's message for logging
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// SanitizeErrorString scrubs an error string for logging
func SanitizeErrorString(errStr string) string {
	return SanitizeString(errStr, MaxErrorMessageLength)
}

// SanitizeUserID scrubs a user or job identifier for logging
func SanitizeUserID(userID string) string {
	return SanitizeString(userID, MaxUserIDLength)
}

// SanitizeDebugContent scrubs prompt and response text logged in debug mode.
// Debug output still must not carry log-injection payloads or unbounded size.
func SanitizeDebugContent(content string) string {
	return SanitizeString(content, MaxDebugContentLength)
}
