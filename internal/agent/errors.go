package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotConfigured indicates no model credentials are available. Fatal
	// for the turn, never retried.
	ErrNotConfigured = errors.New("language model is not configured")
	// ErrTurnTimeout indicates the turn's wall-clock budget expired
	ErrTurnTimeout = errors.New("turn timed out")
	// ErrMaxIterations indicates the model kept requesting tools past the
	// iteration bound without producing a final answer.
	ErrMaxIterations = errors.New("agent loop exceeded iteration bound")
)

// APIError represents an error from the model provider API
type APIError struct {
	Message     string
	Type        string
	Code        string
	StatusCode  int
	RetryAfter  *time.Duration
	IsPermanent bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
}

// IsConfigurationError reports whether the turn failed because the model
// client is unusable, as opposed to a transient provider problem.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}

// IsTimeoutError reports whether the turn failed on its wall-clock bound
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTurnTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(err.Error(), "deadline exceeded") ||
		strings.Contains(err.Error(), "timeout")
}

// IsRateLimitError checks if an error is a provider rate limit error
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 && !apiErr.IsPermanent
	}

	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

// IsTransientError reports whether the caller may retry the turn. Rate
// limits, connection failures, and provider-side 5xx all count; bad
// credentials and timeouts are classified separately.
func IsTransientError(err error) bool {
	if err == nil || IsConfigurationError(err) || IsTimeoutError(err) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}

	errStr := err.Error()
	return IsRateLimitError(err) ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host")
}

// ExtractAPIError extracts provider error details from an error. The SDK
// often embeds a JSON error body in the message text.
func ExtractAPIError(err error) *APIError {
	if err == nil {
		return nil
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "429") {
		return nil
	}

	apiErr := &APIError{
		StatusCode: 429,
		Message:    errStr,
		Type:       "rate_limit_error",
	}

	if jsonStart := strings.Index(errStr, "{"); jsonStart != -1 {
		jsonStr := errStr[jsonStart:]
		if jsonEnd := strings.LastIndex(jsonStr, "}"); jsonEnd != -1 {
			jsonStr = jsonStr[:jsonEnd+1]
			var errorData struct {
				Message string `json:"message"`
				Type    string `json:"type"`
				Code    string `json:"code"`
			}
			if json.Unmarshal([]byte(jsonStr), &errorData) == nil {
				apiErr.Message = errorData.Message
				apiErr.Type = errorData.Type
				apiErr.Code = errorData.Code
				if errorData.Code == "insufficient_quota" {
					apiErr.IsPermanent = true
				}
			}
		}
	}

	retryAfter := 60 * time.Second
	if apiErr.IsPermanent {
		retryAfter = time.Hour
	}
	apiErr.RetryAfter = &retryAfter

	return apiErr
}
