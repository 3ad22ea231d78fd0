package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/taskpilot/taskpilot/internal/models"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Register custom validators for enums
	// These should never fail in normal operation, but panic loudly if they do
	if err := Validate.RegisterValidation("priority", validatePriority); err != nil {
		panic(fmt.Sprintf("failed to register priority validator: %v", err))
	}
	if err := Validate.RegisterValidation("recur_frequency", validateFrequency); err != nil {
		panic(fmt.Sprintf("failed to register recur_frequency validator: %v", err))
	}
	if err := Validate.RegisterValidation("status_filter", validateStatusFilter); err != nil {
		panic(fmt.Sprintf("failed to register status_filter validator: %v", err))
	}
}

// validatePriority validates that a string is a valid Priority enum value
func validatePriority(fl validator.FieldLevel) bool {
	return models.Priority(fl.Field().String()).Valid()
}

// validateFrequency validates that a string is a valid recurrence frequency
func validateFrequency(fl validator.FieldLevel) bool {
	switch models.Frequency(fl.Field().String()) {
	case models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly:
		return true
	default:
		return false
	}
}

// validateStatusFilter validates a completion-status filter value
func validateStatusFilter(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "all", "pending", "completed":
		return true
	default:
		return false
	}
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	// Trim whitespace
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidatePriority validates a Priority string value
func ValidatePriority(value string) error {
	if !models.Priority(value).Valid() {
		return fmt.Errorf("invalid priority: %s (must be 'low', 'medium', or 'high')", value)
	}
	return nil
}

// ValidateStatusFilter validates a completion-status filter string value
func ValidateStatusFilter(value string) error {
	switch value {
	case "all", "pending", "completed":
		return nil
	default:
		return fmt.Errorf("invalid status filter: %s (must be 'all', 'pending', or 'completed')", value)
	}
}
