package sanitize

import "fmt"

// RejectedContentError is returned when input matches a high-severity
// injection signature. The message is safe to show to the end user.
type RejectedContentError struct {
	Severity Severity
	Category string
}

func (e *RejectedContentError) Error() string {
	return "This message contains content that cannot be processed. Please rephrase your request."
}

// Detail returns a diagnostic string for logs. It never includes the
// matched user text.
func (e *RejectedContentError) Detail() string {
	return fmt.Sprintf("rejected content: severity=%s category=%s", e.Severity, e.Category)
}

// IsRejectedContent reports whether err is a content rejection
func IsRejectedContent(err error) bool {
	_, ok := err.(*RejectedContentError)
	return ok
}
