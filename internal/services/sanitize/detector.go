package sanitize

import (
	"fmt"
	"regexp"
	"strings"
)

// Severity classifies how dangerous a matched injection signature is
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// rank orders severities so detections can be compared
func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Valid reports whether s is a known severity
func (s Severity) Valid() bool {
	return s.rank() > 0
}

// Detection describes one matched injection signature
type Detection struct {
	Severity Severity
	Category string
	Match    string
}

// Detector inspects a message for one category of injection attempt.
// Implementations must be safe for concurrent use.
type Detector interface {
	Name() string
	Detect(message string) *Detection
}

// patternDetector matches a message against a set of compiled regular
// expressions sharing one category and severity.
type patternDetector struct {
	category string
	severity Severity
	patterns []*regexp.Regexp
}

// newPatternDetector compiles a category's patterns. Compilation failure is
// a construction-time error, not a runtime one.
func newPatternDetector(category string, severity Severity, patterns []string) (*patternDetector, error) {
	if !severity.Valid() {
		return nil, fmt.Errorf("category %s: unknown severity %q", category, severity)
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("category %s: invalid pattern %q: %w", category, p, err)
		}
		compiled = append(compiled, re)
	}

	return &patternDetector{
		category: category,
		severity: severity,
		patterns: compiled,
	}, nil
}

func (d *patternDetector) Name() string {
	return d.category
}

func (d *patternDetector) Detect(message string) *Detection {
	lower := strings.ToLower(message)
	for _, re := range d.patterns {
		if match := re.FindString(lower); match != "" {
			return &Detection{
				Severity: d.severity,
				Category: d.category,
				Match:    match,
			}
		}
	}
	return nil
}
