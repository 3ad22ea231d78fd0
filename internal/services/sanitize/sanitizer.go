// Package sanitize screens user input for prompt-injection attempts before
// it reaches the language model, and normalizes the text that passes.
package sanitize

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/taskpilot/taskpilot/internal/models"
)

//go:embed patterns.yaml
var defaultPatterns []byte

// patternsFile is the on-disk shape of the embedded signature set
type patternsFile struct {
	Categories []struct {
		Name     string   `yaml:"name"`
		Severity Severity `yaml:"severity"`
		Patterns []string `yaml:"patterns"`
	} `yaml:"categories"`
	LegitimateContexts []string `yaml:"legitimate_contexts"`
}

// minSuspiciousMatchLength discards very short matches as false positives
const minSuspiciousMatchLength = 4

var (
	spaceRuns    = regexp.MustCompile(`[ \t]+`)
	newlineRuns  = regexp.MustCompile(`\n{3,}`)
	controlChars = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")
)

// Sanitizer runs a fixed detector chain over inbound messages
type Sanitizer struct {
	detectors     []Detector
	legitContexts []string
	maxLength     int
	logger        *zap.Logger
}

// New builds a sanitizer from the embedded signature set
func New(logger *zap.Logger) (*Sanitizer, error) {
	return NewFromConfig(defaultPatterns, logger)
}

// NewFromConfig builds a sanitizer from a YAML signature set. Exposed so
// operators can ship their own pattern file.
func NewFromConfig(data []byte, logger *zap.Logger) (*Sanitizer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var file patternsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sanitizer patterns: %w", err)
	}
	if len(file.Categories) == 0 {
		return nil, fmt.Errorf("sanitizer patterns define no categories")
	}

	detectors := make([]Detector, 0, len(file.Categories))
	for _, cat := range file.Categories {
		d, err := newPatternDetector(cat.Name, cat.Severity, cat.Patterns)
		if err != nil {
			return nil, err
		}
		detectors = append(detectors, d)
	}

	contexts := make([]string, 0, len(file.LegitimateContexts))
	for _, c := range file.LegitimateContexts {
		contexts = append(contexts, strings.ToLower(c))
	}

	return &Sanitizer{
		detectors:     detectors,
		legitContexts: contexts,
		maxLength:     models.MaxMessageLength,
		logger:        logger,
	}, nil
}

// Sanitize validates and cleans a user message. High-severity matches
// return a *RejectedContentError; lower severities pass through with the
// normalization applied. Stateless, so safe to call before quota counting.
func (s *Sanitizer) Sanitize(text string) (string, error) {
	if text == "" {
		return "", nil
	}

	if len(text) > s.maxLength {
		text = text[:s.maxLength]
	}

	if det := s.detect(text); det != nil {
		s.logger.Warn("injection_pattern_detected",
			zap.String("category", det.Category),
			zap.String("severity", string(det.Severity)),
		)
		if det.Severity == SeverityHigh {
			return "", &RejectedContentError{
				Severity: det.Severity,
				Category: det.Category,
			}
		}
	}

	return normalize(text), nil
}

// detect runs every detector and keeps the most severe non-legitimate
// match. All detectors run so a high-severity signature is never shadowed
// by an earlier low-severity one.
func (s *Sanitizer) detect(text string) *Detection {
	lower := strings.ToLower(text)

	var worst *Detection
	for _, d := range s.detectors {
		det := d.Detect(text)
		if det == nil {
			continue
		}
		if s.isLegitimateContext(lower, det.Match) {
			continue
		}
		if worst == nil || det.Severity.rank() > worst.Severity.rank() {
			worst = det
		}
	}
	return worst
}

// isLegitimateContext suppresses false positives: ordinary task-domain
// phrasing, or matches too short to mean anything.
func (s *Sanitizer) isLegitimateContext(lowerMessage, match string) bool {
	if len(match) < minSuspiciousMatchLength {
		return true
	}
	for _, ctx := range s.legitContexts {
		if strings.Contains(lowerMessage, ctx) {
			return true
		}
	}
	return false
}

// normalize applies the cleanup transformations: strip control characters,
// normalize line endings, collapse space runs, cap consecutive blank lines
// at one, and trim.
func normalize(text string) string {
	text = strings.ToValidUTF8(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = controlChars.ReplaceAllString(text, "")
	text = stripNonPrintable(text)
	text = spaceRuns.ReplaceAllString(text, " ")
	text = newlineRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func stripNonPrintable(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' || r == '\n' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
