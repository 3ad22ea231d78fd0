package models

import (
	"fmt"
	"time"
)

// Frequency represents how often a recurring task repeats
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

const (
	// MaxRecurrenceInterval is the largest allowed interval between occurrences
	MaxRecurrenceInterval = 365
	// MaxRecurrenceCount is the largest allowed per-rule occurrence count.
	// It matches the global per-chain instance ceiling enforced by the
	// recurrence service.
	MaxRecurrenceCount = 100
)

// RecurrenceRule defines how a task repeats. A rule with neither Count nor
// EndDate recurs indefinitely; the recurrence service still stops the chain
// at the global 100-instance ceiling.
type RecurrenceRule struct {
	Frequency Frequency  `json:"frequency"`
	Interval  int        `json:"interval"`
	Count     *int       `json:"count,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// Validate checks the rule's structure and bounds
func (r *RecurrenceRule) Validate() error {
	switch r.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	default:
		return fmt.Errorf("invalid recurrence frequency: %q (must be 'daily', 'weekly', or 'monthly')", r.Frequency)
	}

	if r.Interval < 1 || r.Interval > MaxRecurrenceInterval {
		return fmt.Errorf("invalid recurrence interval: %d (must be 1..%d)", r.Interval, MaxRecurrenceInterval)
	}

	if r.Count != nil {
		if *r.Count < 1 || *r.Count > MaxRecurrenceCount {
			return fmt.Errorf("invalid recurrence count: %d (must be 1..%d)", *r.Count, MaxRecurrenceCount)
		}
	}

	return nil
}

// Normalize fills in defaulted fields on a decoded rule
func (r *RecurrenceRule) Normalize() {
	if r.Interval == 0 {
		r.Interval = 1
	}
}
