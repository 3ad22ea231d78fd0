package models

import (
	"testing"
	"time"
)

func intPtr(i int) *int { return &i }

func TestRecurrenceRuleValidate(t *testing.T) {
	t.Parallel()

	endDate := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		rule    RecurrenceRule
		wantErr bool
	}{
		{
			name: "daily every day",
			rule: RecurrenceRule{Frequency: FrequencyDaily, Interval: 1},
		},
		{
			name: "weekly every two weeks with count",
			rule: RecurrenceRule{Frequency: FrequencyWeekly, Interval: 2, Count: intPtr(10)},
		},
		{
			name: "monthly with end date",
			rule: RecurrenceRule{Frequency: FrequencyMonthly, Interval: 1, EndDate: &endDate},
		},
		{
			name:    "unknown frequency",
			rule:    RecurrenceRule{Frequency: "hourly", Interval: 1},
			wantErr: true,
		},
		{
			name:    "zero interval",
			rule:    RecurrenceRule{Frequency: FrequencyDaily, Interval: 0},
			wantErr: true,
		},
		{
			name:    "interval above maximum",
			rule:    RecurrenceRule{Frequency: FrequencyDaily, Interval: 366},
			wantErr: true,
		},
		{
			name:    "count above maximum",
			rule:    RecurrenceRule{Frequency: FrequencyDaily, Interval: 1, Count: intPtr(101)},
			wantErr: true,
		},
		{
			name:    "count below minimum",
			rule:    RecurrenceRule{Frequency: FrequencyDaily, Interval: 1, Count: intPtr(0)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.rule.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecurrenceRuleNormalize(t *testing.T) {
	t.Parallel()

	rule := RecurrenceRule{Frequency: FrequencyDaily}
	rule.Normalize()
	if rule.Interval != 1 {
		t.Errorf("Normalize() interval = %d, want 1", rule.Interval)
	}

	rule = RecurrenceRule{Frequency: FrequencyWeekly, Interval: 3}
	rule.Normalize()
	if rule.Interval != 3 {
		t.Errorf("Normalize() overwrote explicit interval, got %d", rule.Interval)
	}
}

func TestTaskRootID(t *testing.T) {
	t.Parallel()

	root := &Task{}
	root.ID = mustUUID(t, "11111111-1111-1111-1111-111111111111")
	if root.RootID() != root.ID {
		t.Error("RootID() of a root task should be its own ID")
	}

	instance := &Task{ID: mustUUID(t, "22222222-2222-2222-2222-222222222222")}
	parent := root.ID
	instance.ParentTaskID = &parent
	if instance.RootID() != root.ID {
		t.Error("RootID() of an instance should be the parent ID")
	}
}
