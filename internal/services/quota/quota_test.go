package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fakeCounter struct {
	count     int
	err       error
	gotSince  time.Time
	gotUserID uuid.UUID
}

func (f *fakeCounter) CountForUserSince(_ context.Context, userID uuid.UUID, since time.Time) (int, error) {
	f.gotUserID = userID
	f.gotSince = since
	return f.count, f.err
}

func newTestChecker(counter *fakeCounter, now time.Time) *Checker {
	c := NewChecker(counter, zap.NewNop())
	c.now = func() time.Time { return now }
	return c
}

func TestChecker_Check(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 15, 14, 30, 0, 0, time.UTC)
	wantReset := time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		count         int
		wantAllowed   bool
		wantRemaining int
		wantReset     *time.Time
	}{
		{
			name:          "first message of the day",
			count:         0,
			wantAllowed:   true,
			wantRemaining: 99,
		},
		{
			name:          "one below the ceiling",
			count:         99,
			wantAllowed:   true,
			wantRemaining: 0,
		},
		{
			name:          "at the ceiling",
			count:         100,
			wantAllowed:   false,
			wantRemaining: 0,
			wantReset:     &wantReset,
		},
		{
			name:          "over the ceiling",
			count:         150,
			wantAllowed:   false,
			wantRemaining: 0,
			wantReset:     &wantReset,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			counter := &fakeCounter{count: tt.count}
			checker := newTestChecker(counter, now)

			decision := checker.Check(context.Background(), uuid.New())
			if decision.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", decision.Allowed, tt.wantAllowed)
			}
			if decision.Remaining != tt.wantRemaining {
				t.Errorf("Remaining = %d, want %d", decision.Remaining, tt.wantRemaining)
			}
			if tt.wantReset == nil {
				if decision.ResetsAt != nil {
					t.Errorf("ResetsAt = %v, want nil", decision.ResetsAt)
				}
			} else {
				if decision.ResetsAt == nil || !decision.ResetsAt.Equal(*tt.wantReset) {
					t.Errorf("ResetsAt = %v, want %v", decision.ResetsAt, tt.wantReset)
				}
			}
		})
	}
}

func TestChecker_WindowStartsAtMidnightUTC(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 15, 23, 59, 59, 0, time.UTC)
	counter := &fakeCounter{count: 5}
	checker := newTestChecker(counter, now)

	checker.Check(context.Background(), uuid.New())

	wantStart := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	if !counter.gotSince.Equal(wantStart) {
		t.Errorf("count window start = %v, want %v", counter.gotSince, wantStart)
	}
}

func TestChecker_FailsOpen(t *testing.T) {
	t.Parallel()

	counter := &fakeCounter{err: errors.New("connection refused")}
	checker := newTestChecker(counter, time.Now())

	decision := checker.Check(context.Background(), uuid.New())
	if !decision.Allowed {
		t.Error("Check() with failing store should fail open, got Allowed = false")
	}
}
