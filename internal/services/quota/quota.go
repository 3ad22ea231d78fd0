// Package quota enforces the per-user daily message ceiling.
package quota

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DailyMessageLimit is the ceiling on user plus assistant messages per
// UTC calendar day.
const DailyMessageLimit = 100

// MessageCounter counts a user's persisted messages since a point in time
type MessageCounter interface {
	CountForUserSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}

// Decision is the outcome of a quota check
type Decision struct {
	Allowed   bool
	Remaining int
	ResetsAt  *time.Time
}

// Checker decides whether a user may send another message today
type Checker struct {
	counter MessageCounter
	limit   int
	logger  *zap.Logger
	now     func() time.Time
}

// NewChecker creates a quota checker backed by the message store
func NewChecker(counter MessageCounter, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		counter: counter,
		limit:   DailyMessageLimit,
		logger:  logger,
		now:     time.Now,
	}
}

// Limit returns the configured daily ceiling
func (c *Checker) Limit() int {
	return c.limit
}

// Check counts the user's messages in the current UTC day and compares
// against the ceiling. Remaining is reduced by one for the message about to
// be recorded. If the count query fails the check fails open: quota is a
// soft guard and must never block task management on a storage hiccup.
func (c *Checker) Check(ctx context.Context, userID uuid.UUID) Decision {
	now := c.now().UTC()
	windowStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	count, err := c.counter.CountForUserSince(ctx, userID, windowStart)
	if err != nil {
		c.logger.Error("quota_check_failed",
			zap.Error(err),
		)
		return Decision{Allowed: true, Remaining: c.limit - 1}
	}

	if count >= c.limit {
		resetsAt := windowStart.Add(24 * time.Hour)
		return Decision{Allowed: false, Remaining: 0, ResetsAt: &resetsAt}
	}

	remaining := c.limit - count - 1
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Remaining: remaining}
}
