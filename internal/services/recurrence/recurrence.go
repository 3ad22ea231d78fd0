// Package recurrence computes follow-up due dates for repeating tasks and
// enforces the limits that stop a chain from growing without bound.
package recurrence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskpilot/taskpilot/internal/database"
	"github.com/taskpilot/taskpilot/internal/models"
)

// MaxChainInstances is the safety ceiling on one recurrence chain, root
// included. Applies even when the rule itself sets no count.
const MaxChainInstances = 100

// NextOccurrence computes the due date that follows base under the given
// rule. Monthly recurrence advances by interval*30 days rather than by
// calendar months; callers relying on "same day next month" semantics
// should not, this is a documented approximation.
func NextOccurrence(base time.Time, rule *models.RecurrenceRule) (time.Time, error) {
	interval := rule.Interval
	if interval < 1 {
		interval = 1
	}

	switch rule.Frequency {
	case models.FrequencyDaily:
		return base.AddDate(0, 0, interval), nil
	case models.FrequencyWeekly:
		return base.AddDate(0, 0, interval*7), nil
	case models.FrequencyMonthly:
		return base.AddDate(0, 0, interval*30), nil
	default:
		return time.Time{}, fmt.Errorf("unknown recurrence frequency: %s", rule.Frequency)
	}
}

// Service decides whether a completed recurring task spawns its next
// instance, and creates it when allowed.
type Service struct {
	tasks  database.TaskStore
	logger *zap.Logger
}

// NewService creates a recurrence service
func NewService(tasks database.TaskStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{tasks: tasks, logger: logger}
}

// ShouldCreateNext checks the chain's limits in order: the rule's own
// occurrence count, then the rule's end date, then the global instance
// ceiling. The rule count caps generated instances only, so the chain's
// root does not count against it; the global ceiling counts every
// instance including the root.
func (s *Service) ShouldCreateNext(ctx context.Context, task *models.Task, nextDate time.Time) (bool, error) {
	rule := task.Recurrence
	if rule == nil {
		return false, nil
	}

	rootID := task.RootID()
	existing, err := s.tasks.CountChainInstances(ctx, rootID)
	if err != nil {
		return false, fmt.Errorf("failed to count recurrence chain: %w", err)
	}

	generated := existing - 1
	if rule.Count != nil && generated >= *rule.Count {
		s.logger.Debug("recurrence_count_reached",
			zap.String("root_task_id", rootID.String()),
			zap.Int("count", *rule.Count),
		)
		return false, nil
	}

	if rule.EndDate != nil && nextDate.After(*rule.EndDate) {
		s.logger.Debug("recurrence_end_date_reached",
			zap.String("root_task_id", rootID.String()),
		)
		return false, nil
	}

	if existing >= MaxChainInstances {
		s.logger.Warn("recurrence_chain_cap_reached",
			zap.String("root_task_id", rootID.String()),
			zap.Int("instances", existing),
		)
		return false, nil
	}

	return true, nil
}

// SpawnNext creates the next instance of a just-completed recurring task.
// The new instance copies the task's content, carries the same rule, links
// to the chain's root, and starts incomplete. Returns nil without error
// when the chain's limits say no instance should be created, or when the
// task has no rule or no due date.
func (s *Service) SpawnNext(ctx context.Context, task *models.Task) (*models.Task, error) {
	if task.Recurrence == nil || task.DueDate == nil {
		return nil, nil
	}

	nextDate, err := NextOccurrence(*task.DueDate, task.Recurrence)
	if err != nil {
		return nil, err
	}

	ok, err := s.ShouldCreateNext(ctx, task, nextDate)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	rootID := task.RootID()
	next := &models.Task{
		ID:           uuid.New(),
		UserID:       task.UserID,
		Title:        task.Title,
		Description:  task.Description,
		Priority:     task.Priority,
		Tags:         append([]string(nil), task.Tags...),
		DueDate:      &nextDate,
		Completed:    false,
		Recurrence:   task.Recurrence,
		ParentTaskID: &rootID,
	}

	if err := s.tasks.Create(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to create recurring instance: %w", err)
	}

	s.logger.Info("recurring_instance_created",
		zap.String("root_task_id", rootID.String()),
		zap.String("task_id", next.ID.String()),
		zap.Time("due_date", nextDate),
	)

	return next, nil
}
