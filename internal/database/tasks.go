package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taskpilot/taskpilot/internal/models"
)

// ErrTaskNotFound is returned when a task does not exist or is owned by
// another user.
var ErrTaskNotFound = errors.New("task not found")

// DefaultListLimit is the page size used when a list request does not set one
const DefaultListLimit = 50

// MaxListLimit caps the page size of task listings
const MaxListLimit = 100

// TaskFilter narrows a task listing. Nil fields are not applied.
type TaskFilter struct {
	Completed *bool
	Priority  *models.Priority
	Tag       *string
	DueBefore *time.Time
	DueAfter  *time.Time
	Offset    int
	Limit     int
}

// TaskRepository handles task database operations
type TaskRepository struct {
	db *DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create creates a new task
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO tasks (id, user_id, title, description, priority, tags, due_date, completed, recurrence, parent_task_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`

	tagsJSON, err := json.Marshal(task.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	recurrenceJSON, err := marshalRecurrence(task.Recurrence)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	err = r.db.QueryRowContext(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		task.Priority,
		tagsJSON,
		task.DueDate,
		task.Completed,
		recurrenceJSON,
		task.ParentTaskID,
		now,
		now,
	).Scan(&task.CreatedAt, &task.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// GetByID retrieves a task by ID, scoped to its owner
func (r *TaskRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Task, error) {
	query := `
		SELECT id, user_id, title, description, priority, tags, due_date, completed, recurrence, parent_task_id, created_at, updated_at
		FROM tasks
		WHERE id = $1 AND user_id = $2
	`

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id, userID))
	if err == sql.ErrNoRows {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// List retrieves tasks for a user, filtered and paginated
func (r *TaskRepository) List(ctx context.Context, userID uuid.UUID, filter TaskFilter) ([]*models.Task, error) {
	query := `
		SELECT id, user_id, title, description, priority, tags, due_date, completed, recurrence, parent_task_id, created_at, updated_at
		FROM tasks
		WHERE user_id = $1
	`
	args := []any{userID}
	argIndex := 2

	if filter.Completed != nil {
		query += fmt.Sprintf(" AND completed = $%d", argIndex)
		args = append(args, *filter.Completed)
		argIndex++
	}

	if filter.Priority != nil {
		query += fmt.Sprintf(" AND priority = $%d", argIndex)
		args = append(args, string(*filter.Priority))
		argIndex++
	}

	if filter.Tag != nil {
		// Tags are stored as a JSONB array; match exact membership
		query += fmt.Sprintf(" AND tags @> $%d", argIndex)
		tagJSON, err := json.Marshal([]string{*filter.Tag})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal tag filter: %w", err)
		}
		args = append(args, tagJSON)
		argIndex++
	}

	if filter.DueAfter != nil {
		query += fmt.Sprintf(" AND due_date >= $%d", argIndex)
		args = append(args, *filter.DueAfter)
		argIndex++
	}

	if filter.DueBefore != nil {
		query += fmt.Sprintf(" AND due_date <= $%d", argIndex)
		args = append(args, *filter.DueBefore)
		argIndex++
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// Update updates an existing task, scoped to its owner
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	query := `
		UPDATE tasks
		SET title = $3, description = $4, priority = $5, tags = $6, due_date = $7, completed = $8, recurrence = $9, updated_at = $10
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at
	`

	tagsJSON, err := json.Marshal(task.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	recurrenceJSON, err := marshalRecurrence(task.Recurrence)
	if err != nil {
		return err
	}

	err = r.db.QueryRowContext(ctx, query,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		task.Priority,
		tagsJSON,
		task.DueDate,
		task.Completed,
		recurrenceJSON,
		time.Now().UTC(),
	).Scan(&task.UpdatedAt)

	if err == sql.ErrNoRows {
		return ErrTaskNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}

	return nil
}

// Delete deletes a task by ID, scoped to its owner
func (r *TaskRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrTaskNotFound
	}

	return nil
}

// CountMatching counts a user's tasks, optionally narrowed to one
// completion status ("pending" or "completed"). Used by the bulk tools to
// report the blast radius before a confirmed run.
func (r *TaskRepository) CountMatching(ctx context.Context, userID uuid.UUID, statusFilter *string) (int, error) {
	query := `SELECT COUNT(*) FROM tasks WHERE user_id = $1`
	args := []any{userID}

	if clause, arg := statusClause(statusFilter, 2); clause != "" {
		query += clause
		args = append(args, arg)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	return count, nil
}

// CompleteAll sets the completion flag on every matching task in one
// statement and reports how many rows actually changed.
func (r *TaskRepository) CompleteAll(ctx context.Context, userID uuid.UUID, completed bool, statusFilter *string) (int64, error) {
	query := `UPDATE tasks SET completed = $2, updated_at = $3 WHERE user_id = $1 AND completed <> $2`
	args := []any{userID, completed, time.Now().UTC()}

	if clause, arg := statusClause(statusFilter, 4); clause != "" {
		query += clause
		args = append(args, arg)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update tasks: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected, nil
}

// DeleteAll deletes every matching task in one statement and reports how
// many rows were removed.
func (r *TaskRepository) DeleteAll(ctx context.Context, userID uuid.UUID, statusFilter *string) (int64, error) {
	query := `DELETE FROM tasks WHERE user_id = $1`
	args := []any{userID}

	if clause, arg := statusClause(statusFilter, 2); clause != "" {
		query += clause
		args = append(args, arg)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tasks: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected, nil
}

// CountChainInstances counts every task in a recurrence chain, the root
// included. The recurrence service uses this for its instance ceilings.
func (r *TaskRepository) CountChainInstances(ctx context.Context, rootID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM tasks WHERE id = $1 OR parent_task_id = $1`

	var count int
	if err := r.db.QueryRowContext(ctx, query, rootID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count recurrence chain: %w", err)
	}

	return count, nil
}

// statusClause maps an optional "pending"/"completed" filter onto a
// completed-column predicate. Unknown values are ignored rather than
// rejected; validation happens at the edges.
func statusClause(statusFilter *string, argIndex int) (string, any) {
	if statusFilter == nil {
		return "", nil
	}
	switch *statusFilter {
	case "pending":
		return fmt.Sprintf(" AND completed = $%d", argIndex), false
	case "completed":
		return fmt.Sprintf(" AND completed = $%d", argIndex), true
	}
	return "", nil
}

func marshalRecurrence(rule *models.RecurrenceRule) ([]byte, error) {
	if rule == nil {
		return nil, nil
	}
	data, err := json.Marshal(rule)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recurrence rule: %w", err)
	}
	return data, nil
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var (
		tagsJSON       []byte
		recurrenceJSON []byte
		dueDate        sql.NullTime
		parentTaskID   uuid.NullUUID
	)

	err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&task.Priority,
		&tagsJSON,
		&dueDate,
		&task.Completed,
		&recurrenceJSON,
		&parentTaskID,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &task.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}

	if len(recurrenceJSON) > 0 {
		rule := &models.RecurrenceRule{}
		if err := json.Unmarshal(recurrenceJSON, rule); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recurrence rule: %w", err)
		}
		rule.Normalize()
		task.Recurrence = rule
	}

	if dueDate.Valid {
		task.DueDate = &dueDate.Time
	}
	if parentTaskID.Valid {
		task.ParentTaskID = &parentTaskID.UUID
	}

	return task, nil
}
