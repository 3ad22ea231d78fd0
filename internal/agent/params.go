package agent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskpilot/taskpilot/internal/validation"
)

// Tool arguments arrive as raw JSON written by the model. Each tool gets a
// typed parameter struct validated before its handler runs, so malformed
// model output becomes a structured tool-level error instead of a handler
// panic. None of these structs carries a user identity field: the
// authenticated user is injected by the dispatcher and a model-supplied
// "user_id" key is silently dropped during decoding.

type createTaskParams struct {
	Title       string   `json:"title" validate:"required,max=255"`
	Description string   `json:"description" validate:"max=2000"`
	DueDate     string   `json:"due_date" validate:"omitempty"`
	Priority    string   `json:"priority" validate:"omitempty,priority"`
	Tags        []string `json:"tags" validate:"max=20,dive,min=1,max=50"`
}

type listTasksParams struct {
	Completed *bool  `json:"completed"`
	Priority  string `json:"priority" validate:"omitempty,priority"`
	Tag       string `json:"tag" validate:"omitempty,max=50"`
	DueBefore string `json:"due_before"`
	DueAfter  string `json:"due_after"`
	Offset    int    `json:"offset" validate:"min=0"`
	Limit     int    `json:"limit" validate:"min=0,max=100"`
}

type updateTaskParams struct {
	TaskID      string    `json:"task_id" validate:"required,uuid"`
	Title       *string   `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string   `json:"description" validate:"omitempty,max=2000"`
	DueDate     *string   `json:"due_date"`
	Priority    *string   `json:"priority" validate:"omitempty,priority"`
	Tags        *[]string `json:"tags" validate:"omitempty,max=20,dive,min=1,max=50"`
}

type deleteTaskParams struct {
	TaskID string `json:"task_id" validate:"required,uuid"`
}

type completeTaskParams struct {
	TaskID    string `json:"task_id" validate:"required,uuid"`
	Completed *bool  `json:"completed" validate:"required"`
}

type completeAllTasksParams struct {
	Completed    *bool  `json:"completed" validate:"required"`
	Confirm      bool   `json:"confirm"`
	StatusFilter string `json:"status_filter" validate:"omitempty,status_filter"`
}

type deleteAllTasksParams struct {
	Confirm      bool   `json:"confirm"`
	StatusFilter string `json:"status_filter" validate:"omitempty,status_filter"`
}

// decodeParams unmarshals raw tool arguments into a typed struct and runs
// its validation tags. The model sometimes emits an empty string instead of
// an empty object for no-argument calls.
func decodeParams[T any](raw string) (*T, error) {
	params := new(T)
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), params); err != nil {
			return nil, fmt.Errorf("malformed arguments: %w", err)
		}
	}
	if err := validation.Validate.Struct(params); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return params, nil
}

// parseDueDate accepts RFC 3339 timestamps and bare dates
func parseDueDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		t = t.UTC()
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		t = t.UTC()
		return &t, nil
	}
	return nil, fmt.Errorf("invalid date %q: use ISO 8601, e.g. 2025-06-01 or 2025-06-01T17:00:00Z", value)
}

// normalizeStatusFilter maps the advertised {all, pending, completed} enum
// onto the repository's optional filter, where "all" means no filter.
func normalizeStatusFilter(value string) *string {
	if value == "" || value == "all" {
		return nil
	}
	return &value
}
