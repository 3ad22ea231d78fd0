package models

import (
	"time"

	"github.com/google/uuid"
)

// Priority represents how urgent a task is
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority value
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

const (
	// MaxTitleLength is the maximum length of a task title
	MaxTitleLength = 255
	// MaxDescriptionLength is the maximum length of a task description
	MaxDescriptionLength = 2000
)

// Task represents a single item on a user's task list.
//
// ParentTaskID is set only on instances generated by the recurrence engine;
// it points at the root task of the recurrence chain.
type Task struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	Priority     Priority        `json:"priority"`
	Tags         []string        `json:"tags,omitempty"`
	DueDate      *time.Time      `json:"due_date,omitempty"`
	Completed    bool            `json:"completed"`
	Recurrence   *RecurrenceRule `json:"recurrence,omitempty"`
	ParentTaskID *uuid.UUID      `json:"parent_task_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// RootID returns the root of the task's recurrence chain: the parent for
// generated instances, the task itself otherwise.
func (t *Task) RootID() uuid.UUID {
	if t.ParentTaskID != nil {
		return *t.ParentTaskID
	}
	return t.ID
}

// TaskReference is the compact task view returned by the chat endpoint for
// tasks created or modified during a turn.
type TaskReference struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	Priority    string  `json:"priority,omitempty"`
	Completed   bool    `json:"completed"`
}

// NewTaskReference builds a TaskReference from a full task
func NewTaskReference(t *Task) TaskReference {
	ref := TaskReference{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Completed:   t.Completed,
	}
	if t.DueDate != nil {
		due := t.DueDate.UTC().Format(time.RFC3339)
		ref.DueDate = &due
	}
	return ref
}
