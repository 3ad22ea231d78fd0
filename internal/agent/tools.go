package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"

	"github.com/taskpilot/taskpilot/internal/database"
	"github.com/taskpilot/taskpilot/internal/models"
	"github.com/taskpilot/taskpilot/internal/services/recurrence"
)

// ToolKind enumerates the tools advertised to the model. The registry is
// checked at construction time: every kind must be bound to a handler and
// a unique name, so a missing binding fails startup instead of a request.
type ToolKind int

const (
	ToolCreateTask ToolKind = iota
	ToolListTasks
	ToolUpdateTask
	ToolDeleteTask
	ToolCompleteTask
	ToolCompleteAllTasks
	ToolDeleteAllTasks

	toolKindCount
)

// Name returns the wire name advertised to the model
func (k ToolKind) Name() string {
	switch k {
	case ToolCreateTask:
		return "create_task"
	case ToolListTasks:
		return "list_tasks"
	case ToolUpdateTask:
		return "update_task"
	case ToolDeleteTask:
		return "delete_task"
	case ToolCompleteTask:
		return "complete_task"
	case ToolCompleteAllTasks:
		return "complete_all_tasks"
	case ToolDeleteAllTasks:
		return "delete_all_tasks"
	}
	return fmt.Sprintf("ToolKind(%d)", int(k))
}

// Destructive reports whether the tool requires the two-phase confirmation
// handshake before mutating data in bulk.
func (k ToolKind) Destructive() bool {
	return k == ToolCompleteAllTasks || k == ToolDeleteAllTasks
}

// Outcome is the structured envelope every handler produces. Handlers
// never return Go errors for domain conditions; "not found" and validation
// problems come back as Success=false payloads the model can explain
// conversationally.
type Outcome struct {
	Success bool
	Payload map[string]any
	Tasks   []models.TaskReference
}

type handlerFunc func(ctx context.Context, userID uuid.UUID, rawArgs string) Outcome

// toolEntry pairs a tool's declaration with its handler
type toolEntry struct {
	kind        ToolKind
	description string
	parameters  shared.FunctionParameters
	handler     handlerFunc
}

// Registry maps tool kinds to handlers and owns the declarations sent to
// the model. The caller's user id is injected into every dispatch from the
// authenticated request context; tool arguments never carry identity.
type Registry struct {
	tasks      database.TaskStore
	recurrence *recurrence.Service
	logger     *zap.Logger

	entries []toolEntry
	byName  map[string]ToolKind
}

// NewRegistry builds and checks the tool table
func NewRegistry(tasks database.TaskStore, recur *recurrence.Service, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		tasks:      tasks,
		recurrence: recur,
		logger:     logger,
	}

	r.entries = []toolEntry{
		{
			kind:        ToolCreateTask,
			description: "Create a new task in the user's list. Use this when the user wants to create, add, or remind themselves about a task. Parameters: title (required), description (optional), due_date (optional, ISO 8601 date or timestamp), priority (optional: low/medium/high), tags (optional list of strings).",
			parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{
						"type":        "string",
						"description": "Task title",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Longer task description",
					},
					"due_date": map[string]any{
						"type":        "string",
						"description": "Due date in ISO 8601 format, e.g. 2025-06-01 or 2025-06-01T17:00:00Z",
					},
					"priority": map[string]any{
						"type": "string",
						"enum": []string{"low", "medium", "high"},
					},
					"tags": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
				},
				"required": []string{"title"},
			},
			handler: r.createTask,
		},
		{
			kind:        ToolListTasks,
			description: "List the user's tasks, optionally filtered by completion status, priority, tag, or due date range. Returns tasks with their details.",
			parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"completed": map[string]any{
						"type":        "boolean",
						"description": "Filter by completion status",
					},
					"priority": map[string]any{
						"type": "string",
						"enum": []string{"low", "medium", "high"},
					},
					"tag": map[string]any{
						"type":        "string",
						"description": "Only tasks carrying this exact tag",
					},
					"due_after": map[string]any{
						"type":        "string",
						"description": "Only tasks due on or after this ISO 8601 date",
					},
					"due_before": map[string]any{
						"type":        "string",
						"description": "Only tasks due on or before this ISO 8601 date",
					},
					"offset": map[string]any{
						"type": "integer",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Page size, at most 100",
					},
				},
			},
			handler: r.listTasks,
		},
		{
			kind:        ToolUpdateTask,
			description: "Update an existing task. Parameters: task_id (required), title, description, due_date, priority, tags (all optional; only supplied fields change).",
			parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"task_id": map[string]any{
						"type":        "string",
						"description": "ID of the task to update",
					},
					"title":       map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
					"due_date": map[string]any{
						"type":        "string",
						"description": "New due date in ISO 8601 format",
					},
					"priority": map[string]any{
						"type": "string",
						"enum": []string{"low", "medium", "high"},
					},
					"tags": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
				},
				"required": []string{"task_id"},
			},
			handler: r.updateTask,
		},
		{
			kind:        ToolDeleteTask,
			description: "Delete a single task permanently. Parameters: task_id (required).",
			parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"task_id": map[string]any{
						"type":        "string",
						"description": "ID of the task to delete",
					},
				},
				"required": []string{"task_id"},
			},
			handler: r.deleteTask,
		},
		{
			kind:        ToolCompleteTask,
			description: "Mark a single task as completed or incomplete. Completing a recurring task schedules its next occurrence. Parameters: task_id (required), completed (boolean, required).",
			parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"task_id": map[string]any{
						"type":        "string",
						"description": "ID of the task",
					},
					"completed": map[string]any{
						"type":        "boolean",
						"description": "true to complete, false to reopen",
					},
				},
				"required": []string{"task_id", "completed"},
			},
			handler: r.completeTask,
		},
		{
			kind:        ToolCompleteAllTasks,
			description: "Mark every matching task as completed or incomplete. Destructive: call once with confirm=false to get the affected count, then again with confirm=true after the user agrees. Parameters: completed (boolean, required), confirm (boolean), status_filter (optional: all/pending/completed).",
			parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"completed": map[string]any{
						"type":        "boolean",
						"description": "true to mark all complete, false to mark all incomplete",
					},
					"confirm": map[string]any{
						"type":        "boolean",
						"description": "Must be true to actually perform the change",
					},
					"status_filter": map[string]any{
						"type": "string",
						"enum": []string{"all", "pending", "completed"},
					},
				},
				"required": []string{"completed"},
			},
			handler: r.completeAllTasks,
		},
		{
			kind:        ToolDeleteAllTasks,
			description: "Delete every matching task permanently. Destructive: call once with confirm=false to get the affected count, then again with confirm=true after the user agrees. Parameters: confirm (boolean), status_filter (optional: all/pending/completed).",
			parameters: shared.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"confirm": map[string]any{
						"type":        "boolean",
						"description": "Must be true to actually delete",
					},
					"status_filter": map[string]any{
						"type": "string",
						"enum": []string{"all", "pending", "completed"},
					},
				},
			},
			handler: r.deleteAllTasks,
		},
	}

	if len(r.entries) != int(toolKindCount) {
		return nil, fmt.Errorf("tool registry has %d entries, want %d", len(r.entries), toolKindCount)
	}

	r.byName = make(map[string]ToolKind, len(r.entries))
	for i, entry := range r.entries {
		name := entry.kind.Name()
		if entry.kind != ToolKind(i) {
			return nil, fmt.Errorf("tool %q is out of order in the registry", name)
		}
		if _, dup := r.byName[name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", name)
		}
		if entry.handler == nil {
			return nil, fmt.Errorf("tool %q has no handler", name)
		}
		r.byName[name] = entry.kind
	}

	return r, nil
}

// Declarations returns the tool schemas advertised to the model
func (r *Registry) Declarations() []openai.ChatCompletionToolUnionParam {
	tools := make([]openai.ChatCompletionToolUnionParam, 0, len(r.entries))
	for _, entry := range r.entries {
		tools = append(tools, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        entry.kind.Name(),
			Description: openai.String(entry.description),
			Parameters:  entry.parameters,
		}))
	}
	return tools
}

// Dispatch resolves a model-requested tool call and runs it as the
// authenticated user. A name outside the registry yields a structured
// failure rather than an error; the model can recover conversationally.
func (r *Registry) Dispatch(ctx context.Context, userID uuid.UUID, name, rawArgs string) Outcome {
	kind, ok := r.byName[name]
	if !ok {
		r.logger.Warn("unknown_tool_requested",
			zap.String("tool", name),
		)
		return failure(fmt.Sprintf("Unknown tool: %s", name), "That operation is not available.")
	}

	return r.entries[kind].handler(ctx, userID, rawArgs)
}

// failure builds the standard error envelope
func failure(errMsg, human string) Outcome {
	return Outcome{
		Success: false,
		Payload: map[string]any{
			"success": false,
			"error":   errMsg,
			"message": human,
		},
	}
}
