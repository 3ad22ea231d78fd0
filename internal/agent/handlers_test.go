package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskpilot/taskpilot/internal/database"
	"github.com/taskpilot/taskpilot/internal/models"
	"github.com/taskpilot/taskpilot/internal/services/recurrence"
)

// memTaskStore is an in-memory TaskStore for handler tests
type memTaskStore struct {
	tasks map[uuid.UUID]*models.Task
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[uuid.UUID]*models.Task)}
}

func (s *memTaskStore) Create(_ context.Context, task *models.Task) error {
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

func (s *memTaskStore) GetByID(_ context.Context, id, userID uuid.UUID) (*models.Task, error) {
	task, ok := s.tasks[id]
	if !ok || task.UserID != userID {
		return nil, database.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

func (s *memTaskStore) List(_ context.Context, userID uuid.UUID, filter database.TaskFilter) ([]*models.Task, error) {
	var out []*models.Task
	for _, task := range s.tasks {
		if task.UserID != userID {
			continue
		}
		if filter.Completed != nil && task.Completed != *filter.Completed {
			continue
		}
		if filter.Priority != nil && task.Priority != *filter.Priority {
			continue
		}
		copied := *task
		out = append(out, &copied)
	}
	return out, nil
}

func (s *memTaskStore) Update(_ context.Context, task *models.Task) error {
	existing, ok := s.tasks[task.ID]
	if !ok || existing.UserID != task.UserID {
		return database.ErrTaskNotFound
	}
	task.UpdatedAt = time.Now().UTC()
	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

func (s *memTaskStore) Delete(_ context.Context, id, userID uuid.UUID) error {
	task, ok := s.tasks[id]
	if !ok || task.UserID != userID {
		return database.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *memTaskStore) CountMatching(_ context.Context, userID uuid.UUID, statusFilter *string) (int, error) {
	count := 0
	for _, task := range s.tasks {
		if task.UserID != userID {
			continue
		}
		if !matchesStatus(task, statusFilter) {
			continue
		}
		count++
	}
	return count, nil
}

func (s *memTaskStore) CompleteAll(_ context.Context, userID uuid.UUID, completed bool, statusFilter *string) (int64, error) {
	var affected int64
	for _, task := range s.tasks {
		if task.UserID != userID || !matchesStatus(task, statusFilter) {
			continue
		}
		if task.Completed != completed {
			task.Completed = completed
			affected++
		}
	}
	return affected, nil
}

func (s *memTaskStore) DeleteAll(_ context.Context, userID uuid.UUID, statusFilter *string) (int64, error) {
	var affected int64
	for id, task := range s.tasks {
		if task.UserID != userID || !matchesStatus(task, statusFilter) {
			continue
		}
		delete(s.tasks, id)
		affected++
	}
	return affected, nil
}

func (s *memTaskStore) CountChainInstances(_ context.Context, rootID uuid.UUID) (int, error) {
	count := 0
	for _, task := range s.tasks {
		if task.ID == rootID || (task.ParentTaskID != nil && *task.ParentTaskID == rootID) {
			count++
		}
	}
	return count, nil
}

func matchesStatus(task *models.Task, statusFilter *string) bool {
	if statusFilter == nil {
		return true
	}
	if *statusFilter == "pending" {
		return !task.Completed
	}
	return task.Completed
}

func newTestRegistry(t *testing.T, store *memTaskStore) *Registry {
	t.Helper()
	logger := zap.NewNop()
	registry, err := NewRegistry(store, recurrence.NewService(store, logger), logger)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return registry
}

func seedTasks(store *memTaskStore, userID uuid.UUID, n int, completed bool) {
	for i := 0; i < n; i++ {
		id := uuid.New()
		store.tasks[id] = &models.Task{
			ID:        id,
			UserID:    userID,
			Title:     fmt.Sprintf("task %d", i),
			Priority:  models.PriorityMedium,
			Completed: completed,
		}
	}
}

func TestCreateTask(t *testing.T) {
	t.Parallel()

	store := newMemTaskStore()
	registry := newTestRegistry(t, store)
	userID := uuid.New()

	outcome := registry.Dispatch(context.Background(), userID,
		"create_task", `{"title":"buy milk","priority":"high","due_date":"2025-06-01","tags":["errand"]}`)

	if !outcome.Success {
		t.Fatalf("Dispatch() failed: %v", outcome.Payload)
	}
	if len(outcome.Tasks) != 1 {
		t.Fatalf("got %d task references, want 1", len(outcome.Tasks))
	}
	if len(store.tasks) != 1 {
		t.Fatalf("store holds %d tasks, want 1", len(store.tasks))
	}
	for _, task := range store.tasks {
		if task.UserID != userID {
			t.Errorf("task owner = %v, want %v", task.UserID, userID)
		}
		if task.Priority != models.PriorityHigh {
			t.Errorf("priority = %v, want high", task.Priority)
		}
		if task.DueDate == nil {
			t.Error("due date not set")
		}
	}
}

func TestCreateTask_ValidationFailure(t *testing.T) {
	t.Parallel()

	store := newMemTaskStore()
	registry := newTestRegistry(t, store)

	tests := []struct {
		name string
		args string
	}{
		{name: "missing title", args: `{"priority":"high"}`},
		{name: "bad priority", args: `{"title":"x","priority":"urgent"}`},
		{name: "malformed json", args: `{"title":`},
		{name: "bad due date", args: `{"title":"x","due_date":"next tuesday"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			outcome := registry.Dispatch(context.Background(), uuid.New(), "create_task", tt.args)
			if outcome.Success {
				t.Errorf("Dispatch(%q) succeeded, want structured failure", tt.args)
			}
			if outcome.Payload["error"] == "" {
				t.Error("failure envelope missing error field")
			}
		})
	}

	if len(store.tasks) != 0 {
		t.Errorf("store holds %d tasks after failed creates, want 0", len(store.tasks))
	}
}

func TestDispatch_UserIDNeverTrustedFromArguments(t *testing.T) {
	t.Parallel()

	store := newMemTaskStore()
	registry := newTestRegistry(t, store)

	authenticated := uuid.New()
	impersonated := uuid.New()

	// A prompted model might slip a user_id into the arguments; the
	// authenticated identity must win.
	args := fmt.Sprintf(`{"title":"sneaky","user_id":"%s"}`, impersonated)
	outcome := registry.Dispatch(context.Background(), authenticated, "create_task", args)
	if !outcome.Success {
		t.Fatalf("Dispatch() failed: %v", outcome.Payload)
	}

	for _, task := range store.tasks {
		if task.UserID != authenticated {
			t.Errorf("task owner = %v, want authenticated user %v", task.UserID, authenticated)
		}
	}

	// The same holds for reads: a victim's tasks are invisible.
	seedTasks(store, impersonated, 3, false)
	listArgs := fmt.Sprintf(`{"user_id":"%s"}`, impersonated)
	listOutcome := registry.Dispatch(context.Background(), authenticated, "list_tasks", listArgs)
	if !listOutcome.Success {
		t.Fatalf("list Dispatch() failed: %v", listOutcome.Payload)
	}
	if count := listOutcome.Payload["count"].(int); count != 1 {
		t.Errorf("list returned %d tasks, want only the authenticated user's 1", count)
	}
}

func TestDispatch_UnknownTool(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, newMemTaskStore())

	outcome := registry.Dispatch(context.Background(), uuid.New(), "drop_database", "{}")
	if outcome.Success {
		t.Fatal("unknown tool dispatch succeeded, want structured failure")
	}
	if outcome.Payload["error"] != "Unknown tool: drop_database" {
		t.Errorf("error = %v", outcome.Payload["error"])
	}
}

func TestDeleteAllTasks_ConfirmationGate(t *testing.T) {
	t.Parallel()

	store := newMemTaskStore()
	registry := newTestRegistry(t, store)
	userID := uuid.New()
	seedTasks(store, userID, 5, false)

	// Phase one: confirm=false counts without mutating
	outcome := registry.Dispatch(context.Background(), userID, "delete_all_tasks", `{"confirm":false}`)
	if !outcome.Success {
		t.Fatalf("unconfirmed Dispatch() failed: %v", outcome.Payload)
	}
	if outcome.Payload["requires_confirmation"] != true {
		t.Error("unconfirmed call should require confirmation")
	}
	if outcome.Payload["match_count"] != 5 {
		t.Errorf("match_count = %v, want 5", outcome.Payload["match_count"])
	}
	if len(store.tasks) != 5 {
		t.Fatalf("unconfirmed call deleted rows: %d tasks remain, want 5", len(store.tasks))
	}

	// Phase two: confirm=true deletes exactly the counted rows
	outcome = registry.Dispatch(context.Background(), userID, "delete_all_tasks", `{"confirm":true}`)
	if !outcome.Success {
		t.Fatalf("confirmed Dispatch() failed: %v", outcome.Payload)
	}
	if outcome.Payload["affected_count"] != int64(5) {
		t.Errorf("affected_count = %v, want 5", outcome.Payload["affected_count"])
	}
	if len(store.tasks) != 0 {
		t.Errorf("%d tasks remain after confirmed delete, want 0", len(store.tasks))
	}

	// Empty matching set fails in both phases, no confirmation semantics
	outcome = registry.Dispatch(context.Background(), userID, "delete_all_tasks", `{"confirm":true}`)
	if outcome.Success {
		t.Fatal("confirmed delete against empty set should fail")
	}
	if outcome.Payload["error"] != "No tasks found" {
		t.Errorf("error = %v, want \"No tasks found\"", outcome.Payload["error"])
	}
}

func TestCompleteAllTasks_StatusFilter(t *testing.T) {
	t.Parallel()

	store := newMemTaskStore()
	registry := newTestRegistry(t, store)
	userID := uuid.New()
	seedTasks(store, userID, 3, false)
	seedTasks(store, userID, 2, true)

	outcome := registry.Dispatch(context.Background(), userID, "complete_all_tasks",
		`{"completed":true,"confirm":false,"status_filter":"pending"}`)
	if !outcome.Success {
		t.Fatalf("Dispatch() failed: %v", outcome.Payload)
	}
	if outcome.Payload["match_count"] != 3 {
		t.Errorf("match_count = %v, want 3 pending tasks", outcome.Payload["match_count"])
	}

	outcome = registry.Dispatch(context.Background(), userID, "complete_all_tasks",
		`{"completed":true,"confirm":true,"status_filter":"pending"}`)
	if !outcome.Success {
		t.Fatalf("confirmed Dispatch() failed: %v", outcome.Payload)
	}
	if outcome.Payload["affected_count"] != int64(3) {
		t.Errorf("affected_count = %v, want 3", outcome.Payload["affected_count"])
	}
}

func TestCompleteTask_SpawnsRecurringInstance(t *testing.T) {
	t.Parallel()

	store := newMemTaskStore()
	registry := newTestRegistry(t, store)
	userID := uuid.New()

	due := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	taskID := uuid.New()
	store.tasks[taskID] = &models.Task{
		ID:       taskID,
		UserID:   userID,
		Title:    "water plants",
		Priority: models.PriorityLow,
		DueDate:  &due,
		Recurrence: &models.RecurrenceRule{
			Frequency: models.FrequencyDaily,
			Interval:  1,
		},
	}

	args := fmt.Sprintf(`{"task_id":"%s","completed":true}`, taskID)
	outcome := registry.Dispatch(context.Background(), userID, "complete_task", args)
	if !outcome.Success {
		t.Fatalf("Dispatch() failed: %v", outcome.Payload)
	}

	if len(store.tasks) != 2 {
		t.Fatalf("store holds %d tasks, want root plus one spawned instance", len(store.tasks))
	}
	next, ok := outcome.Payload["next_task"].(models.TaskReference)
	if !ok {
		t.Fatalf("payload missing next_task: %v", outcome.Payload)
	}
	if next.DueDate == nil || *next.DueDate != "2025-01-02T00:00:00Z" {
		t.Errorf("next due date = %v, want 2025-01-02", next.DueDate)
	}
	if len(outcome.Tasks) != 2 {
		t.Errorf("got %d task references, want completed task plus spawned instance", len(outcome.Tasks))
	}

	// Reopening does not retract the generated instance
	args = fmt.Sprintf(`{"task_id":"%s","completed":false}`, taskID)
	outcome = registry.Dispatch(context.Background(), userID, "complete_task", args)
	if !outcome.Success {
		t.Fatalf("reopen Dispatch() failed: %v", outcome.Payload)
	}
	if len(store.tasks) != 2 {
		t.Errorf("store holds %d tasks after reopening, want 2", len(store.tasks))
	}
}

func TestCompleteTask_NotFound(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, newMemTaskStore())

	args := fmt.Sprintf(`{"task_id":"%s","completed":true}`, uuid.New())
	outcome := registry.Dispatch(context.Background(), uuid.New(), "complete_task", args)
	if outcome.Success {
		t.Fatal("Dispatch() for missing task succeeded, want structured failure")
	}
	if outcome.Payload["error"] != "Task not found" {
		t.Errorf("error = %v, want \"Task not found\"", outcome.Payload["error"])
	}
}

func TestOutcomePayloadSerializes(t *testing.T) {
	t.Parallel()

	store := newMemTaskStore()
	registry := newTestRegistry(t, store)
	userID := uuid.New()
	seedTasks(store, userID, 2, false)

	outcome := registry.Dispatch(context.Background(), userID, "list_tasks", "")
	if !outcome.Success {
		t.Fatalf("Dispatch() failed: %v", outcome.Payload)
	}
	if _, err := json.Marshal(outcome.Payload); err != nil {
		t.Errorf("payload does not serialize: %v", err)
	}
}
