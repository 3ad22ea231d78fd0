package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/taskpilot/taskpilot/internal/database"
	"github.com/taskpilot/taskpilot/internal/middleware"
	"github.com/taskpilot/taskpilot/internal/models"
)

type memTaskStore struct {
	tasks map[uuid.UUID]*models.Task
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[uuid.UUID]*models.Task)}
}

func (s *memTaskStore) Create(_ context.Context, task *models.Task) error {
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	s.tasks[task.ID] = task
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
		out = append(out, task)
	}
	return out, nil
}

func (s *memTaskStore) Update(_ context.Context, task *models.Task) error {
	existing, ok := s.tasks[task.ID]
	if !ok || existing.UserID != task.UserID {
		return database.ErrTaskNotFound
	}
	task.UpdatedAt = time.Now()
	s.tasks[task.ID] = task
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

func (s *memTaskStore) CountMatching(context.Context, uuid.UUID, *string) (int, error) {
	return len(s.tasks), nil
}

func (s *memTaskStore) CompleteAll(context.Context, uuid.UUID, bool, *string) (int64, error) {
	return 0, nil
}

func (s *memTaskStore) DeleteAll(context.Context, uuid.UUID, *string) (int64, error) {
	return 0, nil
}

func (s *memTaskStore) CountChainInstances(context.Context, uuid.UUID) (int, error) {
	return 0, nil
}

func taskTestRouter(store *memTaskStore) *mux.Router {
	r := mux.NewRouter()
	NewTaskHandler(store).RegisterRoutes(r.PathPrefix("/tasks").Subrouter())
	return r
}

func doTaskRequest(router *mux.Router, user *models.User, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if user != nil {
		req = req.WithContext(middleware.SetUserInContext(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeTask(t *testing.T, rec *httptest.ResponseRecorder) *models.Task {
	t.Helper()
	var envelope struct {
		Data *models.Task `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	return envelope.Data
}

func TestCreateTask_REST(t *testing.T) {
	t.Parallel()

	router := taskTestRouter(newMemTaskStore())
	user := &models.User{ID: uuid.New()}

	rec := doTaskRequest(router, user, http.MethodPost, "/tasks",
		`{"title":"Water the plants","priority":"high","due_date":"2026-09-05","recurrence":{"frequency":"weekly","interval":1}}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	task := decodeTask(t, rec)
	if task.Title != "Water the plants" {
		t.Errorf("Unexpected title: %q", task.Title)
	}
	if task.Priority != models.PriorityHigh {
		t.Errorf("Unexpected priority: %q", task.Priority)
	}
	if task.UserID != user.ID {
		t.Errorf("Task assigned to wrong user: %s", task.UserID)
	}
	if task.DueDate == nil {
		t.Error("Expected due date to be set")
	}
	if task.Recurrence == nil || task.Recurrence.Frequency != models.FrequencyWeekly {
		t.Errorf("Unexpected recurrence: %+v", task.Recurrence)
	}
}

func TestCreateTask_Validation(t *testing.T) {
	t.Parallel()

	router := taskTestRouter(newMemTaskStore())
	user := &models.User{ID: uuid.New()}

	tests := []struct {
		name string
		body string
	}{
		{name: "missing title", body: `{"priority":"high"}`},
		{name: "bad priority", body: `{"title":"x","priority":"urgent"}`},
		{name: "bad recurrence frequency", body: `{"title":"x","recurrence":{"frequency":"hourly","interval":1}}`},
		{name: "bad due date", body: `{"title":"x","due_date":"tomorrow"}`},
		{name: "invalid json", body: `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := doTaskRequest(router, user, http.MethodPost, "/tasks", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGetTask_OwnershipEnforced(t *testing.T) {
	t.Parallel()

	store := newMemTaskStore()
	router := taskTestRouter(store)
	owner := &models.User{ID: uuid.New()}
	other := &models.User{ID: uuid.New()}

	rec := doTaskRequest(router, owner, http.MethodPost, "/tasks", `{"title":"private"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", rec.Code)
	}
	task := decodeTask(t, rec)

	rec = doTaskRequest(router, owner, http.MethodGet, "/tasks/"+task.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Errorf("Owner read: expected 200, got %d", rec.Code)
	}

	rec = doTaskRequest(router, other, http.MethodGet, "/tasks/"+task.ID.String(), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Cross-user read: expected 404, got %d", rec.Code)
	}
}

func TestUpdateTask_PartialFields(t *testing.T) {
	t.Parallel()

	store := newMemTaskStore()
	router := taskTestRouter(store)
	user := &models.User{ID: uuid.New()}

	rec := doTaskRequest(router, user, http.MethodPost, "/tasks", `{"title":"draft report","priority":"low"}`)
	task := decodeTask(t, rec)

	rec = doTaskRequest(router, user, http.MethodPatch, "/tasks/"+task.ID.String(), `{"completed":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	updated := decodeTask(t, rec)
	if !updated.Completed {
		t.Error("Expected task to be completed")
	}
	if updated.Title != "draft report" {
		t.Errorf("Title must be untouched, got %q", updated.Title)
	}
	if updated.Priority != models.PriorityLow {
		t.Errorf("Priority must be untouched, got %q", updated.Priority)
	}
}

func TestDeleteTask_REST(t *testing.T) {
	t.Parallel()

	store := newMemTaskStore()
	router := taskTestRouter(store)
	user := &models.User{ID: uuid.New()}

	rec := doTaskRequest(router, user, http.MethodPost, "/tasks", `{"title":"ephemeral"}`)
	task := decodeTask(t, rec)

	rec = doTaskRequest(router, user, http.MethodDelete, "/tasks/"+task.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	rec = doTaskRequest(router, user, http.MethodGet, "/tasks/"+task.ID.String(), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", rec.Code)
	}
}

func TestListTasks_Filters(t *testing.T) {
	t.Parallel()

	store := newMemTaskStore()
	router := taskTestRouter(store)
	user := &models.User{ID: uuid.New()}

	doTaskRequest(router, user, http.MethodPost, "/tasks", `{"title":"a","priority":"high"}`)
	doTaskRequest(router, user, http.MethodPost, "/tasks", `{"title":"b","priority":"low"}`)

	rec := doTaskRequest(router, user, http.MethodGet, "/tasks?priority=high", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var envelope struct {
		Data ListTasksResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if envelope.Data.Count != 1 {
		t.Errorf("Expected 1 task, got %d", envelope.Data.Count)
	}

	rec = doTaskRequest(router, user, http.MethodGet, "/tasks?priority=urgent", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid priority, got %d", rec.Code)
	}
}

func TestTasks_Unauthenticated(t *testing.T) {
	t.Parallel()

	router := taskTestRouter(newMemTaskStore())

	rec := doTaskRequest(router, nil, http.MethodGet, "/tasks", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}
