package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/taskpilot/taskpilot/internal/database"
	"github.com/taskpilot/taskpilot/internal/middleware"
	"github.com/taskpilot/taskpilot/internal/models"
	"github.com/taskpilot/taskpilot/internal/validation"
)

// TaskHandler handles task-related requests
type TaskHandler struct {
	tasks database.TaskStore
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(tasks database.TaskStore) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// RegisterRoutes registers task routes on the given router
// The router should already have the /tasks prefix (e.g., from apiRouter.PathPrefix("/tasks"))
func (h *TaskHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListTasks).Methods("GET")
	r.HandleFunc("", h.CreateTask).Methods("POST")
	r.HandleFunc("/{id}", h.GetTask).Methods("GET")
	r.HandleFunc("/{id}", h.UpdateTask).Methods("PATCH")
	r.HandleFunc("/{id}", h.DeleteTask).Methods("DELETE")
}

// CreateTaskRequest represents a create task request
type CreateTaskRequest struct {
	Title       string                 `json:"title" validate:"required,min=1,max=255"`
	Description string                 `json:"description" validate:"max=2000"`
	Priority    string                 `json:"priority" validate:"omitempty,priority"`
	Tags        []string               `json:"tags"`
	DueDate     *string                `json:"due_date"`
	Recurrence  *models.RecurrenceRule `json:"recurrence"`
}

// UpdateTaskRequest represents an update task request
type UpdateTaskRequest struct {
	Title       *string                `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string                `json:"description,omitempty" validate:"omitempty,max=2000"`
	Priority    *string                `json:"priority,omitempty" validate:"omitempty,priority"`
	Tags        []string               `json:"tags,omitempty"`
	DueDate     *string                `json:"due_date,omitempty"`
	Completed   *bool                  `json:"completed,omitempty"`
	Recurrence  *models.RecurrenceRule `json:"recurrence,omitempty"`
}

// ListTasksResponse represents the response for listing tasks
type ListTasksResponse struct {
	Tasks  []*models.Task `json:"tasks"`
	Count  int            `json:"count"`
	Offset int            `json:"offset"`
	Limit  int            `json:"limit"`
}

// ListTasks lists tasks for the authenticated user
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	filter := database.TaskFilter{Limit: database.DefaultListLimit}

	q := r.URL.Query()
	if c := q.Get("completed"); c != "" {
		parsed, err := strconv.ParseBool(c)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "completed must be true or false")
			return
		}
		filter.Completed = &parsed
	}
	if p := q.Get("priority"); p != "" {
		if err := validation.ValidatePriority(p); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		priority := models.Priority(p)
		filter.Priority = &priority
	}
	if tag := q.Get("tag"); tag != "" {
		filter.Tag = &tag
	}
	if db := q.Get("due_before"); db != "" {
		t, err := parseDateParam(db)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "due_before must be an RFC 3339 timestamp or YYYY-MM-DD date")
			return
		}
		filter.DueBefore = &t
	}
	if da := q.Get("due_after"); da != "" {
		t, err := parseDateParam(da)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "due_after must be an RFC 3339 timestamp or YYYY-MM-DD date")
			return
		}
		filter.DueAfter = &t
	}
	if o := q.Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			filter.Offset = parsed
		}
	}
	if l := q.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			filter.Limit = parsed
		}
	}

	tasks, err := h.tasks.List(r.Context(), user.ID, filter)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve tasks")
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}

	respondJSON(w, http.StatusOK, ListTasksResponse{
		Tasks:  tasks,
		Count:  len(tasks),
		Offset: filter.Offset,
		Limit:  filter.Limit,
	})
}

// CreateTask creates a new task
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req CreateTaskRequest
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	if err := validateStruct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	req.Title = validation.SanitizeText(req.Title)
	if req.Title == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Title is required and cannot be empty after sanitization")
		return
	}

	task := &models.Task{
		ID:          uuid.New(),
		UserID:      user.ID,
		Title:       req.Title,
		Description: validation.SanitizeText(req.Description),
		Priority:    models.PriorityMedium,
		Tags:        req.Tags,
	}
	if req.Priority != "" {
		task.Priority = models.Priority(req.Priority)
	}
	if req.DueDate != nil {
		due, err := parseDateParam(*req.DueDate)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "due_date must be an RFC 3339 timestamp or YYYY-MM-DD date")
			return
		}
		task.DueDate = &due
	}
	if req.Recurrence != nil {
		req.Recurrence.Normalize()
		if err := req.Recurrence.Validate(); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		task.Recurrence = req.Recurrence
	}

	if err := h.tasks.Create(r.Context(), task); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create task")
		return
	}

	respondJSON(w, http.StatusCreated, task)
}

// GetTask retrieves a task by ID
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task ID")
		return
	}

	task, err := h.tasks.GetByID(r.Context(), id, user.ID)
	if err != nil {
		if errors.Is(err, database.ErrTaskNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve task")
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// UpdateTask partially updates a task
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task ID")
		return
	}

	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	if err := validateStruct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	ctx := r.Context()
	task, err := h.tasks.GetByID(ctx, id, user.ID)
	if err != nil {
		if errors.Is(err, database.ErrTaskNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve task")
		return
	}

	if req.Title != nil {
		title := validation.SanitizeText(*req.Title)
		if title == "" {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Title cannot be empty")
			return
		}
		task.Title = title
	}
	if req.Description != nil {
		task.Description = validation.SanitizeText(*req.Description)
	}
	if req.Priority != nil {
		task.Priority = models.Priority(*req.Priority)
	}
	if req.Tags != nil {
		task.Tags = req.Tags
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			task.DueDate = nil
		} else {
			due, err := parseDateParam(*req.DueDate)
			if err != nil {
				respondJSONError(w, http.StatusBadRequest, "Bad Request", "due_date must be an RFC 3339 timestamp or YYYY-MM-DD date")
				return
			}
			task.DueDate = &due
		}
	}
	if req.Completed != nil {
		task.Completed = *req.Completed
	}
	if req.Recurrence != nil {
		req.Recurrence.Normalize()
		if err := req.Recurrence.Validate(); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		task.Recurrence = req.Recurrence
	}

	if err := h.tasks.Update(ctx, task); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update task")
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// DeleteTask deletes a task
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task ID")
		return
	}

	if err := h.tasks.Delete(r.Context(), id, user.ID); err != nil {
		if errors.Is(err, database.ErrTaskNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to delete task")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"deleted": true, "id": id.String()})
}

// validateStruct runs struct validation and flattens the first failure into
// a user-facing message.
func validateStruct(v any) error {
	err := validation.Validate.Struct(v)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		return fmt.Errorf("validation failed: %s", validationErrors[0].Error())
	}
	return fmt.Errorf("validation failed")
}

// parseDateParam accepts RFC 3339 timestamps or bare dates.
func parseDateParam(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}
