package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskpilot/taskpilot/internal/database"
	"github.com/taskpilot/taskpilot/internal/models"
)

func (r *Registry) createTask(ctx context.Context, userID uuid.UUID, rawArgs string) Outcome {
	params, err := decodeParams[createTaskParams](rawArgs)
	if err != nil {
		return failure(err.Error(), "I couldn't create that task because the details were invalid.")
	}

	dueDate, err := parseDueDate(params.DueDate)
	if err != nil {
		return failure(err.Error(), "I couldn't understand that due date.")
	}

	priority := models.PriorityMedium
	if params.Priority != "" {
		priority = models.Priority(params.Priority)
	}

	task := &models.Task{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       params.Title,
		Description: params.Description,
		Priority:    priority,
		Tags:        params.Tags,
		DueDate:     dueDate,
	}

	if err := r.tasks.Create(ctx, task); err != nil {
		r.logger.Error("tool_create_task_failed", zap.Error(err))
		return failure("Failed to create task", "Something went wrong while creating the task.")
	}

	ref := models.NewTaskReference(task)
	return Outcome{
		Success: true,
		Payload: map[string]any{
			"success": true,
			"task":    ref,
			"message": fmt.Sprintf("Created task %q", task.Title),
		},
		Tasks: []models.TaskReference{ref},
	}
}

func (r *Registry) listTasks(ctx context.Context, userID uuid.UUID, rawArgs string) Outcome {
	params, err := decodeParams[listTasksParams](rawArgs)
	if err != nil {
		return failure(err.Error(), "I couldn't list tasks with those filters.")
	}

	filter := database.TaskFilter{
		Completed: params.Completed,
		Offset:    params.Offset,
		Limit:     params.Limit,
	}
	if params.Priority != "" {
		p := models.Priority(params.Priority)
		filter.Priority = &p
	}
	if params.Tag != "" {
		filter.Tag = &params.Tag
	}
	if filter.DueAfter, err = parseDueDate(params.DueAfter); err != nil {
		return failure(err.Error(), "I couldn't understand that date range.")
	}
	if filter.DueBefore, err = parseDueDate(params.DueBefore); err != nil {
		return failure(err.Error(), "I couldn't understand that date range.")
	}

	tasks, err := r.tasks.List(ctx, userID, filter)
	if err != nil {
		r.logger.Error("tool_list_tasks_failed", zap.Error(err))
		return failure("Failed to list tasks", "Something went wrong while fetching tasks.")
	}

	refs := make([]models.TaskReference, 0, len(tasks))
	for _, t := range tasks {
		refs = append(refs, models.NewTaskReference(t))
	}

	return Outcome{
		Success: true,
		Payload: map[string]any{
			"success": true,
			"tasks":   refs,
			"count":   len(refs),
			"message": fmt.Sprintf("Found %d task(s)", len(refs)),
		},
	}
}

func (r *Registry) updateTask(ctx context.Context, userID uuid.UUID, rawArgs string) Outcome {
	params, err := decodeParams[updateTaskParams](rawArgs)
	if err != nil {
		return failure(err.Error(), "I couldn't update that task because the details were invalid.")
	}

	taskID := uuid.MustParse(params.TaskID)
	task, err := r.tasks.GetByID(ctx, taskID, userID)
	if errors.Is(err, database.ErrTaskNotFound) {
		return failure("Task not found", "I couldn't find that task.")
	}
	if err != nil {
		r.logger.Error("tool_update_task_failed", zap.Error(err))
		return failure("Failed to update task", "Something went wrong while updating the task.")
	}

	if params.Title != nil {
		task.Title = *params.Title
	}
	if params.Description != nil {
		task.Description = *params.Description
	}
	if params.Priority != nil {
		task.Priority = models.Priority(*params.Priority)
	}
	if params.Tags != nil {
		task.Tags = *params.Tags
	}
	if params.DueDate != nil {
		dueDate, err := parseDueDate(*params.DueDate)
		if err != nil {
			return failure(err.Error(), "I couldn't understand that due date.")
		}
		task.DueDate = dueDate
	}

	if err := r.tasks.Update(ctx, task); err != nil {
		r.logger.Error("tool_update_task_failed", zap.Error(err))
		return failure("Failed to update task", "Something went wrong while updating the task.")
	}

	ref := models.NewTaskReference(task)
	return Outcome{
		Success: true,
		Payload: map[string]any{
			"success": true,
			"task":    ref,
			"message": fmt.Sprintf("Updated task %q", task.Title),
		},
		Tasks: []models.TaskReference{ref},
	}
}

func (r *Registry) deleteTask(ctx context.Context, userID uuid.UUID, rawArgs string) Outcome {
	params, err := decodeParams[deleteTaskParams](rawArgs)
	if err != nil {
		return failure(err.Error(), "I couldn't delete that task because the id was invalid.")
	}

	taskID := uuid.MustParse(params.TaskID)
	err = r.tasks.Delete(ctx, taskID, userID)
	if errors.Is(err, database.ErrTaskNotFound) {
		return failure("Task not found", "I couldn't find that task.")
	}
	if err != nil {
		r.logger.Error("tool_delete_task_failed", zap.Error(err))
		return failure("Failed to delete task", "Something went wrong while deleting the task.")
	}

	return Outcome{
		Success: true,
		Payload: map[string]any{
			"success": true,
			"message": "Task deleted",
		},
	}
}

func (r *Registry) completeTask(ctx context.Context, userID uuid.UUID, rawArgs string) Outcome {
	params, err := decodeParams[completeTaskParams](rawArgs)
	if err != nil {
		return failure(err.Error(), "I couldn't change that task's status because the details were invalid.")
	}

	taskID := uuid.MustParse(params.TaskID)
	task, err := r.tasks.GetByID(ctx, taskID, userID)
	if errors.Is(err, database.ErrTaskNotFound) {
		return failure("Task not found", "I couldn't find that task.")
	}
	if err != nil {
		r.logger.Error("tool_complete_task_failed", zap.Error(err))
		return failure("Failed to update task", "Something went wrong while updating the task.")
	}

	wasCompleted := task.Completed
	task.Completed = *params.Completed

	if err := r.tasks.Update(ctx, task); err != nil {
		r.logger.Error("tool_complete_task_failed", zap.Error(err))
		return failure("Failed to update task", "Something went wrong while updating the task.")
	}

	ref := models.NewTaskReference(task)
	payload := map[string]any{
		"success": true,
		"task":    ref,
	}
	refs := []models.TaskReference{ref}

	if task.Completed {
		payload["message"] = fmt.Sprintf("Marked %q as completed", task.Title)
	} else {
		payload["message"] = fmt.Sprintf("Marked %q as pending", task.Title)
	}

	// Completing a recurring task schedules its next occurrence. Reopening
	// one never retracts an instance that already exists.
	if !wasCompleted && task.Completed && task.Recurrence != nil && task.DueDate != nil {
		next, err := r.recurrence.SpawnNext(ctx, task)
		if err != nil {
			r.logger.Error("recurrence_spawn_failed",
				zap.String("task_id", task.ID.String()),
				zap.Error(err),
			)
		} else if next != nil {
			nextRef := models.NewTaskReference(next)
			payload["next_task"] = nextRef
			payload["message"] = fmt.Sprintf("Marked %q as completed. The next occurrence is due %s.",
				task.Title, next.DueDate.Format("2006-01-02"))
			refs = append(refs, nextRef)
		}
	}

	return Outcome{Success: true, Payload: payload, Tasks: refs}
}

func (r *Registry) completeAllTasks(ctx context.Context, userID uuid.UUID, rawArgs string) Outcome {
	params, err := decodeParams[completeAllTasksParams](rawArgs)
	if err != nil {
		return failure(err.Error(), "I couldn't run that bulk update because the details were invalid.")
	}

	statusFilter := normalizeStatusFilter(params.StatusFilter)
	matchCount, err := r.tasks.CountMatching(ctx, userID, statusFilter)
	if err != nil {
		r.logger.Error("tool_complete_all_failed", zap.Error(err))
		return failure("Failed to count tasks", "Something went wrong while checking your tasks.")
	}

	// An empty matching set is a no-op in both phases, never a
	// confirmation prompt.
	if matchCount == 0 {
		return failure("No tasks found", "You don't have any matching tasks.")
	}

	action := "completed"
	if !*params.Completed {
		action = "pending"
	}

	if !params.Confirm {
		return Outcome{
			Success: true,
			Payload: map[string]any{
				"success":               true,
				"requires_confirmation": true,
				"match_count":           matchCount,
				"message":               fmt.Sprintf("This will mark %d task(s) as %s. Ask the user to confirm before calling again with confirm=true.", matchCount, action),
			},
		}
	}

	affected, err := r.tasks.CompleteAll(ctx, userID, *params.Completed, statusFilter)
	if err != nil {
		r.logger.Error("tool_complete_all_failed", zap.Error(err))
		return failure("Failed to update tasks", "Something went wrong while updating your tasks.")
	}

	return Outcome{
		Success: true,
		Payload: map[string]any{
			"success":        true,
			"affected_count": affected,
			"message":        fmt.Sprintf("Marked %d task(s) as %s", affected, action),
		},
	}
}

func (r *Registry) deleteAllTasks(ctx context.Context, userID uuid.UUID, rawArgs string) Outcome {
	params, err := decodeParams[deleteAllTasksParams](rawArgs)
	if err != nil {
		return failure(err.Error(), "I couldn't run that bulk delete because the details were invalid.")
	}

	statusFilter := normalizeStatusFilter(params.StatusFilter)
	matchCount, err := r.tasks.CountMatching(ctx, userID, statusFilter)
	if err != nil {
		r.logger.Error("tool_delete_all_failed", zap.Error(err))
		return failure("Failed to count tasks", "Something went wrong while checking your tasks.")
	}

	if matchCount == 0 {
		return failure("No tasks found", "You don't have any matching tasks.")
	}

	if !params.Confirm {
		return Outcome{
			Success: true,
			Payload: map[string]any{
				"success":               true,
				"requires_confirmation": true,
				"match_count":           matchCount,
				"message":               fmt.Sprintf("This will permanently delete %d task(s). Ask the user to confirm before calling again with confirm=true.", matchCount),
			},
		}
	}

	affected, err := r.tasks.DeleteAll(ctx, userID, statusFilter)
	if err != nil {
		r.logger.Error("tool_delete_all_failed", zap.Error(err))
		return failure("Failed to delete tasks", "Something went wrong while deleting your tasks.")
	}

	return Outcome{
		Success: true,
		Payload: map[string]any{
			"success":        true,
			"affected_count": affected,
			"message":        fmt.Sprintf("Deleted %d task(s)", affected),
		},
	}
}
