package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/tendo-ai/tendo/internal/store"
)

// Domain error messages carried in tool result payloads.
const (
	msgTaskNotFound = "Task not found"
	msgAccessDenied = "Access denied"
)

func (r *Registry) registerBuiltins() {
	r.Register(&Tool{
		Name:        "add_task",
		Description: "Create a new task for the user",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "The task title/content",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "Optional task description",
				},
			},
			"required": []string{"title"},
		},
		Handler: r.handleAddTask,
	})

	r.Register(&Tool{
		Name:        "list_tasks",
		Description: "Retrieve tasks from the user's list",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"status": map[string]any{
					"type":        "string",
					"enum":        []string{"all", "pending", "completed"},
					"description": "Filter by status: all, pending, or completed",
				},
			},
		},
		Handler: r.handleListTasks,
	})

	r.Register(&Tool{
		Name:        "complete_task",
		Description: "Mark a task as complete",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task_id": map[string]any{
					"type":        "integer",
					"description": "The task ID to complete",
				},
			},
			"required": []string{"task_id"},
		},
		Handler: r.handleCompleteTask,
	})

	r.Register(&Tool{
		Name:        "delete_task",
		Description: "Delete a task",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task_id": map[string]any{
					"type":        "integer",
					"description": "The task ID to delete",
				},
			},
			"required": []string{"task_id"},
		},
		Handler: r.handleDeleteTask,
	})

	r.Register(&Tool{
		Name:        "update_task",
		Description: "Update a task's title or mark it incomplete",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task_id": map[string]any{
					"type":        "integer",
					"description": "The task ID to update",
				},
				"title": map[string]any{
					"type":        "string",
					"description": "New task title",
				},
				"completed": map[string]any{
					"type":        "boolean",
					"description": "Task completion status",
				},
			},
			"required": []string{"task_id"},
		},
		Handler: r.handleUpdateTask,
	})

	r.Register(&Tool{
		Name:        "get_task_summary",
		Description: "Get a comprehensive summary and statistics of the user's tasks including completion rates, productivity insights, and task breakdown",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: r.handleTaskSummary,
	})

	r.Register(&Tool{
		Name:        "get_productivity_insights",
		Description: "Get AI-friendly productivity insights and suggestions based on task patterns",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: r.handleProductivityInsights,
	})
}

func (r *Registry) handleAddTask(ctx context.Context, owner store.UserID, args map[string]any) (string, error) {
	title, _ := args["title"].(string)
	if title == "" {
		return errorPayload("title is required"), nil
	}

	content := title
	if desc, _ := args["description"].(string); desc != "" {
		content = fmt.Sprintf("%s - %s", title, desc)
	}

	task, err := r.store.CreateTask(owner, content)
	if err != nil {
		return "", err
	}

	return marshal(map[string]any{
		"task_id": task.ID,
		"status":  "created",
		"title":   task.Content,
	})
}

func (r *Registry) handleListTasks(ctx context.Context, owner store.UserID, args map[string]any) (string, error) {
	status, _ := args["status"].(string)
	if status == "" {
		status = store.FilterAll
	}

	tasks, err := r.store.ListTasks(owner, status)
	if err != nil {
		return "", err
	}

	// Always an array on the wire, even when empty.
	result := make([]map[string]any, 0, len(tasks))
	for _, t := range tasks {
		result = append(result, map[string]any{
			"id":        t.ID,
			"title":     t.Content,
			"completed": t.Completed,
		})
	}
	return marshal(result)
}

// ownedTask fetches a task and applies the ownership check, returning
// a domain error payload when the task is missing or foreign.
func (r *Registry) ownedTask(owner store.UserID, args map[string]any) (*store.Task, string, error) {
	taskID, ok := intArg(args, "task_id")
	if !ok {
		return nil, errorPayload("task_id is required"), nil
	}

	task, err := r.store.GetTask(taskID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errorPayload(msgTaskNotFound), nil
	}
	if err != nil {
		return nil, "", err
	}
	if task.UserID != owner {
		return nil, errorPayload(msgAccessDenied), nil
	}
	return task, "", nil
}

func (r *Registry) handleCompleteTask(ctx context.Context, owner store.UserID, args map[string]any) (string, error) {
	task, payload, err := r.ownedTask(owner, args)
	if task == nil {
		return payload, err
	}

	if err := r.store.SetTaskCompleted(task.ID, true); err != nil {
		return "", err
	}

	return marshal(map[string]any{
		"task_id": task.ID,
		"status":  "completed",
		"title":   task.Content,
	})
}

func (r *Registry) handleDeleteTask(ctx context.Context, owner store.UserID, args map[string]any) (string, error) {
	task, payload, err := r.ownedTask(owner, args)
	if task == nil {
		return payload, err
	}

	if err := r.store.DeleteTask(task.ID); err != nil {
		return "", err
	}

	return marshal(map[string]any{
		"task_id": task.ID,
		"status":  "deleted",
		"title":   task.Content,
	})
}

func (r *Registry) handleUpdateTask(ctx context.Context, owner store.UserID, args map[string]any) (string, error) {
	task, payload, err := r.ownedTask(owner, args)
	if task == nil {
		return payload, err
	}

	var content *string
	if title, ok := args["title"].(string); ok {
		content = &title
	}
	var completed *bool
	if c, ok := args["completed"].(bool); ok {
		completed = &c
	}

	updated, err := r.store.UpdateTask(task.ID, content, completed)
	if err != nil {
		return "", err
	}

	return marshal(map[string]any{
		"task_id":   updated.ID,
		"status":    "updated",
		"title":     updated.Content,
		"completed": updated.Completed,
	})
}
