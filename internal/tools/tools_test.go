package tools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/tendo-ai/tendo/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, *store.Store, store.UserID, store.UserID) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	alice, err := st.CreateUser("alice", "alice@example.com", "", "hashed")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	bob, err := st.CreateUser("bob", "bob@example.com", "", "hashed")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	return NewRegistry(st), st, alice.ID, bob.ID
}

func decode(t *testing.T, payload string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		t.Fatalf("payload not valid JSON object: %v\n%s", err, payload)
	}
	return m
}

func TestRegistry_List(t *testing.T) {
	r, _, _, _ := newTestRegistry(t)

	defs := r.List()
	if len(defs) != 7 {
		t.Fatalf("expected 7 tool definitions, got %d", len(defs))
	}

	names := make(map[string]bool)
	for _, d := range defs {
		if d["type"] != "function" {
			t.Errorf("definition type = %v, want function", d["type"])
		}
		fn, ok := d["function"].(map[string]any)
		if !ok {
			t.Fatalf("missing function block in %v", d)
		}
		names[fn["name"].(string)] = true
	}

	for _, want := range []string{"add_task", "list_tasks", "complete_task",
		"delete_task", "update_task", "get_task_summary", "get_productivity_insights"} {
		if !names[want] {
			t.Errorf("missing tool %q", want)
		}
	}
}

func TestExecute_UnknownTool(t *testing.T) {
	r, _, alice, _ := newTestRegistry(t)

	result, err := r.Execute(context.Background(), alice, "hack_the_planet", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := decode(t, result)
	if got["error"] != "Unknown tool: hack_the_planet" {
		t.Errorf("error = %v", got["error"])
	}
}

func TestAddTask(t *testing.T) {
	r, st, alice, _ := newTestRegistry(t)

	result, err := r.Execute(context.Background(), alice, "add_task",
		map[string]any{"title": "Buy groceries"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := decode(t, result)
	if got["status"] != "created" || got["title"] != "Buy groceries" {
		t.Errorf("unexpected payload: %v", got)
	}

	tasks, _ := st.ListTasks(alice, store.FilterAll)
	if len(tasks) != 1 {
		t.Fatalf("expected task persisted, got %d", len(tasks))
	}
}

func TestAddTask_CombinesDescription(t *testing.T) {
	r, _, alice, _ := newTestRegistry(t)

	result, _ := r.Execute(context.Background(), alice, "add_task",
		map[string]any{"title": "Buy milk", "description": "2 liters"})
	got := decode(t, result)
	if got["title"] != "Buy milk - 2 liters" {
		t.Errorf("title = %v, want combined form", got["title"])
	}
}

func TestAddTask_MissingTitle(t *testing.T) {
	r, _, alice, _ := newTestRegistry(t)

	result, err := r.Execute(context.Background(), alice, "add_task", map[string]any{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := decode(t, result)
	if got["error"] != "title is required" {
		t.Errorf("error = %v", got["error"])
	}
}

func TestListTasks(t *testing.T) {
	r, st, alice, _ := newTestRegistry(t)

	t1, _ := st.CreateTask(alice, "done one")
	st.SetTaskCompleted(t1.ID, true)
	st.CreateTask(alice, "pending one")

	tests := []struct {
		status string
		want   int
	}{
		{"all", 2},
		{"pending", 1},
		{"completed", 1},
		{"", 2},
	}
	for _, tt := range tests {
		args := map[string]any{}
		if tt.status != "" {
			args["status"] = tt.status
		}
		result, err := r.Execute(context.Background(), alice, "list_tasks", args)
		if err != nil {
			t.Fatalf("Execute(list_tasks, %q): %v", tt.status, err)
		}
		var list []map[string]any
		if err := json.Unmarshal([]byte(result), &list); err != nil {
			t.Fatalf("list_tasks result not an array: %v\n%s", err, result)
		}
		if len(list) != tt.want {
			t.Errorf("status %q: got %d tasks, want %d", tt.status, len(list), tt.want)
		}
	}
}

func TestListTasks_EmptyIsArray(t *testing.T) {
	r, _, alice, _ := newTestRegistry(t)

	result, err := r.Execute(context.Background(), alice, "list_tasks", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != "[]" {
		t.Errorf("empty list = %q, want []", result)
	}
}

func TestCompleteTask(t *testing.T) {
	r, st, alice, _ := newTestRegistry(t)
	task, _ := st.CreateTask(alice, "buy milk")

	result, err := r.Execute(context.Background(), alice, "complete_task",
		map[string]any{"task_id": float64(task.ID)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := decode(t, result)
	if got["status"] != "completed" || got["title"] != "buy milk" {
		t.Errorf("unexpected payload: %v", got)
	}

	updated, _ := st.GetTask(task.ID)
	if !updated.Completed {
		t.Error("task should be completed in store")
	}
}

func TestOwnershipAndMissing(t *testing.T) {
	r, st, alice, bob := newTestRegistry(t)
	task, _ := st.CreateTask(alice, "alice's task")

	tests := []struct {
		name    string
		tool    string
		owner   store.UserID
		taskID  any
		wantErr string
	}{
		{"complete missing", "complete_task", alice, float64(9999), "Task not found"},
		{"complete foreign", "complete_task", bob, float64(task.ID), "Access denied"},
		{"delete missing", "delete_task", alice, float64(9999), "Task not found"},
		{"delete foreign", "delete_task", bob, float64(task.ID), "Access denied"},
		{"update missing", "update_task", alice, float64(9999), "Task not found"},
		{"update foreign", "update_task", bob, float64(task.ID), "Access denied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := r.Execute(context.Background(), tt.owner, tt.tool,
				map[string]any{"task_id": tt.taskID})
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			got := decode(t, result)
			if got["error"] != tt.wantErr {
				t.Errorf("error = %v, want %q", got["error"], tt.wantErr)
			}
		})
	}

	// Ownership failures must not mutate.
	after, _ := st.GetTask(task.ID)
	if after.Completed {
		t.Error("foreign complete attempt should not mutate the task")
	}
}

func TestDeleteTask(t *testing.T) {
	r, st, alice, _ := newTestRegistry(t)
	task, _ := st.CreateTask(alice, "doomed")

	result, err := r.Execute(context.Background(), alice, "delete_task",
		map[string]any{"task_id": float64(task.ID)})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := decode(t, result)
	if got["status"] != "deleted" || got["title"] != "doomed" {
		t.Errorf("unexpected payload: %v", got)
	}
	if _, err := st.GetTask(task.ID); err == nil {
		t.Error("task should be gone")
	}
}

func TestUpdateTask(t *testing.T) {
	r, st, alice, _ := newTestRegistry(t)
	task, _ := st.CreateTask(alice, "original")

	result, err := r.Execute(context.Background(), alice, "update_task",
		map[string]any{"task_id": float64(task.ID), "title": "revised", "completed": true})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := decode(t, result)
	if got["status"] != "updated" || got["title"] != "revised" || got["completed"] != true {
		t.Errorf("unexpected payload: %v", got)
	}

	updated, _ := st.GetTask(task.ID)
	if updated.Content != "revised" || !updated.Completed {
		t.Errorf("store state = %+v", updated)
	}
}

func TestIntArg_StringTaskID(t *testing.T) {
	r, st, alice, _ := newTestRegistry(t)
	task, _ := st.CreateTask(alice, "stringly typed")

	// Models sometimes send numeric arguments as strings.
	result, err := r.Execute(context.Background(), alice, "complete_task",
		map[string]any{"task_id": "1"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := decode(t, result)
	if got["status"] != "completed" {
		t.Errorf("unexpected payload: %v (task %d)", got, task.ID)
	}
}
