package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/tendo-ai/tendo/internal/store"
)

// seedTasks creates completed then pending tasks for owner.
func seedTasks(t *testing.T, st *store.Store, owner store.UserID, completed, pending int) {
	t.Helper()
	for i := 0; i < completed; i++ {
		task, err := st.CreateTask(owner, fmt.Sprintf("done %d", i))
		if err != nil {
			t.Fatal(err)
		}
		st.SetTaskCompleted(task.ID, true)
	}
	for i := 0; i < pending; i++ {
		if _, err := st.CreateTask(owner, fmt.Sprintf("todo %d", i)); err != nil {
			t.Fatal(err)
		}
	}
}

func TestTaskSummary(t *testing.T) {
	r, st, alice, _ := newTestRegistry(t)
	seedTasks(t, st, alice, 3, 1)

	result, err := r.Execute(context.Background(), alice, "get_task_summary", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := decode(t, result)

	summary, ok := got["summary"].(map[string]any)
	if !ok {
		t.Fatalf("missing summary block: %v", got)
	}
	if summary["total_tasks"] != float64(4) {
		t.Errorf("total_tasks = %v, want 4", summary["total_tasks"])
	}
	if summary["completed_tasks"] != float64(3) {
		t.Errorf("completed_tasks = %v, want 3", summary["completed_tasks"])
	}
	if summary["pending_tasks"] != float64(1) {
		t.Errorf("pending_tasks = %v, want 1", summary["pending_tasks"])
	}
	if summary["completion_rate"] != float64(75) {
		t.Errorf("completion_rate = %v, want 75", summary["completion_rate"])
	}
	if got["status"] != "success" {
		t.Errorf("status = %v, want success", got["status"])
	}
}

func TestTaskSummary_RateRounding(t *testing.T) {
	r, st, alice, _ := newTestRegistry(t)
	seedTasks(t, st, alice, 1, 2) // 33.333...%

	result, _ := r.Execute(context.Background(), alice, "get_task_summary", nil)
	got := decode(t, result)
	summary := got["summary"].(map[string]any)
	if summary["completion_rate"] != 33.3 {
		t.Errorf("completion_rate = %v, want 33.3", summary["completion_rate"])
	}
}

func TestTaskSummary_PreviewCapped(t *testing.T) {
	r, st, alice, _ := newTestRegistry(t)
	seedTasks(t, st, alice, 0, 8)

	result, _ := r.Execute(context.Background(), alice, "get_task_summary", nil)
	got := decode(t, result)
	preview, ok := got["pending_tasks_preview"].([]any)
	if !ok {
		t.Fatalf("missing pending preview: %v", got)
	}
	if len(preview) != 5 {
		t.Errorf("pending preview = %d titles, want 5", len(preview))
	}
	completed, _ := got["completed_tasks_preview"].([]any)
	if len(completed) != 0 {
		t.Errorf("completed preview = %d titles, want 0", len(completed))
	}
}

func TestTaskSummary_Empty(t *testing.T) {
	r, _, alice, _ := newTestRegistry(t)

	result, _ := r.Execute(context.Background(), alice, "get_task_summary", nil)
	got := decode(t, result)
	summary := got["summary"].(map[string]any)
	if summary["total_tasks"] != float64(0) || summary["completion_rate"] != float64(0) {
		t.Errorf("empty summary = %v", summary)
	}
}

func TestProductivityInsights_Tiers(t *testing.T) {
	tests := []struct {
		name         string
		completed    int
		pending      int
		wantInsight  string
		wantPending  string
	}{
		{"no tasks", 0, 0,
			"You haven't created any tasks yet.", ""},
		{"excellent", 9, 1,
			"Excellent productivity! You've completed 90% of your tasks.",
			"You're close to clearing your task list with only 1 pending tasks!"},
		{"good", 3, 2,
			"Good progress! You've completed 60% of your tasks.",
			"You're close to clearing your task list with only 2 pending tasks!"},
		{"moderate", 1, 2,
			"You've completed 33% of your tasks.",
			"You're close to clearing your task list with only 2 pending tasks!"},
		{"low", 1, 9,
			"You have 9 pending tasks out of 10 total.",
			"You have 9 tasks waiting to be completed."},
		{"backlog", 0, 12,
			"You have 12 pending tasks out of 12 total.",
			"You have 12 pending tasks - quite a backlog!"},
		{"all done", 4, 0,
			"Excellent productivity! You've completed 100% of your tasks.",
			"Congratulations! You've completed all your tasks!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, st, alice, _ := newTestRegistry(t)
			seedTasks(t, st, alice, tt.completed, tt.pending)

			result, err := r.Execute(context.Background(), alice, "get_productivity_insights", nil)
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			got := decode(t, result)

			raw, ok := got["insights"].([]any)
			if !ok {
				t.Fatalf("missing insights: %v", got)
			}
			var insights []string
			for _, v := range raw {
				insights = append(insights, v.(string))
			}
			joined := strings.Join(insights, " | ")

			if !strings.Contains(joined, tt.wantInsight) {
				t.Errorf("insights %q missing %q", joined, tt.wantInsight)
			}
			if tt.wantPending != "" && !strings.Contains(joined, tt.wantPending) {
				t.Errorf("insights %q missing %q", joined, tt.wantPending)
			}
			if got["status"] != "success" {
				t.Errorf("status = %v", got["status"])
			}
		})
	}
}

func TestProductivityInsights_ActionableTasks(t *testing.T) {
	r, st, alice, _ := newTestRegistry(t)
	seedTasks(t, st, alice, 1, 7)

	result, _ := r.Execute(context.Background(), alice, "get_productivity_insights", nil)
	got := decode(t, result)

	actionable, ok := got["actionable_tasks"].([]any)
	if !ok {
		t.Fatalf("missing actionable_tasks: %v", got)
	}
	if len(actionable) != 5 {
		t.Fatalf("actionable_tasks = %d entries, want 5", len(actionable))
	}
	first := actionable[0].(map[string]any)
	if _, ok := first["id"]; !ok {
		t.Error("actionable task missing id")
	}
	if _, ok := first["title"]; !ok {
		t.Error("actionable task missing title")
	}

	metrics := got["metrics"].(map[string]any)
	if metrics["pending_tasks"] != float64(7) {
		t.Errorf("metrics pending = %v, want 7", metrics["pending_tasks"])
	}
}

func TestProductivityInsights_MetricsRounding(t *testing.T) {
	r, st, alice, _ := newTestRegistry(t)
	seedTasks(t, st, alice, 2, 1) // 66.666...%

	result, _ := r.Execute(context.Background(), alice, "get_productivity_insights", nil)
	got := decode(t, result)
	metrics := got["metrics"].(map[string]any)
	if metrics["completion_rate"] != 66.7 {
		t.Errorf("completion_rate = %v, want 66.7", metrics["completion_rate"])
	}
}

// Insights payloads must stay valid JSON even with no tasks; the
// arrays are always present.
func TestProductivityInsights_EmptyShapes(t *testing.T) {
	r, _, alice, _ := newTestRegistry(t)

	result, _ := r.Execute(context.Background(), alice, "get_productivity_insights", nil)
	var payload struct {
		Insights        []string         `json:"insights"`
		Suggestions     []string         `json:"suggestions"`
		ActionableTasks []map[string]any `json:"actionable_tasks"`
	}
	if err := json.Unmarshal([]byte(result), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Insights) != 1 || len(payload.Suggestions) != 1 {
		t.Errorf("expected single empty-state insight/suggestion, got %v / %v",
			payload.Insights, payload.Suggestions)
	}
	if payload.ActionableTasks == nil {
		t.Error("actionable_tasks should be an empty array, not null")
	}
}
