package tools

import (
	"context"
	"fmt"
	"math"

	"github.com/tendo-ai/tendo/internal/store"
)

// taskCounts tallies a user's tasks.
type taskCounts struct {
	total     int
	completed int
	pending   int
	rate      float64 // completion percentage
}

func countTasks(tasks []store.Task) taskCounts {
	c := taskCounts{total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			c.completed++
		}
	}
	c.pending = c.total - c.completed
	if c.total > 0 {
		c.rate = float64(c.completed) / float64(c.total) * 100
	}
	return c
}

// round1 rounds to one decimal place for rate reporting.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func (r *Registry) handleTaskSummary(ctx context.Context, owner store.UserID, args map[string]any) (string, error) {
	tasks, err := r.store.ListTasks(owner, store.FilterAll)
	if err != nil {
		return "", err
	}
	c := countTasks(tasks)

	pendingPreview := make([]string, 0, 5)
	completedPreview := make([]string, 0, 5)
	for _, t := range tasks {
		if t.Completed {
			if len(completedPreview) < 5 {
				completedPreview = append(completedPreview, t.Content)
			}
		} else if len(pendingPreview) < 5 {
			pendingPreview = append(pendingPreview, t.Content)
		}
	}

	return marshal(map[string]any{
		"summary": map[string]any{
			"total_tasks":     c.total,
			"completed_tasks": c.completed,
			"pending_tasks":   c.pending,
			"completion_rate": round1(c.rate),
		},
		"pending_tasks_preview":   pendingPreview,
		"completed_tasks_preview": completedPreview,
		"status":                  "success",
	})
}

func (r *Registry) handleProductivityInsights(ctx context.Context, owner store.UserID, args map[string]any) (string, error) {
	tasks, err := r.store.ListTasks(owner, store.FilterAll)
	if err != nil {
		return "", err
	}
	c := countTasks(tasks)

	insights := []string{}
	suggestions := []string{}

	if c.total == 0 {
		insights = append(insights, "You haven't created any tasks yet.")
		suggestions = append(suggestions, "Start by adding your first task to track your activities.")
	} else {
		switch {
		case c.rate >= 80:
			insights = append(insights, fmt.Sprintf("Excellent productivity! You've completed %.0f%% of your tasks.", c.rate))
			suggestions = append(suggestions, "Keep up the great work! Consider setting more challenging goals.")
		case c.rate >= 50:
			insights = append(insights, fmt.Sprintf("Good progress! You've completed %.0f%% of your tasks.", c.rate))
			suggestions = append(suggestions, "Try to tackle a few more pending tasks to boost your completion rate.")
		case c.rate >= 25:
			insights = append(insights, fmt.Sprintf("You've completed %.0f%% of your tasks.", c.rate))
			suggestions = append(suggestions, "Consider breaking down larger tasks into smaller, manageable steps.")
		default:
			insights = append(insights, fmt.Sprintf("You have %d pending tasks out of %d total.", c.pending, c.total))
			suggestions = append(suggestions, "Focus on completing one task at a time to build momentum.")
		}

		switch {
		case c.pending > 10:
			insights = append(insights, fmt.Sprintf("You have %d pending tasks - quite a backlog!", c.pending))
			suggestions = append(suggestions, "Consider prioritizing your most important tasks and delegating or removing less critical ones.")
		case c.pending > 5:
			insights = append(insights, fmt.Sprintf("You have %d tasks waiting to be completed.", c.pending))
			suggestions = append(suggestions, "Try to complete at least 2-3 tasks today to make progress.")
		case c.pending > 0:
			insights = append(insights, fmt.Sprintf("You're close to clearing your task list with only %d pending tasks!", c.pending))
			suggestions = append(suggestions, "Finish these remaining tasks to achieve inbox zero!")
		default:
			insights = append(insights, "Congratulations! You've completed all your tasks!")
			suggestions = append(suggestions, "Time to plan your next set of goals and tasks.")
		}
	}

	actionable := make([]map[string]any, 0, 5)
	for _, t := range tasks {
		if !t.Completed && len(actionable) < 5 {
			actionable = append(actionable, map[string]any{
				"id":    t.ID,
				"title": t.Content,
			})
		}
	}

	return marshal(map[string]any{
		"insights":    insights,
		"suggestions": suggestions,
		"metrics": map[string]any{
			"total_tasks":     c.total,
			"completed_tasks": c.completed,
			"pending_tasks":   c.pending,
			"completion_rate": round1(c.rate),
		},
		"actionable_tasks": actionable,
		"status":           "success",
	})
}
