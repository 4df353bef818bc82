package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Task is a single todo item.
type Task struct {
	ID        int64     `json:"id"`
	UserID    UserID    `json:"user_id"`
	Content   string    `json:"content"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Task list filters.
const (
	FilterAll       = "all"
	FilterPending   = "pending"
	FilterCompleted = "completed"
)

// CreateTask inserts a new task for owner.
func (s *Store) CreateTask(owner UserID, content string) (*Task, error) {
	now := time.Now().UTC()

	res, err := s.db.Exec(`
		INSERT INTO tasks (user_id, content, completed, created_at, updated_at)
		VALUES (?, ?, FALSE, ?, ?)
	`, owner, content, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	return &Task{
		ID:        id,
		UserID:    owner,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetTask retrieves a task by id regardless of owner. Callers are
// responsible for ownership checks; missing-vs-foreign distinctions
// matter to the tool layer.
func (s *Store) GetTask(id int64) (*Task, error) {
	var t Task
	err := s.db.QueryRow(`
		SELECT id, user_id, content, completed, created_at, updated_at
		FROM tasks WHERE id = ?
	`, id).Scan(&t.ID, &t.UserID, &t.Content, &t.Completed, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &t, nil
}

// ListTasks returns owner's tasks, oldest first. filter is one of
// FilterAll, FilterPending, FilterCompleted; anything else means all.
func (s *Store) ListTasks(owner UserID, filter string) ([]Task, error) {
	q := `
		SELECT id, user_id, content, completed, created_at, updated_at
		FROM tasks WHERE user_id = ?
	`
	switch filter {
	case FilterPending:
		q += ` AND completed = FALSE`
	case FilterCompleted:
		q += ` AND completed = TRUE`
	}
	q += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.Query(q, owner)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.Content, &t.Completed,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTask applies the non-nil fields to the task and returns the
// updated row. Returns ErrNotFound when the task does not exist.
func (s *Store) UpdateTask(id int64, content *string, completed *bool) (*Task, error) {
	t, err := s.GetTask(id)
	if err != nil {
		return nil, err
	}

	if content != nil {
		t.Content = *content
	}
	if completed != nil {
		t.Completed = *completed
	}
	t.UpdatedAt = time.Now().UTC()

	_, err = s.db.Exec(`
		UPDATE tasks SET content = ?, completed = ?, updated_at = ? WHERE id = ?
	`, t.Content, t.Completed, t.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return t, nil
}

// SetTaskCompleted marks a task complete or pending.
func (s *Store) SetTaskCompleted(id int64, completed bool) error {
	res, err := s.db.Exec(`
		UPDATE tasks SET completed = ?, updated_at = ? WHERE id = ?
	`, completed, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set completed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTask removes a task. Returns ErrNotFound when no row matched.
func (s *Store) DeleteTask(id int64) error {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
