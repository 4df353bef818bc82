package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/tendo-ai/tendo/internal/store"
)

type todoRequest struct {
	Content   string `json:"content"`
	Completed *bool  `json:"completed"`
}

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request, user *store.User) {
	filter := r.URL.Query().Get("status")
	if filter == "" {
		filter = store.FilterAll
	}

	tasks, err := s.store.ListTasks(user.ID, filter)
	if err != nil {
		s.logger.Error("list tasks failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not list todos")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, tasks, s.logger)
}

func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request, user *store.User) {
	var req todoRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		s.errorResponse(w, http.StatusBadRequest, "content is required")
		return
	}

	task, err := s.store.CreateTask(user.ID, req.Content)
	if err != nil {
		s.logger.Error("create task failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not create todo")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, task, s.logger)
}

// ownedTask loads the task at {id}, hiding both missing and foreign
// tasks behind the same 404.
func (s *Server) ownedTask(w http.ResponseWriter, r *http.Request, user *store.User) *store.Task {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.errorResponse(w, http.StatusNotFound, "Todo not found")
		return nil
	}

	task, err := s.store.GetTask(id)
	if errors.Is(err, store.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, "Todo not found")
		return nil
	}
	if err != nil {
		s.logger.Error("get task failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not load todo")
		return nil
	}
	if task.UserID != user.ID {
		s.errorResponse(w, http.StatusNotFound, "Todo not found")
		return nil
	}
	return task
}

func (s *Server) handleUpdateTodo(w http.ResponseWriter, r *http.Request, user *store.User) {
	task := s.ownedTask(w, r, user)
	if task == nil {
		return
	}

	var req todoRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var content *string
	if req.Content != "" {
		content = &req.Content
	}

	updated, err := s.store.UpdateTask(task.ID, content, req.Completed)
	if err != nil {
		s.logger.Error("update task failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not update todo")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, updated, s.logger)
}

func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request, user *store.User) {
	task := s.ownedTask(w, r, user)
	if task == nil {
		return
	}

	if err := s.store.DeleteTask(task.ID); err != nil {
		s.logger.Error("delete task failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not delete todo")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"ok": true, "message": "Todo deleted"}, s.logger)
}
