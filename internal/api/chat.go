package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tendo-ai/tendo/internal/agent"
	"github.com/tendo-ai/tendo/internal/store"
)

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID int64  `json:"conversation_id,omitempty"`
}

type chatResponse struct {
	ConversationID int64  `json:"conversation_id"`
	Message        string `json:"message"`
	Role           string `json:"role"`
}

// conversationTitle derives a new conversation's title from its first
// message: the first 50 characters, not bytes, so multibyte text is
// never cut mid-rune.
func conversationTitle(message string) string {
	runes := []rune(message)
	if len(runes) > 50 {
		return string(runes[:50]) + "..."
	}
	return message
}

// resolveConversation loads the requested conversation or starts a
// new one titled after the first message. Unknown conversations are a
// 404 and foreign ones a 403; both are protocol errors, unlike the
// domain errors the tools report in their payloads.
func (s *Server) resolveConversation(w http.ResponseWriter, user *store.User, req chatRequest) *store.Conversation {
	if req.ConversationID != 0 {
		conv, err := s.store.GetConversation(req.ConversationID)
		if errors.Is(err, store.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "Conversation not found")
			return nil
		}
		if err != nil {
			s.logger.Error("get conversation failed", "error", err)
			s.errorResponse(w, http.StatusInternalServerError, "could not load conversation")
			return nil
		}
		if conv.UserID != user.ID {
			s.errorResponse(w, http.StatusForbidden, "Access denied")
			return nil
		}
		return conv
	}

	conv, err := s.store.CreateConversation(user.ID, conversationTitle(req.Message))
	if err != nil {
		s.logger.Error("create conversation failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not create conversation")
		return nil
	}
	return conv
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, user *store.User) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		s.errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}

	conv := s.resolveConversation(w, user, req)
	if conv == nil {
		return
	}

	reply, err := s.loop.Run(r.Context(), user.ID, conv.ID, req.Message)
	if err != nil {
		s.logger.Error("agent loop failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "agent error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, chatResponse{
		ConversationID: conv.ID,
		Message:        reply,
		Role:           "assistant",
	}, s.logger)
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request, user *store.User) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		s.errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}

	conv := s.resolveConversation(w, user, req)
	if conv == nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.errorResponse(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	rc := http.NewResponseController(w)

	emit := func(frame map[string]any) {
		s.writeSSE(w, frame)
		flusher.Flush()

		// Reset the write deadline between events so slow tool rounds
		// don't trip the server's write timeout.
		if err := rc.SetWriteDeadline(time.Now().Add(120 * time.Second)); err != nil {
			s.logger.Debug("failed to reset write deadline", "error", err)
		}
	}

	emit(map[string]any{"type": "start", "conversation_id": conv.ID})

	err := s.loop.RunStream(r.Context(), user.ID, conv.ID, req.Message, func(ev agent.StreamEvent) {
		switch ev.Type {
		case "content":
			emit(map[string]any{"type": "content", "content": ev.Content})
		case "tool_call":
			emit(map[string]any{"type": "tool_call", "tool": ev.Tool})
		case "tool_result":
			emit(map[string]any{"type": "tool_result", "tool": ev.Tool, "result": ev.Result})
		}
	})
	if err != nil {
		s.logger.Error("streaming agent loop failed", "error", err)
		emit(map[string]any{"type": "error", "error": err.Error()})
		return
	}

	emit(map[string]any{"type": "done", "conversation_id": conv.ID})
}

func (s *Server) writeSSE(w http.ResponseWriter, frame map[string]any) {
	data, err := json.Marshal(frame)
	if err != nil {
		s.logger.Debug("failed to marshal SSE frame", "error", err)
		return
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		s.logger.Debug("failed to write SSE frame", "error", err)
	}
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request, user *store.User) {
	convs, err := s.store.ListConversations(user.ID)
	if err != nil {
		s.logger.Error("list conversations failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not list conversations")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, convs, s.logger)
}

// ownedConversation loads the conversation at {id} with the usual
// 404/403 split.
func (s *Server) ownedConversation(w http.ResponseWriter, r *http.Request, user *store.User) *store.Conversation {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.errorResponse(w, http.StatusNotFound, "Conversation not found")
		return nil
	}

	conv, err := s.store.GetConversation(id)
	if errors.Is(err, store.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, "Conversation not found")
		return nil
	}
	if err != nil {
		s.logger.Error("get conversation failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not load conversation")
		return nil
	}
	if conv.UserID != user.ID {
		s.errorResponse(w, http.StatusForbidden, "Access denied")
		return nil
	}
	return conv
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request, user *store.User) {
	conv := s.ownedConversation(w, r, user)
	if conv == nil {
		return
	}

	msgs, err := s.store.GetMessages(conv.ID, 0)
	if err != nil {
		s.logger.Error("get messages failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not load messages")
		return
	}
	conv.Messages = msgs

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, conv, s.logger)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request, user *store.User) {
	conv := s.ownedConversation(w, r, user)
	if conv == nil {
		return
	}

	if err := s.store.DeleteConversation(conv.ID); err != nil {
		s.logger.Error("delete conversation failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not delete conversation")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"ok": true, "message": "Conversation deleted"}, s.logger)
}

func (s *Server) handleConversationTools(w http.ResponseWriter, r *http.Request, user *store.User) {
	conv := s.ownedConversation(w, r, user)
	if conv == nil {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, s.store.GetToolCalls(conv.ID, limit), s.logger)
}
