// Package api implements the HTTP API: auth, todos, and chat.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tendo-ai/tendo/internal/agent"
	"github.com/tendo-ai/tendo/internal/auth"
	"github.com/tendo-ai/tendo/internal/buildinfo"
	"github.com/tendo-ai/tendo/internal/store"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response,
// which is not actionable but worth tracking for debugging.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// Server is the HTTP API server.
type Server struct {
	address string
	port    int
	store   *store.Store
	loop    *agent.Loop
	issuer  *auth.TokenIssuer
	logger  *slog.Logger
	server  *http.Server
}

// NewServer creates a new API server.
func NewServer(address string, port int, st *store.Store, loop *agent.Loop, issuer *auth.TokenIssuer, logger *slog.Logger) *Server {
	return &Server{
		address: address,
		port:    port,
		store:   st,
		loop:    loop,
		issuer:  issuer,
		logger:  logger,
	}
}

// Handler builds the route table. Exposed separately from Start so
// tests can drive it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Auth endpoints
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/token", s.handleToken)
	mux.HandleFunc("GET /users/me", s.requireUser(s.handleMe))
	mux.HandleFunc("GET /users", s.requireUser(s.handleListUsers))

	// Todo endpoints
	mux.HandleFunc("GET /todos", s.requireUser(s.handleListTodos))
	mux.HandleFunc("POST /todos", s.requireUser(s.handleCreateTodo))
	mux.HandleFunc("PUT /todos/{id}", s.requireUser(s.handleUpdateTodo))
	mux.HandleFunc("DELETE /todos/{id}", s.requireUser(s.handleDeleteTodo))

	// Chat endpoints
	mux.HandleFunc("POST /chat", s.requireUser(s.handleChat))
	mux.HandleFunc("POST /chat/stream", s.requireUser(s.handleChatStream))
	mux.HandleFunc("GET /chat/conversations", s.requireUser(s.handleListConversations))
	mux.HandleFunc("GET /chat/conversations/{id}", s.requireUser(s.handleGetConversation))
	mux.HandleFunc("DELETE /chat/conversations/{id}", s.requireUser(s.handleDeleteConversation))
	mux.HandleFunc("GET /chat/conversations/{id}/tools", s.requireUser(s.handleConversationTools))

	// Health and diagnostics endpoints
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /", s.handleRoot)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Long for streaming responses
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "Tendo",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.Info(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

// handleStats reports storage and tool-usage counters for diagnostics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{
		"store":      s.store.Stats(),
		"tool_calls": s.store.ToolCallStats(),
		"uptime":     buildinfo.Uptime().String(),
	}, s.logger)
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    code,
		},
	}, s.logger)
}
