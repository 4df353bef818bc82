package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tendo-ai/tendo/internal/auth"
	"github.com/tendo-ai/tendo/internal/store"
)

// userHandler is an authenticated handler. The resolved account is
// passed explicitly rather than through the request context.
type userHandler func(w http.ResponseWriter, r *http.Request, user *store.User)

// requireUser resolves the bearer token to an account and rejects
// anonymous, unknown, and disabled callers.
func (s *Server) requireUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.errorResponse(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		username, err := s.issuer.Validate(token)
		if err != nil {
			s.errorResponse(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		user, err := s.store.GetUserByUsername(username)
		if err != nil {
			s.errorResponse(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		if user.Disabled {
			s.errorResponse(w, http.StatusBadRequest, "Inactive user")
			return
		}

		next(w, r, user)
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		s.errorResponse(w, http.StatusBadRequest, "username, email and password are required")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("password hashing failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "registration failed")
		return
	}

	user, err := s.store.CreateUser(req.Username, req.Email, req.FullName, hashed)
	switch {
	case errors.Is(err, store.ErrUsernameTaken):
		s.errorResponse(w, http.StatusBadRequest, "Username already registered")
		return
	case errors.Is(err, store.ErrEmailTaken):
		s.errorResponse(w, http.StatusBadRequest, "Email already registered")
		return
	case err != nil:
		s.logger.Error("user creation failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "registration failed")
		return
	}

	s.logger.Info("user registered", "username", user.Username)
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, user, s.logger)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid form body")
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	user, err := s.store.GetUserByUsername(username)
	if err != nil || !auth.VerifyPassword(user.HashedPassword, password) {
		s.errorResponse(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}
	if user.Disabled {
		s.errorResponse(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	token, err := s.issuer.Issue(user.Username)
	if err != nil {
		s.logger.Error("token issue failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not issue token")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	}, s.logger)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user *store.User) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, user, s.logger)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request, user *store.User) {
	users, err := s.store.ListUsers()
	if err != nil {
		s.logger.Error("list users failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "could not list users")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, users, s.logger)
}
