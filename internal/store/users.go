package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// User is a registered account.
type User struct {
	ID             UserID    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name,omitempty"`
	HashedPassword string    `json:"-"`
	Disabled       bool      `json:"disabled"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateUser inserts a new user. Returns ErrUsernameTaken or
// ErrEmailTaken when the corresponding unique constraint trips.
func (s *Store) CreateUser(username, email, fullName, hashedPassword string) (*User, error) {
	now := time.Now().UTC()

	res, err := s.db.Exec(`
		INSERT INTO users (username, email, full_name, hashed_password, disabled, created_at)
		VALUES (?, ?, ?, ?, FALSE, ?)
	`, username, email, fullName, hashedPassword, now)
	if err != nil {
		// The driver reports constraint violations as plain errors;
		// the column name in the message tells us which one tripped.
		msg := err.Error()
		if strings.Contains(msg, "users.username") {
			return nil, ErrUsernameTaken
		}
		if strings.Contains(msg, "users.email") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return &User{
		ID:        UserID(id),
		Username:  username,
		Email:     email,
		FullName:  fullName,
		CreatedAt: now,
	}, nil
}

// GetUserByUsername looks up a user by username.
func (s *Store) GetUserByUsername(username string) (*User, error) {
	return s.scanUser(s.db.QueryRow(`
		SELECT id, username, email, full_name, hashed_password, disabled, created_at
		FROM users WHERE username = ?
	`, username))
}

// GetUserByID looks up a user by id.
func (s *Store) GetUserByID(id UserID) (*User, error) {
	return s.scanUser(s.db.QueryRow(`
		SELECT id, username, email, full_name, hashed_password, disabled, created_at
		FROM users WHERE id = ?
	`, id))
}

// ListUsers returns all users ordered by id.
func (s *Store) ListUsers() ([]User, error) {
	rows, err := s.db.Query(`
		SELECT id, username, email, full_name, hashed_password, disabled, created_at
		FROM users ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	u, err := scanUserRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func scanUserRow(row rowScanner) (*User, error) {
	var u User
	var fullName sql.NullString
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &fullName,
		&u.HashedPassword, &u.Disabled, &u.CreatedAt); err != nil {
		return nil, err
	}
	if fullName.Valid {
		u.FullName = fullName.String
	}
	return &u, nil
}
