package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Conversation is a chat transcript owned by a user.
type Conversation struct {
	ID        int64     `json:"id"`
	UserID    UserID    `json:"user_id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages,omitempty"`
}

// Message is a single transcript turn.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateConversation starts a new conversation for owner.
func (s *Store) CreateConversation(owner UserID, title string) (*Conversation, error) {
	now := time.Now().UTC()

	res, err := s.db.Exec(`
		INSERT INTO conversations (user_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, owner, title, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	return &Conversation{
		ID:        id,
		UserID:    owner,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetConversation retrieves a conversation by id, without messages.
// Callers are responsible for ownership checks.
func (s *Store) GetConversation(id int64) (*Conversation, error) {
	var c Conversation
	var title sql.NullString
	err := s.db.QueryRow(`
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id).Scan(&c.ID, &c.UserID, &title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if title.Valid {
		c.Title = title.String
	}
	return &c, nil
}

// ListConversations returns owner's conversations, most recently
// updated first.
func (s *Store) ListConversations(owner UserID) ([]Conversation, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE user_id = ?
		ORDER BY updated_at DESC, id DESC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		var title sql.NullString
		if err := rows.Scan(&c.ID, &c.UserID, &title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if title.Valid {
			c.Title = title.String
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// DeleteConversation removes a conversation and its children.
func (s *Store) DeleteConversation(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM tool_calls WHERE conversation_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// AddMessage appends a transcript turn and bumps the conversation's
// updated_at.
func (s *Store) AddMessage(conversationID int64, role, content string) (*Message, error) {
	now := time.Now().UTC()

	res, err := s.db.Exec(`
		INSERT INTO messages (conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?)
	`, conversationID, role, content, now)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	if _, err := s.db.Exec(`
		UPDATE conversations SET updated_at = ? WHERE id = ?
	`, now, conversationID); err != nil {
		return nil, fmt.Errorf("update conversation: %w", err)
	}

	return &Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      now,
	}, nil
}

// GetMessages retrieves a conversation's transcript in order. A limit
// of zero or less means no limit; otherwise the most recent limit
// messages are returned, still in chronological order.
func (s *Store) GetMessages(conversationID int64, limit int) ([]Message, error) {
	q := `
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.Query(q, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}
