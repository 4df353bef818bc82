package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ToolCall represents a recorded tool invocation.
type ToolCall struct {
	ID             string     `json:"id"`
	ConversationID int64      `json:"conversation_id"`
	ToolName       string     `json:"tool_name"`
	Arguments      string     `json:"arguments"`
	Result         string     `json:"result,omitempty"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	DurationMs     int64      `json:"duration_ms,omitempty"`
}

// RecordToolCall records the start of a tool invocation.
func (s *Store) RecordToolCall(conversationID int64, toolCallID, toolName, arguments string) error {
	_, err := s.db.Exec(`
		INSERT INTO tool_calls (id, conversation_id, tool_name, arguments, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, toolCallID, conversationID, toolName, arguments, time.Now().UTC())
	return err
}

// CompleteToolCall records the result of a tool invocation.
func (s *Store) CompleteToolCall(toolCallID, result, errMsg string) error {
	now := time.Now().UTC()

	// Get started_at to calculate duration
	var startedAt time.Time
	err := s.db.QueryRow(`SELECT started_at FROM tool_calls WHERE id = ?`, toolCallID).Scan(&startedAt)
	if err != nil {
		return fmt.Errorf("tool call not found: %s", toolCallID)
	}

	durationMs := now.Sub(startedAt).Milliseconds()

	_, err = s.db.Exec(`
		UPDATE tool_calls
		SET result = ?, error = ?, completed_at = ?, duration_ms = ?
		WHERE id = ?
	`, result, errMsg, now, durationMs, toolCallID)

	return err
}

// GetToolCalls retrieves a conversation's tool calls, most recent
// first.
func (s *Store) GetToolCalls(conversationID int64, limit int) []ToolCall {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000 // Cap to prevent memory exhaustion
	}

	rows, err := s.db.Query(`
		SELECT id, conversation_id, tool_name, arguments,
		       result, error, started_at, completed_at, duration_ms
		FROM tool_calls
		WHERE conversation_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, conversationID, limit)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var calls []ToolCall
	for rows.Next() {
		var tc ToolCall
		var result, errMsg sql.NullString
		var completedAt sql.NullTime
		var durationMs sql.NullInt64

		err := rows.Scan(&tc.ID, &tc.ConversationID, &tc.ToolName,
			&tc.Arguments, &result, &errMsg, &tc.StartedAt, &completedAt, &durationMs)
		if err != nil {
			continue
		}

		if result.Valid {
			tc.Result = result.String
		}
		if errMsg.Valid {
			tc.Error = errMsg.String
		}
		if completedAt.Valid {
			tc.CompletedAt = &completedAt.Time
		}
		if durationMs.Valid {
			tc.DurationMs = durationMs.Int64
		}

		calls = append(calls, tc)
	}

	return calls
}

// ToolCallStats returns statistics about tool usage.
func (s *Store) ToolCallStats() map[string]any {
	stats := make(map[string]any)

	var total int
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM tool_calls`).Scan(&total)
	stats["total_calls"] = total

	byTool := make(map[string]int)
	rows, err := s.db.Query(`SELECT tool_name, COUNT(*) FROM tool_calls GROUP BY tool_name ORDER BY COUNT(*) DESC`)
	if err == nil && rows != nil {
		defer rows.Close()
		for rows.Next() {
			var name string
			var count int
			if err := rows.Scan(&name, &count); err != nil {
				continue // Skip malformed rows
			}
			byTool[name] = count
		}
	}
	stats["by_tool"] = byTool

	var avgMs float64
	_ = s.db.QueryRow(`SELECT COALESCE(AVG(duration_ms), 0) FROM tool_calls WHERE completed_at IS NOT NULL`).Scan(&avgMs)
	stats["avg_duration_ms"] = avgMs

	var errors int
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM tool_calls WHERE error IS NOT NULL AND error != ''`).Scan(&errors)
	if total > 0 {
		stats["error_rate"] = float64(errors) / float64(total)
	} else {
		stats["error_rate"] = 0.0
	}

	return stats
}
