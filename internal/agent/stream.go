package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tendo-ai/tendo/internal/llm"
	"github.com/tendo-ai/tendo/internal/store"
)

// StreamEvent is one observable step of a streaming chat turn.
type StreamEvent struct {
	Type    string // content, tool_call, tool_result
	Content string // content fragment (Type == content)
	Tool    string // tool name (tool_call, tool_result)
	Result  any    // decoded tool payload (tool_result)
}

// RunStream handles one chat turn in streaming mode. Content
// fragments, tool invocations, and tool results are delivered through
// emit as they happen; the concatenation of all content fragments is
// persisted as a single assistant turn once the turn completes.
//
// An engine failure aborts the stream with an error and persists no
// assistant turn. Tool mutations already applied stay applied.
func (l *Loop) RunStream(ctx context.Context, owner store.UserID, conversationID int64, message string, emit func(StreamEvent)) error {
	history, err := l.store.GetMessages(conversationID, l.historyLimit)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	if _, err := l.store.AddMessage(conversationID, "user", message); err != nil {
		return fmt.Errorf("persist user message: %w", err)
	}

	messages := l.assembleContext(history, message)
	toolDefs := l.registry.List()

	l.logger.Info("streaming agent loop started",
		"conversation", conversationID,
		"history", len(history),
		"model", l.model,
	)

	var full string
	onToken := func(token string) {
		full += token
		emit(StreamEvent{Type: "content", Content: token})
	}

	resp, err := l.llm.ChatStream(ctx, l.model, messages, toolDefs, onToken)
	if err != nil {
		l.logger.Error("engine stream failed", "conversation", conversationID, "error", err)
		return err
	}

	// Tool calls are collected only once the stream is fully drained,
	// then executed in order.
	if len(resp.Message.ToolCalls) > 0 {
		messages = append(messages, resp.Message)

		for _, tc := range resp.Message.ToolCalls {
			emit(StreamEvent{Type: "tool_call", Tool: tc.Function.Name})

			result := l.executeToolCall(ctx, owner, conversationID, tc)

			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: tc.ID,
			})
			if _, err := l.store.AddMessage(conversationID, "tool", result); err != nil {
				return fmt.Errorf("persist tool message: %w", err)
			}

			var decoded any
			if err := json.Unmarshal([]byte(result), &decoded); err != nil {
				decoded = result
			}
			emit(StreamEvent{Type: "tool_result", Tool: tc.Function.Name, Result: decoded})
		}

		// One follow-up invocation for trailing commentary. Further
		// tool requests are not honored on this path.
		if _, err := l.llm.ChatStream(ctx, l.model, messages, toolDefs, onToken); err != nil {
			l.logger.Error("engine stream failed", "conversation", conversationID, "error", err)
			return err
		}
	}

	if _, err := l.store.AddMessage(conversationID, "assistant", full); err != nil {
		return fmt.Errorf("persist assistant message: %w", err)
	}

	l.logger.Info("streaming agent loop completed",
		"conversation", conversationID,
		"reply_len", len(full),
	)

	return nil
}
