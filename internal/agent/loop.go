// Package agent implements the tool-calling conversation loop.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tendo-ai/tendo/internal/llm"
	"github.com/tendo-ai/tendo/internal/prompts"
	"github.com/tendo-ai/tendo/internal/store"
	"github.com/tendo-ai/tendo/internal/tools"
)

// DefaultMaxRounds caps how many times a single request may re-invoke
// the model after executing tool calls.
const DefaultMaxRounds = 8

// DefaultHistoryLimit caps how many prior transcript messages are sent
// as model context.
const DefaultHistoryLimit = 50

// Loop is the core agent execution loop. All collaborators are
// injected; the loop owns no global state.
type Loop struct {
	logger       *slog.Logger
	store        *store.Store
	llm          llm.Client
	registry     *tools.Registry
	model        string
	maxRounds    int
	historyLimit int
}

// NewLoop creates a new agent loop. maxRounds and historyLimit fall
// back to the defaults when non-positive.
func NewLoop(logger *slog.Logger, st *store.Store, client llm.Client, registry *tools.Registry, model string, maxRounds, historyLimit int) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Loop{
		logger:       logger,
		store:        st,
		llm:          client,
		registry:     registry,
		model:        model,
		maxRounds:    maxRounds,
		historyLimit: historyLimit,
	}
}

// Run handles one chat turn: persist the user message, drive the
// model through tool rounds, persist tool results and the final
// assistant reply, and return it.
//
// Engine failures (including exceeding the round cap) degrade to a
// fixed apologetic reply, persisted as the assistant turn; the error
// return is reserved for storage failures.
func (l *Loop) Run(ctx context.Context, owner store.UserID, conversationID int64, message string) (string, error) {
	history, err := l.store.GetMessages(conversationID, l.historyLimit)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}

	if _, err := l.store.AddMessage(conversationID, "user", message); err != nil {
		return "", fmt.Errorf("persist user message: %w", err)
	}

	messages := l.assembleContext(history, message)
	toolDefs := l.registry.List()

	l.logger.Info("agent loop started",
		"conversation", conversationID,
		"history", len(history),
		"model", l.model,
	)

	resp, err := l.llm.Chat(ctx, l.model, messages, toolDefs)
	if err != nil {
		return l.failTurn(conversationID, err)
	}

	rounds := 0
	for len(resp.Message.ToolCalls) > 0 {
		rounds++
		if rounds > l.maxRounds {
			return l.failTurn(conversationID, fmt.Errorf("tool round cap exceeded (%d)", l.maxRounds))
		}

		// The tool-request turn joins the working context but is
		// never persisted; the transcript carries only user, tool,
		// and assistant turns.
		messages = append(messages, resp.Message)

		for _, tc := range resp.Message.ToolCalls {
			result := l.executeToolCall(ctx, owner, conversationID, tc)

			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: tc.ID,
			})
			if _, err := l.store.AddMessage(conversationID, "tool", result); err != nil {
				return "", fmt.Errorf("persist tool message: %w", err)
			}
		}

		resp, err = l.llm.Chat(ctx, l.model, messages, toolDefs)
		if err != nil {
			return l.failTurn(conversationID, err)
		}
	}

	reply := resp.Message.Content
	if _, err := l.store.AddMessage(conversationID, "assistant", reply); err != nil {
		return "", fmt.Errorf("persist assistant message: %w", err)
	}

	l.logger.Info("agent loop completed",
		"conversation", conversationID,
		"rounds", rounds,
		"reply_len", len(reply),
	)

	return reply, nil
}

// executeToolCall runs one tool invocation and records it in the
// audit trail. Failures never abort the turn; they become error
// payloads the model can react to.
func (l *Loop) executeToolCall(ctx context.Context, owner store.UserID, conversationID int64, tc llm.ToolCall) string {
	callID := tc.ID
	if callID == "" {
		id, _ := uuid.NewV7()
		callID = id.String()
	}

	argsJSON, _ := json.Marshal(tc.Function.Arguments)
	if err := l.store.RecordToolCall(conversationID, callID, tc.Function.Name, string(argsJSON)); err != nil {
		l.logger.Warn("record tool call failed", "error", err, "tool", tc.Function.Name)
	}

	l.logger.Debug("executing tool",
		"tool", tc.Function.Name,
		"call_id", callID,
		"conversation", conversationID,
	)

	result, err := l.registry.Execute(ctx, owner, tc.Function.Name, tc.Function.Arguments)
	errMsg := ""
	if err != nil {
		l.logger.Error("tool execution failed", "tool", tc.Function.Name, "error", err)
		errMsg = err.Error()
		data, _ := json.Marshal(map[string]string{"error": errMsg})
		result = string(data)
	}

	if err := l.store.CompleteToolCall(callID, result, errMsg); err != nil {
		l.logger.Warn("complete tool call failed", "error", err, "call_id", callID)
	}

	return result
}

// failTurn degrades an engine failure to the apologetic reply,
// persisted as the assistant turn.
func (l *Loop) failTurn(conversationID int64, cause error) (string, error) {
	l.logger.Error("engine call failed", "conversation", conversationID, "error", cause)

	if _, err := l.store.AddMessage(conversationID, "assistant", prompts.ErrorReply); err != nil {
		return "", fmt.Errorf("persist assistant message: %w", err)
	}
	return prompts.ErrorReply, nil
}

// assembleContext builds the model context: system prompt, prior
// transcript, then the new user message.
func (l *Loop) assembleContext(history []store.Message, message string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{
		Role:    "system",
		Content: prompts.SystemPrompt(),
	})
	for _, m := range history {
		messages = append(messages, llm.Message{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	messages = append(messages, llm.Message{
		Role:    "user",
		Content: message,
	})
	return messages
}
