// Package tools defines the task operations available to the agent.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tendo-ai/tendo/internal/store"
)

// Tool represents a callable tool.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Handler     func(ctx context.Context, owner store.UserID, args map[string]any) (string, error) `json:"-"`
}

// Registry holds available tools. All handlers operate on the
// injected owner; the model never supplies identity.
type Registry struct {
	tools map[string]*Tool
	store *store.Store
}

// NewRegistry creates a tool registry backed by the task store.
func NewRegistry(st *store.Store) *Registry {
	r := &Registry{
		tools: make(map[string]*Tool),
		store: st,
	}
	r.registerBuiltins()
	return r
}

// Register adds a tool to the registry.
func (r *Registry) Register(t *Tool) {
	r.tools[t.Name] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// List returns all tool definitions in function-calling format.
func (r *Registry) List() []map[string]any {
	var result []map[string]any
	for _, t := range r.tools {
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return result
}

// Execute runs a tool by name on behalf of owner. Domain failures
// (missing task, foreign task, unknown tool) come back as error
// payloads in the result string; the error return is reserved for
// infrastructure failures.
func (r *Registry) Execute(ctx context.Context, owner store.UserID, name string, args map[string]any) (string, error) {
	tool := r.tools[name]
	if tool == nil {
		return errorPayload(fmt.Sprintf("Unknown tool: %s", name)), nil
	}
	if args == nil {
		args = map[string]any{}
	}
	return tool.Handler(ctx, owner, args)
}

// errorPayload encodes a domain error the way tool results carry them.
func errorPayload(msg string) string {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return string(data)
}

// marshal encodes a tool result payload.
func marshal(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(data), nil
}

// intArg extracts an integer argument. JSON numbers decode as float64;
// models occasionally send strings.
func intArg(args map[string]any, key string) (int64, bool) {
	switch v := args[key].(type) {
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		var n int64
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n, true
		}
	}
	return 0, false
}
