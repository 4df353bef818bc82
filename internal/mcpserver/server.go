// Package mcpserver exposes the task tools over MCP stdio, for
// external agents that speak the protocol directly. Each tool takes a
// user_id argument in place of the bearer identity the HTTP API
// resolves.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tendo-ai/tendo/internal/buildinfo"
	"github.com/tendo-ai/tendo/internal/store"
	"github.com/tendo-ai/tendo/internal/tools"
)

// Server is the MCP-facing wrapper around the tool registry.
type Server struct {
	mcp      *mcp.Server
	registry *tools.Registry
	logger   *slog.Logger
}

// New creates an MCP server exposing the task tools.
func New(registry *tools.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    "tendo",
			Version: buildinfo.Version,
		}, nil),
		registry: registry,
		logger:   logger,
	}
	s.registerTools()
	return s
}

// Serve connects the server to stdio and blocks until the session
// ends or ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting MCP server", "version", buildinfo.Version)

	session, err := s.mcp.Connect(ctx, mcp.NewStdioTransport())
	if err != nil {
		return fmt.Errorf("connect MCP transport: %w", err)
	}
	return session.Wait()
}

// parseUserID validates the caller-supplied identity. Unlike domain
// errors, a malformed user_id is a protocol error and becomes an
// IsError result.
func parseUserID(raw string) (store.UserID, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user_id: %q", raw)
	}
	return store.UserID(id), nil
}

// call routes a tool invocation through the shared registry. Domain
// errors come back as payload values, never as MCP errors; that keeps
// the results identical to what the chat agent sees.
func (s *Server) call(ctx context.Context, rawUserID, tool string, args map[string]any) (*mcp.CallToolResultFor[any], error) {
	owner, err := parseUserID(rawUserID)
	if err != nil {
		return &mcp.CallToolResultFor[any]{
			Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + err.Error()}},
			IsError: true,
		}, nil
	}

	payload, err := s.registry.Execute(ctx, owner, tool, args)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("tool executed", "tool", tool, "user_id", owner)
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: payload}},
	}, nil
}

type addTaskArgs struct {
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type listTasksArgs struct {
	UserID string `json:"user_id"`
	Status string `json:"status,omitempty"`
}

type taskIDArgs struct {
	UserID string `json:"user_id"`
	TaskID int64  `json:"task_id"`
}

type updateTaskArgs struct {
	UserID    string  `json:"user_id"`
	TaskID    int64   `json:"task_id"`
	Title     *string `json:"title,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

type userArgs struct {
	UserID string `json:"user_id"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "add_task",
		Description: "Create a new task for the user",
	}, func(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[addTaskArgs]) (*mcp.CallToolResultFor[any], error) {
		a := params.Arguments
		return s.call(ctx, a.UserID, "add_task", map[string]any{
			"title":       a.Title,
			"description": a.Description,
		})
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_tasks",
		Description: "Retrieve tasks from the user's list",
	}, func(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[listTasksArgs]) (*mcp.CallToolResultFor[any], error) {
		a := params.Arguments
		args := map[string]any{}
		if a.Status != "" {
			args["status"] = a.Status
		}
		return s.call(ctx, a.UserID, "list_tasks", args)
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "complete_task",
		Description: "Mark a task as complete",
	}, func(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[taskIDArgs]) (*mcp.CallToolResultFor[any], error) {
		a := params.Arguments
		return s.call(ctx, a.UserID, "complete_task", map[string]any{"task_id": a.TaskID})
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "delete_task",
		Description: "Remove a task from the user's list",
	}, func(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[taskIDArgs]) (*mcp.CallToolResultFor[any], error) {
		a := params.Arguments
		return s.call(ctx, a.UserID, "delete_task", map[string]any{"task_id": a.TaskID})
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "update_task",
		Description: "Update a task's title or completion status",
	}, func(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[updateTaskArgs]) (*mcp.CallToolResultFor[any], error) {
		a := params.Arguments
		args := map[string]any{"task_id": a.TaskID}
		if a.Title != nil {
			args["title"] = *a.Title
		}
		if a.Completed != nil {
			args["completed"] = *a.Completed
		}
		return s.call(ctx, a.UserID, "update_task", args)
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_task_summary",
		Description: "Get comprehensive task summary and statistics",
	}, func(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[userArgs]) (*mcp.CallToolResultFor[any], error) {
		return s.call(ctx, params.Arguments.UserID, "get_task_summary", nil)
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_productivity_insights",
		Description: "Get productivity insights and suggestions based on task patterns",
	}, func(ctx context.Context, _ *mcp.ServerSession, params *mcp.CallToolParamsFor[userArgs]) (*mcp.CallToolResultFor[any], error) {
		return s.call(ctx, params.Arguments.UserID, "get_productivity_insights", nil)
	})
}
