package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tendo-ai/tendo/internal/llm"
	"github.com/tendo-ai/tendo/internal/prompts"
	"github.com/tendo-ai/tendo/internal/store"
	"github.com/tendo-ai/tendo/internal/tools"
)

// step scripts one engine invocation.
type step struct {
	resp   *llm.ChatResponse
	err    error
	tokens []string // fragments delivered before resp (ChatStream only)
}

// scriptedClient replays a fixed sequence of engine responses and
// records the context it was called with.
type scriptedClient struct {
	steps []step
	calls [][]llm.Message
}

func (c *scriptedClient) next() step {
	if len(c.steps) == 0 {
		return step{err: errors.New("scripted client exhausted")}
	}
	s := c.steps[0]
	c.steps = c.steps[1:]
	return s
}

func (c *scriptedClient) Chat(ctx context.Context, model string, messages []llm.Message, toolDefs []map[string]any) (*llm.ChatResponse, error) {
	c.calls = append(c.calls, messages)
	s := c.next()
	return s.resp, s.err
}

func (c *scriptedClient) ChatStream(ctx context.Context, model string, messages []llm.Message, toolDefs []map[string]any, callback llm.StreamCallback) (*llm.ChatResponse, error) {
	c.calls = append(c.calls, messages)
	s := c.next()
	if s.err != nil {
		return nil, s.err
	}
	for _, tok := range s.tokens {
		if callback != nil {
			callback(tok)
		}
	}
	return s.resp, nil
}

func (c *scriptedClient) Ping(ctx context.Context) error { return nil }

func textResponse(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Message: llm.Message{Role: "assistant", Content: content},
		Done:    true,
	}
}

func toolResponse(id, name string, args map[string]any) *llm.ChatResponse {
	return &llm.ChatResponse{
		Message: llm.Message{
			Role: "assistant",
			ToolCalls: []llm.ToolCall{{
				ID:       id,
				Function: llm.FunctionCall{Name: name, Arguments: args},
			}},
		},
		Done: true,
	}
}

// testHarness wires a loop against a temp store and scripted client.
type testHarness struct {
	loop  *Loop
	store *store.Store
	llm   *scriptedClient
	owner store.UserID
	conv  int64
}

func newHarness(t *testing.T, steps ...step) *testHarness {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	user, err := st.CreateUser("alice", "alice@example.com", "", "hashed")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	conv, err := st.CreateConversation(user.ID, "test")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := &scriptedClient{steps: steps}
	loop := NewLoop(logger, st, client, tools.NewRegistry(st), "test-model", 3, 0)

	return &testHarness{loop: loop, store: st, llm: client, owner: user.ID, conv: conv.ID}
}

func (h *testHarness) transcript(t *testing.T) []store.Message {
	t.Helper()
	msgs, err := h.store.GetMessages(h.conv, 0)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	return msgs
}

func roles(msgs []store.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

func TestRun_TextOnlyAnswer(t *testing.T) {
	h := newHarness(t, step{resp: textResponse("Hello! How can I help?")})

	reply, err := h.loop.Run(context.Background(), h.owner, h.conv, "hi")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reply != "Hello! How can I help?" {
		t.Errorf("reply = %q", reply)
	}

	msgs := h.transcript(t)
	if got := roles(msgs); len(got) != 2 || got[0] != "user" || got[1] != "assistant" {
		t.Fatalf("transcript roles = %v, want [user assistant]", got)
	}

	// Context: system prompt first, user message last.
	if len(h.llm.calls) != 1 {
		t.Fatalf("expected 1 engine call, got %d", len(h.llm.calls))
	}
	sent := h.llm.calls[0]
	if sent[0].Role != "system" {
		t.Errorf("first context message role = %q, want system", sent[0].Role)
	}
	if last := sent[len(sent)-1]; last.Role != "user" || last.Content != "hi" {
		t.Errorf("last context message = %+v", last)
	}
}

func TestRun_SingleToolRound(t *testing.T) {
	h := newHarness(t,
		step{resp: toolResponse("call_1", "add_task", map[string]any{"title": "buy milk"})},
		step{resp: textResponse("I've added 'buy milk' to your tasks!")},
	)

	reply, err := h.loop.Run(context.Background(), h.owner, h.conv, "add buy milk")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(reply, "buy milk") {
		t.Errorf("reply = %q", reply)
	}

	// The tool actually ran.
	tasks, _ := h.store.ListTasks(h.owner, store.FilterAll)
	if len(tasks) != 1 || tasks[0].Content != "buy milk" {
		t.Fatalf("expected task created, got %+v", tasks)
	}

	// Transcript: user, tool result, assistant. The tool-request turn
	// is working context only.
	msgs := h.transcript(t)
	if got := roles(msgs); len(got) != 3 || got[0] != "user" || got[1] != "tool" || got[2] != "assistant" {
		t.Fatalf("transcript roles = %v, want [user tool assistant]", got)
	}
	if !strings.Contains(msgs[1].Content, `"status":"created"`) {
		t.Errorf("tool turn content = %q", msgs[1].Content)
	}

	// Second engine call carries the tool result correlated by ID.
	if len(h.llm.calls) != 2 {
		t.Fatalf("expected 2 engine calls, got %d", len(h.llm.calls))
	}
	second := h.llm.calls[1]
	toolMsg := second[len(second)-1]
	if toolMsg.Role != "tool" || toolMsg.ToolCallID != "call_1" {
		t.Errorf("tool context message = %+v", toolMsg)
	}
	// And the raw assistant tool-request turn before it.
	reqMsg := second[len(second)-2]
	if reqMsg.Role != "assistant" || len(reqMsg.ToolCalls) != 1 {
		t.Errorf("tool-request context message = %+v", reqMsg)
	}
}

func TestRun_MultipleToolsInOneRound(t *testing.T) {
	h := newHarness(t,
		step{resp: &llm.ChatResponse{
			Message: llm.Message{
				Role: "assistant",
				ToolCalls: []llm.ToolCall{
					{ID: "call_1", Function: llm.FunctionCall{Name: "add_task", Arguments: map[string]any{"title": "one"}}},
					{ID: "call_2", Function: llm.FunctionCall{Name: "add_task", Arguments: map[string]any{"title": "two"}}},
				},
			},
		}},
		step{resp: textResponse("Added both!")},
	)

	if _, err := h.loop.Run(context.Background(), h.owner, h.conv, "add one and two"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	tasks, _ := h.store.ListTasks(h.owner, store.FilterAll)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	// Executed in order.
	if tasks[0].Content != "one" || tasks[1].Content != "two" {
		t.Errorf("task order = %q, %q", tasks[0].Content, tasks[1].Content)
	}

	msgs := h.transcript(t)
	if got := roles(msgs); len(got) != 4 || got[1] != "tool" || got[2] != "tool" {
		t.Fatalf("transcript roles = %v, want [user tool tool assistant]", got)
	}
}

func TestRun_EngineFailure(t *testing.T) {
	h := newHarness(t, step{err: errors.New("upstream exploded")})

	reply, err := h.loop.Run(context.Background(), h.owner, h.conv, "hi")
	if err != nil {
		t.Fatalf("Run should not propagate engine errors: %v", err)
	}
	if reply != prompts.ErrorReply {
		t.Errorf("reply = %q, want apologetic reply", reply)
	}

	msgs := h.transcript(t)
	if got := roles(msgs); len(got) != 2 || got[1] != "assistant" {
		t.Fatalf("transcript roles = %v", got)
	}
	if msgs[1].Content != prompts.ErrorReply {
		t.Errorf("assistant turn = %q", msgs[1].Content)
	}
}

func TestRun_FailureMidRound(t *testing.T) {
	h := newHarness(t,
		step{resp: toolResponse("call_1", "add_task", map[string]any{"title": "buy milk"})},
		step{err: errors.New("upstream exploded")},
	)

	reply, err := h.loop.Run(context.Background(), h.owner, h.conv, "add buy milk")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reply != prompts.ErrorReply {
		t.Errorf("reply = %q", reply)
	}

	// The applied tool mutation stays applied.
	tasks, _ := h.store.ListTasks(h.owner, store.FilterAll)
	if len(tasks) != 1 {
		t.Errorf("expected mutation to persist, got %d tasks", len(tasks))
	}
}

func TestRun_RoundCap(t *testing.T) {
	// Always asks for another tool; the harness cap is 3 rounds.
	var steps []step
	for i := 0; i < 10; i++ {
		steps = append(steps, step{resp: toolResponse(
			fmt.Sprintf("call_%d", i), "list_tasks", nil)})
	}
	h := newHarness(t, steps...)

	reply, err := h.loop.Run(context.Background(), h.owner, h.conv, "loop forever")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reply != prompts.ErrorReply {
		t.Errorf("reply = %q, want apologetic reply after cap", reply)
	}
	// 1 initial + 3 rounds = 4 engine calls, then the cap trips.
	if len(h.llm.calls) != 4 {
		t.Errorf("engine calls = %d, want 4", len(h.llm.calls))
	}
}

func TestRun_UnknownToolContinues(t *testing.T) {
	h := newHarness(t,
		step{resp: toolResponse("call_1", "hack_the_planet", nil)},
		step{resp: textResponse("That tool doesn't exist.")},
	)

	reply, err := h.loop.Run(context.Background(), h.owner, h.conv, "do something weird")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reply != "That tool doesn't exist." {
		t.Errorf("reply = %q", reply)
	}

	msgs := h.transcript(t)
	if !strings.Contains(msgs[1].Content, "Unknown tool: hack_the_planet") {
		t.Errorf("tool turn = %q", msgs[1].Content)
	}
}

func TestRun_ToolCallAudited(t *testing.T) {
	h := newHarness(t,
		step{resp: toolResponse("call_1", "add_task", map[string]any{"title": "buy milk"})},
		step{resp: textResponse("Done.")},
	)

	if _, err := h.loop.Run(context.Background(), h.owner, h.conv, "add buy milk"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	calls := h.store.GetToolCalls(h.conv, 10)
	if len(calls) != 1 {
		t.Fatalf("expected 1 audited call, got %d", len(calls))
	}
	if calls[0].ToolName != "add_task" || calls[0].CompletedAt == nil {
		t.Errorf("audit row = %+v", calls[0])
	}
	if !strings.Contains(calls[0].Arguments, "buy milk") {
		t.Errorf("audit arguments = %q", calls[0].Arguments)
	}
}

func TestRun_HistoryIncludedInContext(t *testing.T) {
	h := newHarness(t, step{resp: textResponse("You asked about milk.")})

	h.store.AddMessage(h.conv, "user", "add buy milk")
	h.store.AddMessage(h.conv, "assistant", "Added!")

	if _, err := h.loop.Run(context.Background(), h.owner, h.conv, "what did I ask?"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	sent := h.llm.calls[0]
	// system + 2 history + new user message
	if len(sent) != 4 {
		t.Fatalf("context length = %d, want 4", len(sent))
	}
	if sent[1].Content != "add buy milk" || sent[2].Content != "Added!" {
		t.Errorf("history not threaded: %+v", sent[1:3])
	}
}
