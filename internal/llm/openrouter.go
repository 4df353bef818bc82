package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tendo-ai/tendo/internal/httpkit"
)

// DefaultBaseURL is the OpenRouter API root. Any OpenAI-compatible
// endpoint works here.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterClient talks to an OpenAI-compatible chat completions API.
type OpenRouterClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenRouterClient creates a new client. An empty baseURL means
// DefaultBaseURL.
func NewOpenRouterClient(baseURL, apiKey string, logger *slog.Logger) *OpenRouterClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Completions can take significant time before sending headers
	// (long prompts, busy upstreams). Use a custom transport with a
	// generous response header timeout.
	t := httpkit.NewTransport()
	t.ResponseHeaderTimeout = 120 * time.Second

	return &OpenRouterClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger.With("provider", "openrouter"),
		httpClient: httpkit.NewClient(
			// No global timeout — streaming responses can be long-lived.
			// Rely on ctx deadlines/cancellation for timeout control.
			httpkit.WithTimeout(0),
			httpkit.WithTransport(t),
		),
	}
}

// Wire types (OpenAI chat completions format)

type chatRequest struct {
	Model    string           `json:"model"`
	Messages []wireMessage    `json:"messages"`
	Stream   bool             `json:"stream,omitempty"`
	Tools    []map[string]any `json:"tools,omitempty"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"` // JSON-encoded on the wire
	} `json:"function"`
}

type chatCompletion struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Created int64  `json:"created"`
	Choices []struct {
		Message      wireMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Streaming chunk. Tool call arguments arrive as string fragments
// correlated by index.
type chatChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id,omitempty"`
				Function struct {
					Name      string `json:"name,omitempty"`
					Arguments string `json:"arguments,omitempty"`
				} `json:"function"`
			} `json:"tool_calls,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage,omitempty"`
}

// Chat sends a non-streaming chat completion request.
func (c *OpenRouterClient) Chat(ctx context.Context, model string, messages []Message, tools []map[string]any) (*ChatResponse, error) {
	body, err := c.do(ctx, model, messages, tools, false)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var completion chatCompletion
	if err := json.NewDecoder(body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("empty choices in response")
	}

	result := &ChatResponse{
		Model:        completion.Model,
		CreatedAt:    time.Unix(completion.Created, 0),
		Message:      fromWireMessage(completion.Choices[0].Message),
		Done:         true,
		InputTokens:  completion.Usage.PromptTokens,
		OutputTokens: completion.Usage.CompletionTokens,
	}

	c.logger.Debug("response received",
		"model", result.Model,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
		"tool_calls", len(result.Message.ToolCalls),
	)
	c.logger.Log(ctx, LevelTrace, "response content", "content", result.Message.Content)

	return result, nil
}

// ChatStream sends a streaming chat request, delivering text fragments
// via callback. Tool call fragments are reassembled by index and
// returned on the final response.
func (c *OpenRouterClient) ChatStream(ctx context.Context, model string, messages []Message, tools []map[string]any, callback StreamCallback) (*ChatResponse, error) {
	body, err := c.do(ctx, model, messages, tools, true)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	scanner := bufio.NewScanner(body)
	// Increase scanner buffer for large responses
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		contentBuilder strings.Builder
		partials       []partialToolCall
		respModel      string
		inputTokens    int
		outputTokens   int
	)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		if data == "[DONE]" {
			break
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // Skip malformed events
		}

		if chunk.Model != "" {
			respModel = chunk.Model
		}
		if chunk.Usage != nil {
			inputTokens = chunk.Usage.PromptTokens
			outputTokens = chunk.Usage.CompletionTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			contentBuilder.WriteString(delta.Content)
			if callback != nil {
				callback(delta.Content)
			}
		}

		for _, tc := range delta.ToolCalls {
			for len(partials) <= tc.Index {
				partials = append(partials, partialToolCall{})
			}
			p := &partials[tc.Index]
			if tc.ID != "" {
				p.id = tc.ID
			}
			if tc.Function.Name != "" {
				p.name = tc.Function.Name
			}
			p.args.WriteString(tc.Function.Arguments)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	var toolCalls []ToolCall
	for _, p := range partials {
		if p.name == "" {
			continue
		}
		var args map[string]any
		if p.args.Len() > 0 {
			if err := json.Unmarshal([]byte(p.args.String()), &args); err != nil {
				args = map[string]any{"_raw": p.args.String()}
			}
		}
		toolCalls = append(toolCalls, ToolCall{
			ID: p.id,
			Function: FunctionCall{
				Name:      p.name,
				Arguments: args,
			},
		})
	}

	resp := &ChatResponse{
		Model: respModel,
		Message: Message{
			Role:      "assistant",
			Content:   contentBuilder.String(),
			ToolCalls: toolCalls,
		},
		Done:         true,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	}

	c.logger.Debug("stream complete",
		"model", resp.Model,
		"content_len", len(resp.Message.Content),
		"tool_calls", len(resp.Message.ToolCalls),
	)
	c.logger.Log(ctx, LevelTrace, "stream final content", "content", resp.Message.Content)

	return resp, nil
}

// Ping checks whether the API is reachable and the key is accepted.
func (c *OpenRouterClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("invalid API key")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status from completions API: %d", resp.StatusCode)
	}
	return nil
}

// partialToolCall accumulates streamed tool call fragments.
type partialToolCall struct {
	id   string
	name string
	args strings.Builder
}

// do sends the request and returns the response body on success.
func (c *OpenRouterClient) do(ctx context.Context, model string, messages []Message, tools []map[string]any, stream bool) (io.ReadCloser, error) {
	wireMsgs := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wireMsgs = append(wireMsgs, toWireMessage(m))
	}

	c.logger.Debug("preparing request",
		"model", model,
		"messages", len(wireMsgs),
		"tools", len(tools),
		"stream", stream,
	)

	req := chatRequest{
		Model:    model,
		Messages: wireMsgs,
		Stream:   stream,
		Tools:    tools,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Log(ctx, LevelTrace, "request payload", "json", string(jsonData))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		c.logger.Error("API error", "status", resp.StatusCode, "body", errBody)
		return nil, fmt.Errorf("completions API error %d: %s", resp.StatusCode, errBody)
	}

	return resp.Body, nil
}

// toWireMessage converts an internal message to the wire format.
// Arguments maps are re-encoded as JSON strings.
func toWireMessage(m Message) wireMessage {
	wm := wireMessage{
		Role:       m.Role,
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		var wtc wireToolCall
		wtc.ID = tc.ID
		wtc.Type = "function"
		wtc.Function.Name = tc.Function.Name
		if tc.Function.Arguments != nil {
			if data, err := json.Marshal(tc.Function.Arguments); err == nil {
				wtc.Function.Arguments = string(data)
			}
		}
		if wtc.Function.Arguments == "" {
			wtc.Function.Arguments = "{}"
		}
		wm.ToolCalls = append(wm.ToolCalls, wtc)
	}
	return wm
}

// fromWireMessage converts a wire message to the internal format,
// decoding tool call arguments into maps.
func fromWireMessage(wm wireMessage) Message {
	m := Message{
		Role:       wm.Role,
		Content:    wm.Content,
		ToolCallID: wm.ToolCallID,
	}
	for _, wtc := range wm.ToolCalls {
		var args map[string]any
		if wtc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(wtc.Function.Arguments), &args); err != nil {
				args = map[string]any{"_raw": wtc.Function.Arguments}
			}
		}
		m.ToolCalls = append(m.ToolCalls, ToolCall{
			ID: wtc.ID,
			Function: FunctionCall{
				Name:      wtc.Function.Name,
				Arguments: args,
			},
		})
	}
	return m
}
