package providers

import (
	"context"
	"encoding/json"
)

// Message roles. The conversation is a tagged sequence of exactly these three
// roles plus the system prompt; there is no duck typing on message shape.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in a conversation, in OpenAI chat-completions wire shape.
// A "tool" message carries the output of exactly one tool call and is tagged
// with the originating call's ID and tool name.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall holds the tool name and its raw JSON argument payload.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ParseArguments decodes the call's argument payload into a generic map.
// Malformed JSON yields an empty map and the error; the caller decides whether
// to surface it to the model as a tool-result.
func (tc ToolCall) ParseArguments() (map[string]interface{}, error) {
	args := map[string]interface{}{}
	if tc.Function.Arguments == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
		return map[string]interface{}{}, err
	}
	return args, nil
}

// ToolDefinition declares a callable tool to the model (OpenAI function style).
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function ToolFunctionSchema `json:"function"`
}

// ToolFunctionSchema describes one tool: name, description, JSON-schema params.
type ToolFunctionSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ChatRequest is a provider-agnostic chat completion request.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Tools       []ToolDefinition
	MaxTokens   int
	Temperature *float64
}

// Usage reports token accounting when the provider supplies it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is one assistant reply: text content plus zero or more tool calls.
type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
	Model     string
	Usage     Usage
}

// HasToolCalls reports whether the reply requests any tool invocations.
func (r *ChatResponse) HasToolCalls() bool { return len(r.ToolCalls) > 0 }

// Provider sends a full message history (plus tool declarations) to one LLM
// backend and returns a single assistant message. One concrete implementation
// per provider is plugged in at startup; the agent loop only sees this interface.
type Provider interface {
	Name() string
	DefaultModel() string
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}
