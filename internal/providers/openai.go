package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	openaiDefaultBase  = "https://api.openai.com/v1"
	openaiDefaultModel = "gpt-4o"

	maxChatRetries   = 3
	initialBackoff   = 1 * time.Second
	chatClientTimeout = 120 * time.Second
)

// APIError is a non-2xx response from a provider's HTTP API.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Body)
}

// OpenAIProvider speaks the OpenAI-compatible /chat/completions protocol.
// Several other providers (OpenRouter, Groq, DeepSeek) wrap this type with
// their own base URL and defaults.
type OpenAIProvider struct {
	name         string
	apiKey       string
	apiBase      string
	defaultModel string
	client       *http.Client
}

func NewOpenAIProvider(name, apiKey, apiBase, defaultModel string) *OpenAIProvider {
	if name == "" {
		name = "openai"
	}
	if apiBase == "" {
		apiBase = openaiDefaultBase
	}
	if defaultModel == "" {
		defaultModel = openaiDefaultModel
	}
	return &OpenAIProvider{
		name:         name,
		apiKey:       apiKey,
		apiBase:      strings.TrimRight(apiBase, "/"),
		defaultModel: defaultModel,
		client:       &http.Client{Timeout: chatClientTimeout},
	}
}

func (p *OpenAIProvider) Name() string         { return p.name }
func (p *OpenAIProvider) DefaultModel() string { return p.defaultModel }
func (p *OpenAIProvider) APIBase() string      { return p.apiBase }

// chatCompletionRequest is the wire request body.
type chatCompletionRequest struct {
	Model       string           `json:"model"`
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	ToolChoice  string           `json:"tool_choice,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
}

// chatCompletionResponse is the wire response body. Content is kept raw because
// some compatible backends return a parts array instead of a plain string.
type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role      string          `json:"role"`
			Content   json.RawMessage `json:"content"`
			ToolCalls []ToolCall      `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Chat sends the full message history and returns one assistant message.
// Transient failures (429, 5xx, network errors) are retried with exponential
// backoff; the final error is returned unwrapped in an *APIError where the
// provider produced an HTTP status.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%s: API key not set", p.name)
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	body := chatCompletionRequest{
		Model:       model,
		Messages:    req.Messages,
		Tools:       CleanToolSchemas(p.name, req.Tools),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if len(body.Tools) > 0 {
		body.ToolChoice = "auto"
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", p.name, err)
	}

	respBody, err := p.doWithRetry(ctx, raw)
	if err != nil {
		return nil, err
	}

	var out chatCompletionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", p.name, err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("%s: %s", p.name, out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("%s: response contained no choices", p.name)
	}

	choice := out.Choices[0]
	resp := &ChatResponse{
		Content:   parseContent(choice.Message.Content),
		ToolCalls: choice.Message.ToolCalls,
		Model:     out.Model,
		Usage:     out.Usage,
	}
	slog.Debug("chat completion",
		"provider", p.name,
		"model", model,
		"tool_calls", len(resp.ToolCalls),
		"content_len", len(resp.Content),
		"total_tokens", resp.Usage.TotalTokens,
	)
	return resp, nil
}

// doWithRetry posts the request body, retrying on 429/5xx and network errors.
func (p *OpenAIProvider) doWithRetry(ctx context.Context, raw []byte) ([]byte, error) {
	url := p.apiBase + "/chat/completions"
	backoff := initialBackoff

	var lastErr error
	for attempt := 0; attempt <= maxChatRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying chat completion", "provider", p.name, "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("%s: build request: %w", p.name, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.apiKey)

		resp, err := p.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("%s: request failed: %w", p.name, err)
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("%s: read response: %w", p.name, readErr)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &APIError{Provider: p.name, StatusCode: resp.StatusCode, Body: truncateBody(respBody)}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &APIError{Provider: p.name, StatusCode: resp.StatusCode, Body: truncateBody(respBody)}
		}
		return respBody, nil
	}
	return nil, lastErr
}

func truncateBody(b []byte) string {
	const max = 500
	s := string(b)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// parseContent handles content that may be a JSON string, null, or an array of
// typed parts (some OpenAI-compatible backends return the latter).
func parseContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []map[string]interface{}
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	var b strings.Builder
	for _, part := range parts {
		if t, ok := part["text"].(string); ok {
			b.WriteString(t)
		}
	}
	return b.String()
}
