package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/quillhq/quill/internal/config"
	"github.com/quillhq/quill/internal/providers"
	"github.com/quillhq/quill/internal/tools"
	"github.com/quillhq/quill/internal/tracing"
)

// Loop drives one conversation turn: send history to the model, execute any
// tool calls it requests, feed results back, and repeat until the model
// replies without tool calls or the iteration cap is hit.
//
// All collaborators are passed in explicitly so the loop can be driven by
// stubs in tests.
type Loop struct {
	Provider providers.Provider
	Tools    *tools.Registry

	Model        string // "" uses the provider default
	SystemPrompt string
	Temperature  *float64

	// MaxIterations caps model calls per turn (default 25).
	MaxIterations int
	// ParallelTools executes a turn's tool calls concurrently. Result order
	// always matches tool-call order either way.
	ParallelTools bool

	ContextWindow int
	Pruning       *config.ContextPruningConfig

	// SessionKey scopes tool rate limiting; empty disables it.
	SessionKey string

	Tracer  *tracing.Collector
	OnEvent func(Event) // progress callback; with ParallelTools it may be called from multiple goroutines
}

// TurnResult is the outcome of one successful turn.
type TurnResult struct {
	// Reply is the model's final, user-visible message.
	Reply string
	// NewMessages is the suffix appended to the conversation this turn:
	// the user message, assistant messages, and tool results in order.
	NewMessages []providers.Message
	// ToolsUsed lists tool names in execution-request order, with repeats.
	ToolsUsed []string
	// Usage accumulates token counts across all model calls in the turn.
	Usage      providers.Usage
	Iterations int
}

// RunTurn appends userText as a user message and runs the model/tool cycle to
// completion. On success the staged messages are committed to conv and the
// result returned. On model failure, cancellation, or hitting the iteration
// cap, conv is left untouched so the caller can retry the same input.
func (l *Loop) RunTurn(ctx context.Context, conv *Conversation, userText string) (*TurnResult, error) {
	maxIter := l.MaxIterations
	if maxIter <= 0 {
		maxIter = config.DefaultMaxToolIterations
	}
	model := l.Model
	if model == "" {
		model = l.Provider.DefaultModel()
	}

	traceID := l.Tracer.NewTraceID()
	turnSpan := tracing.NewSpan(tracing.SpanTurn, "turn", traceID)
	turnSpan.Provider = l.Provider.Name()
	turnSpan.Model = model
	turnSpan.InputPreview = userText

	staged := []providers.Message{{Role: providers.RoleUser, Content: userText}}
	toolDefs := l.Tools.ProviderDefs()

	result := &TurnResult{}
	for iter := 1; iter <= maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			l.finishTurn(&turnSpan, err)
			return nil, err
		}

		l.emit(Event{Kind: EventModelCall, Iteration: iter})
		resp, err := l.invokeModel(ctx, model, conv, staged, toolDefs, traceID, turnSpan.ID)
		if err != nil {
			merr := &ModelError{Provider: l.Provider.Name(), Err: err}
			l.finishTurn(&turnSpan, merr)
			return nil, merr
		}

		result.Usage.PromptTokens += resp.Usage.PromptTokens
		result.Usage.CompletionTokens += resp.Usage.CompletionTokens
		result.Usage.TotalTokens += resp.Usage.TotalTokens
		result.Iterations = iter

		staged = append(staged, providers.Message{
			Role:      providers.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		if !resp.HasToolCalls() {
			conv.commit(staged)
			result.Reply = resp.Content
			result.NewMessages = staged
			turnSpan.OutputPreview = resp.Content
			l.finishTurn(&turnSpan, nil)
			return result, nil
		}

		toolResults := l.dispatchTools(ctx, resp.ToolCalls, iter, traceID, turnSpan.ID)
		if err := ctx.Err(); err != nil {
			// Tool results from an abandoned turn are never committed.
			l.finishTurn(&turnSpan, err)
			return nil, err
		}
		staged = append(staged, toolResults...)
		for _, tc := range resp.ToolCalls {
			result.ToolsUsed = append(result.ToolsUsed, tc.Function.Name)
		}
	}

	err := &LoopBoundError{Limit: maxIter}
	l.finishTurn(&turnSpan, err)
	return nil, err
}

func (l *Loop) invokeModel(ctx context.Context, model string, conv *Conversation, staged []providers.Message, toolDefs []providers.ToolDefinition, traceID, parentID uuid.UUID) (*providers.ChatResponse, error) {
	history := append(conv.Messages(), staged...)
	history = pruneContextMessages(history, l.ContextWindow, l.Pruning)

	msgs := make([]providers.Message, 0, len(history)+1)
	if l.SystemPrompt != "" {
		msgs = append(msgs, providers.Message{Role: providers.RoleSystem, Content: l.SystemPrompt})
	}
	msgs = append(msgs, history...)

	span := tracing.NewSpan(tracing.SpanLLMCall, "chat", traceID)
	span.ParentID = &parentID
	span.Provider = l.Provider.Name()
	span.Model = model
	if l.Tracer.Verbose() {
		span.InputPreview = fmt.Sprintf("%+v", msgs)
	}

	start := time.Now()
	resp, err := l.Provider.Chat(ctx, providers.ChatRequest{
		Model:       model,
		Messages:    msgs,
		Tools:       toolDefs,
		Temperature: l.Temperature,
	})
	span.Finish()
	if err != nil {
		span.Fail(err)
		l.Tracer.EmitSpan(span)
		return nil, err
	}

	span.InputTokens = resp.Usage.PromptTokens
	span.OutputTokens = resp.Usage.CompletionTokens
	span.OutputPreview = resp.Content
	if resp.HasToolCalls() {
		span.FinishReason = "tool_calls"
	} else {
		span.FinishReason = "stop"
	}
	l.Tracer.EmitSpan(span)

	slog.Debug("model call completed",
		"provider", l.Provider.Name(),
		"model", model,
		"tool_calls", len(resp.ToolCalls),
		"duration", time.Since(start).Round(time.Millisecond))
	return resp, nil
}

// dispatchTools executes the turn's tool calls and returns their results in
// tool-call order, one result message per call. Execution errors never
// propagate; they come back as error text for the model to react to.
func (l *Loop) dispatchTools(ctx context.Context, calls []providers.ToolCall, iter int, traceID, parentID uuid.UUID) []providers.Message {
	results := make([]providers.Message, len(calls))

	if l.ParallelTools && len(calls) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		for i, tc := range calls {
			g.Go(func() error {
				results[i] = l.executeCall(gctx, tc, iter, traceID, parentID)
				return nil
			})
		}
		g.Wait() // workers never return errors
		return results
	}

	for i, tc := range calls {
		results[i] = l.executeCall(ctx, tc, iter, traceID, parentID)
	}
	return results
}

func (l *Loop) executeCall(ctx context.Context, tc providers.ToolCall, iter int, traceID, parentID uuid.UUID) providers.Message {
	name := tc.Function.Name

	span := tracing.NewSpan(tracing.SpanToolCall, name, traceID)
	span.ParentID = &parentID
	span.ToolName = name
	span.ToolCallID = tc.ID
	span.InputPreview = tc.Function.Arguments

	args, err := tc.ParseArguments()
	l.emit(Event{Kind: EventToolCall, Iteration: iter, ToolName: name, ToolArgs: args})

	var res *tools.Result
	if err != nil {
		res = tools.ErrorResult(fmt.Sprintf("invalid arguments for %s: %v", name, err))
	} else {
		res = l.Tools.ExecuteForSession(ctx, name, args, l.SessionKey)
	}

	span.Finish()
	span.OutputPreview = res.ForLLM
	if res.IsError {
		span.Fail(res.Err)
		if span.Error == "" {
			span.Error = res.ForLLM
		}
	}
	l.Tracer.EmitSpan(span)

	l.emit(Event{
		Kind:      EventToolResult,
		Iteration: iter,
		ToolName:  name,
		Output:    res.ForUser,
		IsError:   res.IsError,
	})

	return providers.Message{
		Role:       providers.RoleTool,
		Content:    res.ForLLM,
		ToolCallID: tc.ID,
		Name:       name,
	}
}

func (l *Loop) finishTurn(span *tracing.Span, err error) {
	span.Finish()
	if err != nil {
		span.Fail(err)
	}
	l.Tracer.EmitSpan(*span)
}

func (l *Loop) emit(ev Event) {
	if l.OnEvent != nil {
		l.OnEvent(ev)
	}
}
