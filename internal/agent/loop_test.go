package agent

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quillhq/quill/internal/providers"
	"github.com/quillhq/quill/internal/tools"
)

// stubModel replays a scripted sequence of responses and records every
// request it receives.
type stubModel struct {
	mu        sync.Mutex
	responses []*providers.ChatResponse
	errAt     int // 1-based call number that fails; 0 = never
	err       error
	calls     int
	requests  []providers.ChatRequest
}

func (s *stubModel) Name() string         { return "stub" }
func (s *stubModel) DefaultModel() string { return "stub-1" }

func (s *stubModel) Chat(_ context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.requests = append(s.requests, req)
	if s.errAt > 0 && s.calls >= s.errAt {
		return nil, s.err
	}
	idx := s.calls - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

func (s *stubModel) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = 0
	s.requests = nil
}

// echoTool returns its "value" argument; onExec lets tests inject delays or
// cancellation mid-execution.
type echoTool struct {
	onExec func(args map[string]interface{})
}

func (e *echoTool) Name() string        { return "echo" }
func (e *echoTool) Description() string { return "echoes the value argument" }
func (e *echoTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"value": map[string]interface{}{"type": "string"},
		},
		"required": []string{"value"},
	}
}

func (e *echoTool) Execute(_ context.Context, args map[string]interface{}) *tools.Result {
	if e.onExec != nil {
		e.onExec(args)
	}
	v, _ := args["value"].(string)
	return tools.NewResult("echo: " + v)
}

func assistantWithCalls(calls ...providers.ToolCall) *providers.ChatResponse {
	return &providers.ChatResponse{ToolCalls: calls}
}

func call(id, name, args string) providers.ToolCall {
	return providers.ToolCall{
		ID:   id,
		Type: "function",
		Function: providers.FunctionCall{
			Name:      name,
			Arguments: args,
		},
	}
}

func newTestLoop(model providers.Provider, reg *tools.Registry) *Loop {
	return &Loop{Provider: model, Tools: reg}
}

func TestRunTurn_TerminatesWithoutToolCalls(t *testing.T) {
	model := &stubModel{responses: []*providers.ChatResponse{
		{Content: "hello there"},
	}}
	loop := newTestLoop(model, tools.NewRegistry())
	conv := NewConversation()

	res, err := loop.RunTurn(context.Background(), conv, "hi")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if res.Reply != "hello there" {
		t.Errorf("reply = %q", res.Reply)
	}
	// Exactly two new messages: the user input and the assistant reply.
	if conv.Len() != 2 {
		t.Fatalf("conversation length = %d, want 2", conv.Len())
	}
	msgs := conv.Messages()
	if msgs[0].Role != providers.RoleUser || msgs[1].Role != providers.RoleAssistant {
		t.Errorf("unexpected roles: %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if model.calls != 1 {
		t.Errorf("model called %d times, want 1", model.calls)
	}
}

func TestRunTurn_CalculatorScenario(t *testing.T) {
	model := &stubModel{responses: []*providers.ChatResponse{
		assistantWithCalls(call("c1", "calculator", `{"expression":"15*3+7"}`)),
		{Content: "The result is 52."},
	}}
	reg := tools.NewRegistry()
	reg.Register(tools.NewCalculatorTool())
	loop := newTestLoop(model, reg)
	conv := NewConversation()

	res, err := loop.RunTurn(context.Background(), conv, "calculate 15 * 3 + 7")
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if res.Reply != "The result is 52." {
		t.Errorf("reply = %q", res.Reply)
	}

	msgs := conv.Messages()
	wantRoles := []string{
		providers.RoleUser,
		providers.RoleAssistant,
		providers.RoleTool,
		providers.RoleAssistant,
	}
	if len(msgs) != len(wantRoles) {
		t.Fatalf("got %d messages, want %d: %+v", len(msgs), len(wantRoles), msgs)
	}
	for i, want := range wantRoles {
		if msgs[i].Role != want {
			t.Errorf("message %d role = %s, want %s", i, msgs[i].Role, want)
		}
	}
	if len(msgs[1].ToolCalls) != 1 {
		t.Errorf("assistant message should carry the tool call")
	}
	if msgs[2].Content != "52" || msgs[2].ToolCallID != "c1" || msgs[2].Name != "calculator" {
		t.Errorf("tool result = %+v", msgs[2])
	}
	if got := res.ToolsUsed; len(got) != 1 || got[0] != "calculator" {
		t.Errorf("tools used = %v", got)
	}

	// The second model request must include the tool result.
	second := model.requests[1]
	found := false
	for _, m := range second.Messages {
		if m.Role == providers.RoleTool && m.Content == "52" {
			found = true
		}
	}
	if !found {
		t.Error("second request is missing the tool result")
	}
}

func TestRunTurn_OrderingInvariant(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			model := &stubModel{responses: []*providers.ChatResponse{
				assistantWithCalls(
					call("c1", "echo", `{"value":"first"}`),
					call("c2", "echo", `{"value":"second"}`),
					call("c3", "echo", `{"value":"third"}`),
				),
				{Content: "done"},
			}}
			reg := tools.NewRegistry()
			// The first call sleeps longest, so under parallel execution it
			// finishes last; result order must still match call order.
			delays := map[string]time.Duration{"first": 30 * time.Millisecond, "second": 10 * time.Millisecond, "third": 0}
			reg.Register(&echoTool{onExec: func(args map[string]interface{}) {
				v, _ := args["value"].(string)
				time.Sleep(delays[v])
			}})
			loop := newTestLoop(model, reg)
			loop.ParallelTools = parallel
			conv := NewConversation()

			if _, err := loop.RunTurn(context.Background(), conv, "go"); err != nil {
				t.Fatalf("RunTurn: %v", err)
			}

			msgs := conv.Messages()
			// [user, assistant, tool*3, assistant]
			if len(msgs) != 6 {
				t.Fatalf("got %d messages: %+v", len(msgs), msgs)
			}
			wantIDs := []string{"c1", "c2", "c3"}
			wantContents := []string{"echo: first", "echo: second", "echo: third"}
			for i := 0; i < 3; i++ {
				m := msgs[2+i]
				if m.Role != providers.RoleTool {
					t.Fatalf("message %d role = %s", 2+i, m.Role)
				}
				if m.ToolCallID != wantIDs[i] || m.Content != wantContents[i] {
					t.Errorf("result %d = {id:%s content:%q}, want {id:%s content:%q}",
						i, m.ToolCallID, m.Content, wantIDs[i], wantContents[i])
				}
			}
		})
	}
}

func TestRunTurn_UnknownToolContinues(t *testing.T) {
	model := &stubModel{responses: []*providers.ChatResponse{
		assistantWithCalls(call("c1", "frobnicate", `{}`)),
		{Content: "I don't have that tool."},
	}}
	loop := newTestLoop(model, tools.NewRegistry())
	conv := NewConversation()

	res, err := loop.RunTurn(context.Background(), conv, "frobnicate the widget")
	if err != nil {
		t.Fatalf("unknown tool must not abort the turn: %v", err)
	}
	if res.Reply != "I don't have that tool." {
		t.Errorf("reply = %q", res.Reply)
	}

	msgs := conv.Messages()
	toolMsg := msgs[2]
	if toolMsg.Role != providers.RoleTool {
		t.Fatalf("expected tool result at index 2, got %s", toolMsg.Role)
	}
	if !containsAll(toolMsg.Content, "frobnicate", "unknown") {
		t.Errorf("tool result should name the unrecognized tool: %q", toolMsg.Content)
	}
	if model.calls != 2 {
		t.Errorf("loop should continue to a second model call, got %d", model.calls)
	}
}

func TestRunTurn_ModelErrorRollsBack(t *testing.T) {
	wantErr := errors.New("connection refused")
	model := &stubModel{errAt: 1, err: wantErr}
	loop := newTestLoop(model, tools.NewRegistry())

	conv := NewConversation()
	conv.Seed([]providers.Message{
		{Role: providers.RoleUser, Content: "earlier"},
		{Role: providers.RoleAssistant, Content: "earlier reply"},
	})

	_, err := loop.RunTurn(context.Background(), conv, "new input")
	var merr *ModelError
	if !errors.As(err, &merr) {
		t.Fatalf("expected ModelError, got %v", err)
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("ModelError should wrap the cause: %v", err)
	}
	if conv.Len() != 2 {
		t.Errorf("conversation grew to %d messages; rollback must restore pre-turn length 2", conv.Len())
	}
}

func TestRunTurn_ModelErrorAfterToolsRollsBack(t *testing.T) {
	// First call requests a tool, second call fails: the user message, the
	// assistant message, and the tool result must all be discarded.
	model := &stubModel{
		responses: []*providers.ChatResponse{
			assistantWithCalls(call("c1", "echo", `{"value":"x"}`)),
		},
		errAt: 2,
		err:   errors.New("rate limited"),
	}
	reg := tools.NewRegistry()
	reg.Register(&echoTool{})
	loop := newTestLoop(model, reg)
	conv := NewConversation()

	_, err := loop.RunTurn(context.Background(), conv, "go")
	var merr *ModelError
	if !errors.As(err, &merr) {
		t.Fatalf("expected ModelError, got %v", err)
	}
	if conv.Len() != 0 {
		t.Errorf("partial appends leaked: %d messages", conv.Len())
	}
}

func TestRunTurn_CancellationRollsBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	model := &stubModel{responses: []*providers.ChatResponse{
		assistantWithCalls(call("c1", "echo", `{"value":"x"}`)),
		{Content: "never reached"},
	}}
	reg := tools.NewRegistry()
	// Simulate a user interrupt arriving while the tool runs.
	reg.Register(&echoTool{onExec: func(map[string]interface{}) { cancel() }})
	loop := newTestLoop(model, reg)
	conv := NewConversation()

	_, err := loop.RunTurn(ctx, conv, "go")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if conv.Len() != 0 {
		t.Errorf("cancelled turn committed %d messages", conv.Len())
	}
}

func TestRunTurn_LoopBound(t *testing.T) {
	// Model keeps asking for tools forever.
	model := &stubModel{responses: []*providers.ChatResponse{
		assistantWithCalls(call("c1", "echo", `{"value":"again"}`)),
	}}
	reg := tools.NewRegistry()
	reg.Register(&echoTool{})
	loop := newTestLoop(model, reg)
	loop.MaxIterations = 3
	conv := NewConversation()

	_, err := loop.RunTurn(context.Background(), conv, "go")
	if !errors.Is(err, ErrLoopBound) {
		t.Fatalf("expected ErrLoopBound, got %v", err)
	}
	var lerr *LoopBoundError
	if !errors.As(err, &lerr) || lerr.Limit != 3 {
		t.Errorf("expected LoopBoundError with limit 3, got %v", err)
	}
	if model.calls != 3 {
		t.Errorf("model called %d times, want 3", model.calls)
	}
	if conv.Len() != 0 {
		t.Errorf("aborted turn committed %d messages", conv.Len())
	}
}

func TestRunTurn_DeterministicReplay(t *testing.T) {
	model := &stubModel{responses: []*providers.ChatResponse{
		assistantWithCalls(call("c1", "calculator", `{"expression":"2^10"}`)),
		{Content: "1024 it is."},
	}}
	reg := tools.NewRegistry()
	reg.Register(tools.NewCalculatorTool())
	loop := newTestLoop(model, reg)

	run := func() []providers.Message {
		model.reset()
		conv := NewConversation()
		if _, err := loop.RunTurn(context.Background(), conv, "what is 2^10?"); err != nil {
			t.Fatalf("RunTurn: %v", err)
		}
		return conv.Messages()
	}

	first := run()
	second := run()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("replay diverged:\n%+v\nvs\n%+v", first, second)
	}
}

func TestRunTurn_SystemPromptNotStored(t *testing.T) {
	model := &stubModel{responses: []*providers.ChatResponse{{Content: "ok"}}}
	loop := newTestLoop(model, tools.NewRegistry())
	loop.SystemPrompt = "You are quill."
	conv := NewConversation()

	if _, err := loop.RunTurn(context.Background(), conv, "hi"); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}

	req := model.requests[0]
	if len(req.Messages) == 0 || req.Messages[0].Role != providers.RoleSystem {
		t.Fatal("request should start with the system prompt")
	}
	if req.Messages[0].Content != "You are quill." {
		t.Errorf("system content = %q", req.Messages[0].Content)
	}
	for _, m := range conv.Messages() {
		if m.Role == providers.RoleSystem {
			t.Error("system prompt must not be committed to the conversation")
		}
	}
}

func TestRunTurn_InvalidToolArguments(t *testing.T) {
	model := &stubModel{responses: []*providers.ChatResponse{
		assistantWithCalls(call("c1", "echo", `{not json`)),
		{Content: "sorry, bad arguments"},
	}}
	reg := tools.NewRegistry()
	reg.Register(&echoTool{})
	loop := newTestLoop(model, reg)
	conv := NewConversation()

	if _, err := loop.RunTurn(context.Background(), conv, "go"); err != nil {
		t.Fatalf("malformed arguments must not abort the turn: %v", err)
	}
	toolMsg := conv.Messages()[2]
	if !containsAll(toolMsg.Content, "echo", "invalid arguments") {
		t.Errorf("tool result = %q", toolMsg.Content)
	}
}

func TestRunTurn_Events(t *testing.T) {
	model := &stubModel{responses: []*providers.ChatResponse{
		assistantWithCalls(call("c1", "echo", `{"value":"x"}`)),
		{Content: "done"},
	}}
	reg := tools.NewRegistry()
	reg.Register(&echoTool{})
	loop := newTestLoop(model, reg)

	var events []Event
	loop.OnEvent = func(ev Event) { events = append(events, ev) }

	if _, err := loop.RunTurn(context.Background(), NewConversation(), "go"); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}

	wantKinds := []EventKind{EventModelCall, EventToolCall, EventToolResult, EventModelCall}
	if len(events) != len(wantKinds) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(wantKinds), events)
	}
	for i, want := range wantKinds {
		if events[i].Kind != want {
			t.Errorf("event %d kind = %d, want %d", i, events[i].Kind, want)
		}
	}
	if events[1].ToolName != "echo" || events[2].IsError {
		t.Errorf("tool events = %+v", events[1:3])
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
