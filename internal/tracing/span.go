package tracing

import (
	"time"

	"github.com/google/uuid"
)

// Span types emitted by the agent loop.
const (
	SpanTurn     = "turn"
	SpanLLMCall  = "llm_call"
	SpanToolCall = "tool_call"
)

// Span is a single timed unit of work inside a turn: the turn itself, one
// model invocation, or one tool execution.
type Span struct {
	ID       uuid.UUID
	TraceID  uuid.UUID
	ParentID *uuid.UUID

	SpanType string
	Name     string

	// LLM call fields
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	FinishReason string

	// Tool call fields
	ToolName   string
	ToolCallID string

	InputPreview  string
	OutputPreview string

	Status string // "ok" or "error"
	Error  string

	StartTime  time.Time
	EndTime    time.Time
	DurationMS int
}

// NewSpan starts a span of the given type now. Callers fill in the rest and
// hand it to Collector.EmitSpan when done.
func NewSpan(spanType, name string, traceID uuid.UUID) Span {
	return Span{
		ID:        uuid.New(),
		TraceID:   traceID,
		SpanType:  spanType,
		Name:      name,
		Status:    "ok",
		StartTime: time.Now().UTC(),
	}
}

// Finish stamps the end time and duration.
func (s *Span) Finish() {
	s.EndTime = time.Now().UTC()
	s.DurationMS = int(s.EndTime.Sub(s.StartTime).Milliseconds())
}

// Fail marks the span as errored.
func (s *Span) Fail(err error) {
	s.Status = "error"
	if err != nil {
		s.Error = err.Error()
	}
}
