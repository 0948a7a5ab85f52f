package agent

// EventKind identifies a loop progress event.
type EventKind int

const (
	// EventModelCall fires before each model invocation.
	EventModelCall EventKind = iota
	// EventToolCall fires before a tool executes.
	EventToolCall
	// EventToolResult fires after a tool finishes.
	EventToolResult
)

// Event is a progress notification emitted while a turn runs. The chat UI
// uses these to show "calling calculator..." style feedback; callers that
// don't care leave OnEvent nil.
type Event struct {
	Kind      EventKind
	Iteration int

	ToolName string
	ToolArgs map[string]interface{}

	// Result fields, set for EventToolResult.
	Output  string // user-facing summary, may be empty
	IsError bool
}
