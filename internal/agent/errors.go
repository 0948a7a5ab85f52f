package agent

import (
	"errors"
	"fmt"
)

// ErrLoopBound is returned when a turn exceeds the model/tool round-trip cap
// without the model producing a final reply. Matched with errors.Is.
var ErrLoopBound = errors.New("tool iteration limit exceeded")

// LoopBoundError carries the limit that was hit. It unwraps to ErrLoopBound.
type LoopBoundError struct {
	Limit int
}

func (e *LoopBoundError) Error() string {
	return fmt.Sprintf("turn aborted: %d model calls without a final reply", e.Limit)
}

func (e *LoopBoundError) Unwrap() error { return ErrLoopBound }

// ModelError wraps a provider failure (auth, network, rate limit). The turn is
// aborted and the conversation is left as it was before the turn started, so
// the caller can retry the same input.
type ModelError struct {
	Provider string
	Err      error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model invocation failed (%s): %v", e.Provider, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }
