package agent

import "github.com/quillhq/quill/internal/providers"

// Conversation is the append-only message history of one chat session: user,
// assistant, and tool-result messages in insertion order. The system prompt is
// not stored here; the loop prepends it when building each model request.
//
// A Conversation has a single owner. RunTurn stages its appends privately and
// commits them only when the turn succeeds, so a failed or cancelled turn
// leaves the history exactly as it was.
type Conversation struct {
	messages []providers.Message
}

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Seed replaces the history wholesale, used when resuming a persisted session.
func (c *Conversation) Seed(msgs []providers.Message) {
	c.messages = append(c.messages[:0:0], msgs...)
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []providers.Message {
	out := make([]providers.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages in the history.
func (c *Conversation) Len() int { return len(c.messages) }

// Clear drops the history, starting a fresh conversation.
func (c *Conversation) Clear() { c.messages = nil }

// commit appends a completed turn's messages. Only the loop calls this, and
// only after the turn has fully succeeded.
func (c *Conversation) commit(staged []providers.Message) {
	c.messages = append(c.messages, staged...)
}
