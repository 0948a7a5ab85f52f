package agent

import (
	"testing"

	"github.com/quillhq/quill/internal/providers"
)

func TestConversationSeedAndClear(t *testing.T) {
	c := NewConversation()
	if c.Len() != 0 {
		t.Fatalf("new conversation not empty: %d", c.Len())
	}

	seed := []providers.Message{
		{Role: providers.RoleUser, Content: "hi"},
		{Role: providers.RoleAssistant, Content: "hello"},
	}
	c.Seed(seed)
	if c.Len() != 2 {
		t.Fatalf("seeded length = %d", c.Len())
	}

	// Mutating the seed slice must not affect the conversation.
	seed[0].Content = "changed"
	if c.Messages()[0].Content != "hi" {
		t.Error("conversation aliases the seed slice")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("clear left %d messages", c.Len())
	}
}

func TestConversationMessagesIsACopy(t *testing.T) {
	c := NewConversation()
	c.commit([]providers.Message{{Role: providers.RoleUser, Content: "original"}})

	got := c.Messages()
	got[0].Content = "mutated"
	if c.Messages()[0].Content != "original" {
		t.Error("Messages() exposed internal state")
	}
}
