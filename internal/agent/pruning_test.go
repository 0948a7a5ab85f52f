package agent

import (
	"strings"
	"testing"

	"github.com/quillhq/quill/internal/config"
	"github.com/quillhq/quill/internal/providers"
)

func pruningHistory(toolChars int) []providers.Message {
	long := strings.Repeat("x", toolChars)
	return []providers.Message{
		{Role: providers.RoleUser, Content: "do the thing"},
		{Role: providers.RoleAssistant, ToolCalls: []providers.ToolCall{
			{ID: "c1", Function: providers.FunctionCall{Name: "web_search", Arguments: "{}"}},
		}},
		{Role: providers.RoleTool, ToolCallID: "c1", Name: "web_search", Content: long},
		{Role: providers.RoleAssistant, Content: "found it"},
		{Role: providers.RoleUser, Content: "more"},
		{Role: providers.RoleAssistant, Content: "a"},
		{Role: providers.RoleUser, Content: "again"},
		{Role: providers.RoleAssistant, Content: "b"},
		{Role: providers.RoleUser, Content: "once more"},
		{Role: providers.RoleAssistant, Content: "c"},
	}
}

func TestPruning_OffModeReturnsInput(t *testing.T) {
	msgs := pruningHistory(100000)
	out := pruneContextMessages(msgs, 1000, nil)
	if &out[0] != &msgs[0] {
		t.Error("nil config should return the input slice")
	}
	out = pruneContextMessages(msgs, 1000, &config.ContextPruningConfig{Mode: "off"})
	if &out[0] != &msgs[0] {
		t.Error("mode off should return the input slice")
	}
}

func TestPruning_SoftTrimKeepsHeadAndTail(t *testing.T) {
	msgs := pruningHistory(100000)
	cfg := &config.ContextPruningConfig{
		Mode: "trim",
		HardClear: &config.HardClearConfig{Enabled: boolPtr(false)},
	}

	out := pruneContextMessages(msgs, 1000, cfg)
	trimmed := out[2].Content
	if len(trimmed) >= 100000 {
		t.Fatal("old tool result was not trimmed")
	}
	if !strings.Contains(trimmed, "[Tool result trimmed") {
		t.Errorf("trimmed content missing marker: %.100s", trimmed)
	}
	if !strings.HasPrefix(trimmed, "xxx") {
		t.Error("head of the tool result should be preserved")
	}
	if out[2].ToolCallID != "c1" || out[2].Name != "web_search" {
		t.Errorf("trim dropped identifying fields: %+v", out[2])
	}

	// Input must not be mutated.
	if len(msgs[2].Content) != 100000 {
		t.Error("pruning mutated the input slice")
	}
}

func TestPruning_HardClearReplacesWithPlaceholder(t *testing.T) {
	msgs := pruningHistory(100000)
	cfg := &config.ContextPruningConfig{
		Mode:                 "trim",
		MinPrunableToolChars: 10,
	}

	out := pruneContextMessages(msgs, 100, cfg)
	if out[2].Content != defaultHardClearPlaceholder {
		t.Errorf("expected placeholder, got %.80q", out[2].Content)
	}
}

func TestPruning_ProtectsRecentAssistants(t *testing.T) {
	long := strings.Repeat("y", 100000)
	msgs := []providers.Message{
		{Role: providers.RoleUser, Content: "go"},
		{Role: providers.RoleAssistant, ToolCalls: []providers.ToolCall{
			{ID: "c1", Function: providers.FunctionCall{Name: "echo", Arguments: "{}"}},
		}},
		{Role: providers.RoleTool, ToolCallID: "c1", Content: long},
		{Role: providers.RoleAssistant, Content: "done"},
	}
	// Only one assistant message precedes the tool result, so with the
	// default keep-last-3 nothing is old enough to prune.
	out := pruneContextMessages(msgs, 100, &config.ContextPruningConfig{Mode: "trim"})
	if out[2].Content != long {
		t.Error("recent tool result should be protected")
	}
}

func TestFindAssistantCutoff(t *testing.T) {
	msgs := pruningHistory(10)
	// Assistant messages are at indexes 1, 3, 5, 7, 9; third-from-last is 5.
	if got := findAssistantCutoff(msgs, 3); got != 5 {
		t.Errorf("cutoff = %d, want 5", got)
	}
	if got := findAssistantCutoff(msgs, 99); got != -1 {
		t.Errorf("cutoff with too few assistants = %d, want -1", got)
	}
	if got := findAssistantCutoff(msgs, 0); got != len(msgs) {
		t.Errorf("cutoff with keep=0 = %d, want %d", got, len(msgs))
	}
}

func TestTakeHeadTail(t *testing.T) {
	s := "héllo wörld"
	if got := takeHead(s, 4); got != "héll" {
		t.Errorf("takeHead = %q", got)
	}
	if got := takeTail(s, 4); got != "örld" {
		t.Errorf("takeTail = %q", got)
	}
	if got := takeHead(s, 100); got != s {
		t.Errorf("takeHead over-length = %q", got)
	}
	if got := takeTail(s, 0); got != "" {
		t.Errorf("takeTail zero = %q", got)
	}
}

func TestEstimateHistoryTokens(t *testing.T) {
	msgs := []providers.Message{
		{Role: providers.RoleUser, Content: strings.Repeat("word ", 100)},
	}
	got := EstimateHistoryTokens(msgs)
	if got <= 0 {
		t.Errorf("token estimate = %d, want > 0", got)
	}
	if EstimateHistoryTokens(nil) != 0 {
		t.Error("empty history should estimate zero tokens")
	}
}

func boolPtr(b bool) *bool { return &b }
