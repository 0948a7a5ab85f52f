package agent

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/quillhq/quill/internal/config"
	"github.com/quillhq/quill/internal/providers"
)

// Context pruning defaults.
const (
	defaultKeepLastAssistants   = 3
	defaultSoftTrimRatio        = 0.3
	defaultHardClearRatio       = 0.5
	defaultMinPrunableToolChars = 50000
	defaultSoftTrimMaxChars     = 4000
	defaultSoftTrimHeadChars    = 1500
	defaultSoftTrimTailChars    = 1500
	defaultHardClearPlaceholder = "[Old tool result content cleared]"
	charsPerTokenEstimate       = 4
)

var (
	tokenizerOnce sync.Once
	tokenizer     *tiktoken.Tiktoken
)

// estimateTokens counts tokens with the cl100k_base encoding, falling back to
// a chars/4 estimate when the encoding data isn't available (offline runs).
func estimateTokens(s string) int {
	tokenizerOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			tokenizer = enc
		}
	})
	if tokenizer != nil {
		return len(tokenizer.Encode(s, nil, nil))
	}
	return (utf8.RuneCountInString(s) + charsPerTokenEstimate - 1) / charsPerTokenEstimate
}

// EstimateHistoryTokens estimates the token footprint of a message history.
// The chat UI uses this for its /tokens readout.
func EstimateHistoryTokens(msgs []providers.Message) int {
	total := 0
	for _, m := range msgs {
		total += estimateTokens(m.Content)
		for _, tc := range m.ToolCalls {
			total += estimateTokens(tc.Function.Arguments)
		}
	}
	return total
}

// effectivePruningSettings holds resolved pruning settings with defaults applied.
type effectivePruningSettings struct {
	keepLastAssistants   int
	softTrimRatio        float64
	hardClearRatio       float64
	minPrunableToolChars int
	softTrimMaxChars     int
	softTrimHeadChars    int
	softTrimTailChars    int
	hardClearEnabled     bool
	hardClearPlaceholder string
}

func resolvePruningSettings(cfg *config.ContextPruningConfig) *effectivePruningSettings {
	s := &effectivePruningSettings{
		keepLastAssistants:   defaultKeepLastAssistants,
		softTrimRatio:        defaultSoftTrimRatio,
		hardClearRatio:       defaultHardClearRatio,
		minPrunableToolChars: defaultMinPrunableToolChars,
		softTrimMaxChars:     defaultSoftTrimMaxChars,
		softTrimHeadChars:    defaultSoftTrimHeadChars,
		softTrimTailChars:    defaultSoftTrimTailChars,
		hardClearEnabled:     true,
		hardClearPlaceholder: defaultHardClearPlaceholder,
	}

	if cfg == nil {
		return s
	}

	if cfg.KeepLastAssistants > 0 {
		s.keepLastAssistants = cfg.KeepLastAssistants
	}
	if cfg.SoftTrimRatio > 0 && cfg.SoftTrimRatio <= 1 {
		s.softTrimRatio = cfg.SoftTrimRatio
	}
	if cfg.HardClearRatio > 0 && cfg.HardClearRatio <= 1 {
		s.hardClearRatio = cfg.HardClearRatio
	}
	if cfg.MinPrunableToolChars > 0 {
		s.minPrunableToolChars = cfg.MinPrunableToolChars
	}

	if cfg.SoftTrim != nil {
		if cfg.SoftTrim.MaxChars > 0 {
			s.softTrimMaxChars = cfg.SoftTrim.MaxChars
		}
		if cfg.SoftTrim.HeadChars > 0 {
			s.softTrimHeadChars = cfg.SoftTrim.HeadChars
		}
		if cfg.SoftTrim.TailChars > 0 {
			s.softTrimTailChars = cfg.SoftTrim.TailChars
		}
	}

	if cfg.HardClear != nil {
		if cfg.HardClear.Enabled != nil {
			s.hardClearEnabled = *cfg.HardClear.Enabled
		}
		if cfg.HardClear.Placeholder != "" {
			s.hardClearPlaceholder = cfg.HardClear.Placeholder
		}
	}

	return s
}

// pruneContextMessages trims old tool results to reduce context window usage.
//
// Two-pass approach:
//  1. Soft trim: keep head + tail of long tool results, drop the middle.
//  2. Hard clear: replace the entire tool result with a placeholder.
//
// Only tool results older than the last keepLastAssistants assistant messages
// are eligible. Returns a new slice if any changes were made, otherwise the
// original; input messages are never mutated in place.
func pruneContextMessages(msgs []providers.Message, contextWindowTokens int, cfg *config.ContextPruningConfig) []providers.Message {
	if cfg == nil || cfg.Mode != "trim" {
		return msgs
	}
	if contextWindowTokens <= 0 || len(msgs) == 0 {
		return msgs
	}

	settings := resolvePruningSettings(cfg)

	// Protect the last N assistant messages and everything after them.
	cutoffIndex := findAssistantCutoff(msgs, settings.keepLastAssistants)
	if cutoffIndex < 0 {
		return msgs
	}

	// Never prune before the first user message.
	pruneStart := len(msgs)
	for i, m := range msgs {
		if m.Role == providers.RoleUser {
			pruneStart = i
			break
		}
	}

	totalTokens := EstimateHistoryTokens(msgs)
	ratio := float64(totalTokens) / float64(contextWindowTokens)
	if ratio < settings.softTrimRatio {
		return msgs // context is small enough
	}

	var prunableIndexes []int
	for i := pruneStart; i < cutoffIndex; i++ {
		if msgs[i].Role == providers.RoleTool && msgs[i].Content != "" {
			prunableIndexes = append(prunableIndexes, i)
		}
	}
	if len(prunableIndexes) == 0 {
		return msgs
	}

	// Pass 1: soft trim long tool results.
	var result []providers.Message
	for _, idx := range prunableIndexes {
		msg := msgs[idx]
		msgChars := utf8.RuneCountInString(msg.Content)
		if msgChars <= settings.softTrimMaxChars {
			continue
		}

		// Lazy copy
		if result == nil {
			result = make([]providers.Message, len(msgs))
			copy(result, msgs)
		}

		head := takeHead(msg.Content, settings.softTrimHeadChars)
		tail := takeTail(msg.Content, settings.softTrimTailChars)
		trimmed := fmt.Sprintf("%s\n...\n%s\n\n[Tool result trimmed: kept first %d chars and last %d chars of %d chars.]",
			head, tail, settings.softTrimHeadChars, settings.softTrimTailChars, msgChars)

		totalTokens += estimateTokens(trimmed) - estimateTokens(msg.Content)
		result[idx] = providers.Message{
			Role:       msg.Role,
			Content:    trimmed,
			ToolCallID: msg.ToolCallID,
			Name:       msg.Name,
		}
	}

	output := msgs
	if result != nil {
		output = result
	}

	// Re-check ratio after soft trim.
	ratio = float64(totalTokens) / float64(contextWindowTokens)
	if ratio < settings.hardClearRatio || !settings.hardClearEnabled {
		return output
	}

	prunableChars := 0
	for _, idx := range prunableIndexes {
		prunableChars += utf8.RuneCountInString(output[idx].Content)
	}
	if prunableChars < settings.minPrunableToolChars {
		return output
	}

	// Pass 2: hard clear, oldest first, until under the ratio.
	if result == nil {
		result = make([]providers.Message, len(msgs))
		copy(result, msgs)
		output = result
	}

	placeholderTokens := estimateTokens(settings.hardClearPlaceholder)
	for _, idx := range prunableIndexes {
		if ratio < settings.hardClearRatio {
			break
		}
		msg := output[idx]
		totalTokens += placeholderTokens - estimateTokens(msg.Content)
		output[idx] = providers.Message{
			Role:       msg.Role,
			Content:    settings.hardClearPlaceholder,
			ToolCallID: msg.ToolCallID,
			Name:       msg.Name,
		}
		ratio = float64(totalTokens) / float64(contextWindowTokens)
	}

	return output
}

// findAssistantCutoff returns the index of the Nth-from-last assistant
// message. Messages at or after this index are protected from pruning.
// Returns -1 if not enough assistant messages exist.
func findAssistantCutoff(msgs []providers.Message, keepLast int) int {
	if keepLast <= 0 {
		return len(msgs)
	}

	remaining := keepLast
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == providers.RoleAssistant {
			remaining--
			if remaining == 0 {
				return i
			}
		}
	}
	return -1
}

// takeHead returns the first n runes of s.
func takeHead(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// takeTail returns the last n runes of s.
func takeTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
