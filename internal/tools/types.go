package tools

import (
	"context"

	"github.com/quillhq/quill/internal/providers"
)

// Tool is the interface all tools must implement. Parameters returns a JSON
// Schema describing the argument payload; validation of the actual arguments
// is the tool's own job — the registry passes them through opaquely.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *Result
}

// ToProviderDef converts a Tool to a providers.ToolDefinition for LLM APIs.
func ToProviderDef(t Tool) providers.ToolDefinition {
	return providers.ToolDefinition{
		Type: "function",
		Function: providers.ToolFunctionSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		},
	}
}
