package providers

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps provider names to configured Provider instances.
// Built once at startup from config + credentials; the agent loop receives a
// single Provider from it, never the registry itself.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under its own name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider not configured: %s", name)
	}
	return p, nil
}

// List returns the registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs a provider by well-known name. An empty apiBase/model picks
// the provider's defaults; "custom" requires an explicit base URL.
func New(name, apiKey, apiBase, model string) (Provider, error) {
	switch name {
	case "openai":
		return NewOpenAIProvider("openai", apiKey, apiBase, model), nil
	case "anthropic":
		return NewAnthropicProvider(apiKey, apiBase, model), nil
	case "openrouter":
		return NewOpenRouterProvider(apiKey, apiBase, model), nil
	case "groq":
		return NewGroqProvider(apiKey, apiBase, model), nil
	case "deepseek":
		return NewDeepSeekProvider(apiKey, apiBase, model), nil
	case "custom":
		if apiBase == "" {
			return nil, fmt.Errorf("custom provider requires an API base URL")
		}
		return NewOpenAIProvider("custom", apiKey, apiBase, model), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}

// KnownNames lists the providers New can construct, for wizard menus.
func KnownNames() []string {
	return []string{"openai", "anthropic", "openrouter", "groq", "deepseek", "custom"}
}
