package providers

// OpenAI-compatible providers that only differ in base URL and default model.
// Each gets its own constructor so provider-specific quirks have a place to
// live without touching the shared client.

const (
	openrouterDefaultBase  = "https://openrouter.ai/api/v1"
	openrouterDefaultModel = "anthropic/claude-sonnet-4-5-20250929"

	groqDefaultBase  = "https://api.groq.com/openai/v1"
	groqDefaultModel = "llama-3.3-70b-versatile"

	deepseekDefaultBase  = "https://api.deepseek.com/v1"
	deepseekDefaultModel = "deepseek-chat"
)

// OpenRouterProvider routes requests through OpenRouter's aggregation API.
type OpenRouterProvider struct {
	*OpenAIProvider
}

func NewOpenRouterProvider(apiKey, apiBase, defaultModel string) *OpenRouterProvider {
	if apiBase == "" {
		apiBase = openrouterDefaultBase
	}
	if defaultModel == "" {
		defaultModel = openrouterDefaultModel
	}
	return &OpenRouterProvider{
		OpenAIProvider: NewOpenAIProvider("openrouter", apiKey, apiBase, defaultModel),
	}
}

func (p *OpenRouterProvider) Name() string { return "openrouter" }

// GroqProvider targets Groq's OpenAI-compatible endpoint.
type GroqProvider struct {
	*OpenAIProvider
}

func NewGroqProvider(apiKey, apiBase, defaultModel string) *GroqProvider {
	if apiBase == "" {
		apiBase = groqDefaultBase
	}
	if defaultModel == "" {
		defaultModel = groqDefaultModel
	}
	return &GroqProvider{
		OpenAIProvider: NewOpenAIProvider("groq", apiKey, apiBase, defaultModel),
	}
}

func (p *GroqProvider) Name() string { return "groq" }

// DeepSeekProvider targets DeepSeek's OpenAI-compatible endpoint.
type DeepSeekProvider struct {
	*OpenAIProvider
}

func NewDeepSeekProvider(apiKey, apiBase, defaultModel string) *DeepSeekProvider {
	if apiBase == "" {
		apiBase = deepseekDefaultBase
	}
	if defaultModel == "" {
		defaultModel = deepseekDefaultModel
	}
	return &DeepSeekProvider{
		OpenAIProvider: NewOpenAIProvider("deepseek", apiKey, apiBase, defaultModel),
	}
}

func (p *DeepSeekProvider) Name() string { return "deepseek" }
