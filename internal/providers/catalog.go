package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	catalogCacheSize = 16
	catalogCacheTTL  = 10 * time.Minute
	catalogTimeout   = 10 * time.Second
)

// ModelInfo is one entry from a provider's model listing.
type ModelInfo struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	ContextLength int    `json:"context_length,omitempty"`
}

// Catalog fetches provider model listings with a short-lived cache, so the
// onboarding wizard and `quill models` don't hammer the endpoint.
type Catalog struct {
	cache  *expirable.LRU[string, []ModelInfo]
	client *http.Client
}

func NewCatalog() *Catalog {
	return &Catalog{
		cache:  expirable.NewLRU[string, []ModelInfo](catalogCacheSize, nil, catalogCacheTTL),
		client: &http.Client{Timeout: catalogTimeout},
	}
}

// Models returns the model listing for a provider, sorted by ID.
// Results are cached per provider name for a few minutes.
func (c *Catalog) Models(ctx context.Context, providerName, apiBase, apiKey string) ([]ModelInfo, error) {
	if cached, ok := c.cache.Get(providerName); ok {
		return cached, nil
	}

	if apiBase == "" {
		apiBase = defaultAPIBase(providerName)
	}
	if apiBase == "" {
		return nil, fmt.Errorf("no model listing endpoint for provider %s", providerName)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if apiKey != "" {
		if providerName == "anthropic" {
			req.Header.Set("x-api-key", apiKey)
			req.Header.Set("anthropic-version", anthropicAPIVersion)
		} else {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch models: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read models response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Provider: providerName, StatusCode: resp.StatusCode, Body: truncateBody(body)}
	}

	var result struct {
		Data []ModelInfo `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode models response: %w", err)
	}

	sort.Slice(result.Data, func(i, j int) bool {
		return result.Data[i].ID < result.Data[j].ID
	})

	c.cache.Add(providerName, result.Data)
	return result.Data, nil
}

// defaultAPIBase returns the API base for well-known providers.
func defaultAPIBase(name string) string {
	switch name {
	case "openai":
		return openaiDefaultBase
	case "anthropic":
		return anthropicDefaultBase
	case "openrouter":
		return openrouterDefaultBase
	case "groq":
		return groqDefaultBase
	case "deepseek":
		return deepseekDefaultBase
	default:
		return ""
	}
}
