package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	defaultSearchCount = 5
	maxSearchCount     = 10
	searchTimeout      = 30 * time.Second
	searchCacheTTL     = 15 * time.Minute
	searchCacheMax     = 100
	searchUserAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_2) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// WebSearchTool queries DuckDuckGo's HTML endpoint — keyless, so it works out
// of the box. Results are cached per query for a few minutes.
type WebSearchTool struct {
	client *http.Client
	cache  *searchCache
}

func NewWebSearchTool() *WebSearchTool {
	return &WebSearchTool{
		client: &http.Client{Timeout: searchTimeout},
		cache:  newSearchCache(searchCacheMax, searchCacheTTL),
	}
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Search the web and return titles, URLs and snippets for the top results."
}

func (t *WebSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "The search query",
			},
			"count": map[string]interface{}{
				"type":        "integer",
				"description": fmt.Sprintf("Number of results (1-%d, default %d)", maxSearchCount, defaultSearchCount),
			},
		},
		"required": []string{"query"},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	query, _ := args["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return ErrorResult("web_search: missing required argument: query")
	}

	count := defaultSearchCount
	if c, ok := args["count"].(float64); ok && int(c) > 0 {
		count = int(c)
	}
	if count > maxSearchCount {
		count = maxSearchCount
	}

	cacheKey := fmt.Sprintf("%s|%d", strings.ToLower(query), count)
	if cached, ok := t.cache.get(cacheKey); ok {
		return NewResult(cached)
	}

	results, err := t.search(ctx, query, count)
	if err != nil {
		return ErrorResult(fmt.Sprintf("web_search: %v", err)).WithError(err)
	}
	if len(results) == 0 {
		return NewResult(fmt.Sprintf("No results found for %q.", query))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "\n%d. %s\n   %s\n", i+1, r.title, r.url)
		if r.snippet != "" {
			fmt.Fprintf(&b, "   %s\n", r.snippet)
		}
	}
	out := b.String()
	t.cache.put(cacheKey, out)
	return NewResult(out)
}

type searchHit struct {
	title   string
	url     string
	snippet string
}

var (
	ddgLinkRe    = regexp.MustCompile(`<a[^>]*class="[^"]*result__a[^"]*"[^>]*href="([^"]+)"[^>]*>([\s\S]*?)</a>`)
	ddgSnippetRe = regexp.MustCompile(`<a class="result__snippet[^"]*".*?>([\s\S]*?)</a>`)
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
)

func (t *WebSearchTool) search(ctx context.Context, query string, count int) ([]searchHit, error) {
	searchURL := "https://html.duckduckgo.com/html/?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", searchUserAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return parseSearchResults(string(body), count), nil
}

func parseSearchResults(html string, count int) []searchHit {
	linkMatches := ddgLinkRe.FindAllStringSubmatch(html, count+5)
	snippetMatches := ddgSnippetRe.FindAllStringSubmatch(html, count+5)

	var hits []searchHit
	for i := 0; i < len(linkMatches) && i < count; i++ {
		hit := searchHit{
			url:   unwrapRedirect(linkMatches[i][1]),
			title: strings.TrimSpace(htmlTagRe.ReplaceAllString(linkMatches[i][2], "")),
		}
		if i < len(snippetMatches) {
			hit.snippet = strings.TrimSpace(htmlTagRe.ReplaceAllString(snippetMatches[i][1], ""))
		}
		hits = append(hits, hit)
	}
	return hits
}

// unwrapRedirect extracts the real URL from DuckDuckGo's uddg= redirect param.
func unwrapRedirect(rawURL string) string {
	if !strings.Contains(rawURL, "uddg=") {
		return rawURL
	}
	u, err := url.QueryUnescape(rawURL)
	if err != nil {
		return rawURL
	}
	idx := strings.Index(u, "uddg=")
	if idx == -1 {
		return rawURL
	}
	extracted := u[idx+5:]
	if ampIdx := strings.Index(extracted, "&"); ampIdx != -1 {
		extracted = extracted[:ampIdx]
	}
	return extracted
}

// searchCache is a small TTL cache with lazy eviction.
type searchCache struct {
	mu      sync.Mutex
	entries map[string]searchCacheEntry
	maxSize int
	ttl     time.Duration
}

type searchCacheEntry struct {
	value     string
	expiresAt time.Time
}

func newSearchCache(maxSize int, ttl time.Duration) *searchCache {
	return &searchCache{
		entries: make(map[string]searchCacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func (c *searchCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return "", false
	}
	return e.value, true
}

func (c *searchCache) put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.maxSize {
		// evict expired entries first; if still full, drop an arbitrary one
		now := time.Now()
		for k, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, k)
			}
		}
		for k := range c.entries {
			if len(c.entries) < c.maxSize {
				break
			}
			delete(c.entries, k)
		}
	}
	c.entries[key] = searchCacheEntry{value: value, expiresAt: time.Now().Add(c.ttl)}
}
