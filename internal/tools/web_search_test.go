package tools

import (
	"strings"
	"testing"
	"time"
)

const sampleDDGHTML = `
<div class="result">
  <a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F&amp;rut=abc">The <b>Go</b> Programming Language</a>
  <a class="result__snippet" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2F">Build simple, secure, scalable systems.</a>
</div>
<div class="result">
  <a rel="nofollow" class="result__a" href="https://en.wikipedia.org/wiki/Go">Go - Wikipedia</a>
  <a class="result__snippet" href="https://en.wikipedia.org/wiki/Go">Go is a statically typed language.</a>
</div>
`

func TestParseSearchResults(t *testing.T) {
	hits := parseSearchResults(sampleDDGHTML, 5)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].title != "The Go Programming Language" {
		t.Errorf("title with tags not cleaned: %q", hits[0].title)
	}
	if hits[0].url != "https://go.dev/" {
		t.Errorf("redirect not unwrapped: %q", hits[0].url)
	}
	if hits[0].snippet != "Build simple, secure, scalable systems." {
		t.Errorf("snippet: %q", hits[0].snippet)
	}
	if hits[1].url != "https://en.wikipedia.org/wiki/Go" {
		t.Errorf("plain URL should pass through: %q", hits[1].url)
	}
}

func TestParseSearchResults_CountCap(t *testing.T) {
	hits := parseSearchResults(sampleDDGHTML, 1)
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
}

func TestSearchCache_Expiry(t *testing.T) {
	c := newSearchCache(10, 20*time.Millisecond)
	c.put("k", "v")

	if v, ok := c.get("k"); !ok || v != "v" {
		t.Fatal("fresh entry should be returned")
	}
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.get("k"); ok {
		t.Error("expired entry should be evicted")
	}
}

func TestScrubCredentials(t *testing.T) {
	in := "openai key sk-abcdefghijklmnopqrstuvwxyz123456 and password=supersecret99"
	out := ScrubCredentials(in)
	if out == in {
		t.Fatal("credentials should be redacted")
	}
	if !strings.Contains(out, redactedPlaceholder) {
		t.Errorf("expected placeholder in %q", out)
	}
}
