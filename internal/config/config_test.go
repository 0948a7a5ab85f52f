package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quill.yaml")

	cfg := Default()
	cfg.Provider = "anthropic"
	cfg.Model = "claude-test"
	cfg.ParallelTools = true
	cfg.Tools.RateLimitPerMinute = 30

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Provider != "anthropic" || loaded.Model != "claude-test" {
		t.Errorf("provider/model not round-tripped: %+v", loaded)
	}
	if !loaded.ParallelTools {
		t.Error("parallel_tools not round-tripped")
	}
	if loaded.Tools.RateLimitPerMinute != 30 {
		t.Errorf("rate limit not round-tripped: %d", loaded.Tools.RateLimitPerMinute)
	}
	// defaults applied on load
	if loaded.MaxToolIterations != DefaultMaxToolIterations {
		t.Errorf("expected default iterations, got %d", loaded.MaxToolIterations)
	}
}

func TestLoadJSON5(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quill.json5")
	content := `{
		// comments are fine in json5
		provider: "groq",
		model: "llama-3.3-70b-versatile",
		max_tool_iterations: 10,
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "groq" {
		t.Errorf("expected groq, got %s", cfg.Provider)
	}
	if cfg.MaxToolIterations != 10 {
		t.Errorf("expected 10 iterations, got %d", cfg.MaxToolIterations)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNormalizeSessionName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "default"},
		{"   ", "default"},
		{"work", "work"},
		{"My Project!", "my-project"},
		{"--weird--", "weird"},
		{"UPPER_case-123", "upper_case-123"},
		{"###", "default"},
	}
	for _, tc := range cases {
		if got := NormalizeSessionName(tc.in); got != tc.want {
			t.Errorf("NormalizeSessionName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
