package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultDirName is the dot-directory under the user's home.
	DefaultDirName  = ".quill"
	DefaultFileName = "quill.yaml"

	DefaultMaxToolIterations = 25
	DefaultContextWindow     = 128000
)

// Config is the root configuration for quill.
type Config struct {
	// Provider is the active LLM provider name (openai, anthropic, openrouter,
	// groq, deepseek, custom).
	Provider string `yaml:"provider" json:"provider"`
	// Model overrides the provider's default model when set.
	Model string `yaml:"model,omitempty" json:"model,omitempty"`
	// APIBase overrides the provider's endpoint (required for "custom").
	APIBase string `yaml:"api_base,omitempty" json:"api_base,omitempty"`

	// APIKeys holds per-provider keys as a plain-file fallback. Environment
	// variables and the OS keyring take precedence (see internal/secrets).
	APIKeys map[string]string `yaml:"api_keys,omitempty" json:"api_keys,omitempty"`

	SystemPrompt      string   `yaml:"system_prompt,omitempty" json:"system_prompt,omitempty"`
	MaxToolIterations int      `yaml:"max_tool_iterations,omitempty" json:"max_tool_iterations,omitempty"`
	ParallelTools     bool     `yaml:"parallel_tools,omitempty" json:"parallel_tools,omitempty"`
	ContextWindow     int      `yaml:"context_window,omitempty" json:"context_window,omitempty"`
	Temperature       *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`

	ContextPruning *ContextPruningConfig `yaml:"context_pruning,omitempty" json:"context_pruning,omitempty"`
	Tools          ToolsConfig           `yaml:"tools,omitempty" json:"tools,omitempty"`
	Sessions       SessionsConfig        `yaml:"sessions,omitempty" json:"sessions,omitempty"`
	Tracing        TracingConfig         `yaml:"tracing,omitempty" json:"tracing,omitempty"`

	LogLevel string `yaml:"log_level,omitempty" json:"log_level,omitempty"`
}

// ContextPruningConfig tunes trimming of old tool results before each model call.
type ContextPruningConfig struct {
	// Mode: "off" (default) or "trim".
	Mode                 string           `yaml:"mode,omitempty" json:"mode,omitempty"`
	KeepLastAssistants   int              `yaml:"keep_last_assistants,omitempty" json:"keep_last_assistants,omitempty"`
	SoftTrimRatio        float64          `yaml:"soft_trim_ratio,omitempty" json:"soft_trim_ratio,omitempty"`
	HardClearRatio       float64          `yaml:"hard_clear_ratio,omitempty" json:"hard_clear_ratio,omitempty"`
	MinPrunableToolChars int              `yaml:"min_prunable_tool_chars,omitempty" json:"min_prunable_tool_chars,omitempty"`
	SoftTrim             *SoftTrimConfig  `yaml:"soft_trim,omitempty" json:"soft_trim,omitempty"`
	HardClear            *HardClearConfig `yaml:"hard_clear,omitempty" json:"hard_clear,omitempty"`
}

type SoftTrimConfig struct {
	MaxChars  int `yaml:"max_chars,omitempty" json:"max_chars,omitempty"`
	HeadChars int `yaml:"head_chars,omitempty" json:"head_chars,omitempty"`
	TailChars int `yaml:"tail_chars,omitempty" json:"tail_chars,omitempty"`
}

type HardClearConfig struct {
	Enabled     *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Placeholder string `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
}

// ToolsConfig controls the built-in tool set.
type ToolsConfig struct {
	// RateLimitPerMinute caps tool executions per session (0 = unlimited).
	RateLimitPerMinute int   `yaml:"rate_limit_per_minute,omitempty" json:"rate_limit_per_minute,omitempty"`
	WebSearchEnabled   *bool `yaml:"web_search_enabled,omitempty" json:"web_search_enabled,omitempty"`
}

// SessionsConfig controls transcript persistence.
type SessionsConfig struct {
	// Storage is the SQLite database path ("" = <config dir>/sessions.db).
	Storage string `yaml:"storage,omitempty" json:"storage,omitempty"`
	// Disabled turns off transcript persistence entirely.
	Disabled bool `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// TracingConfig controls OTLP span export.
type TracingConfig struct {
	Enabled  bool              `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Endpoint string            `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Protocol string            `yaml:"protocol,omitempty" json:"protocol,omitempty"` // "http" or "grpc"
	Insecure bool              `yaml:"insecure,omitempty" json:"insecure,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// Default returns a config with sensible defaults and no provider selected.
func Default() *Config {
	return &Config{
		Provider:          "openrouter",
		MaxToolIterations: DefaultMaxToolIterations,
		ContextWindow:     DefaultContextWindow,
		APIKeys:           map[string]string{},
		LogLevel:          "info",
	}
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), DefaultFileName)
}

// Dir returns the quill dot-directory, creating nothing.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDirName
	}
	return filepath.Join(home, DefaultDirName)
}

// Load reads a config file. YAML is the primary format; files ending in
// .json or .json5 are parsed as JSON5 (comments and trailing commas allowed).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".json5":
		if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the config as YAML, creating the parent directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.MaxToolIterations <= 0 {
		c.MaxToolIterations = DefaultMaxToolIterations
	}
	if c.ContextWindow <= 0 {
		c.ContextWindow = DefaultContextWindow
	}
	if c.APIKeys == nil {
		c.APIKeys = map[string]string{}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// SessionDBPath resolves the SQLite path for transcript storage.
func (c *Config) SessionDBPath() string {
	if c.Sessions.Storage != "" {
		return ExpandHome(c.Sessions.Storage)
	}
	return filepath.Join(Dir(), "sessions.db")
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/"))
		}
	}
	return path
}
