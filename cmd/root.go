// Package cmd implements the quill command-line interface.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/quillhq/quill/internal/config"
)

const version = "0.3.0"

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "quill — a tool-augmented AI assistant for your terminal",
	Long: `quill is an interactive command-line assistant. Pick an LLM provider,
store a credential, and chat with an agent that can call tools (calculator,
clock, weather, web search) on your behalf.

Run "quill onboard" first to set up a provider, then "quill chat".`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.Run = func(cmd *cobra.Command, args []string) {
		// Bare "quill" drops straight into the chat REPL.
		runChat("", "", false)
	}

	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file path (default ~/.quill/quill.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(onboardCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(doctorCmd())
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath picks the config file: --config flag, QUILL_CONFIG env,
// then the first existing file among quill.yaml, quill.json5, quill.json in
// the config dir, defaulting to quill.yaml.
func resolveConfigPath() string {
	if configFlag != "" {
		return config.ExpandHome(configFlag)
	}
	if env := os.Getenv("QUILL_CONFIG"); env != "" {
		return config.ExpandHome(env)
	}
	for _, name := range []string{config.DefaultFileName, "quill.json5", "quill.json"} {
		p := filepath.Join(config.Dir(), name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return config.DefaultPath()
}

// loadConfigOrExit loads the resolved config file, or a default config if
// none exists yet, and applies the log level.
func loadConfigOrExit() *config.Config {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg = config.Default()
		} else {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	setupLogging(cfg.LogLevel)
	return cfg
}

func setupLogging(level string) {
	if flagLevel, _ := rootCmd.PersistentFlags().GetString("log-level"); flagLevel != "" {
		level = flagLevel
	}

	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}
