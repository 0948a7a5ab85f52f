package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/quillhq/quill/internal/agent"
	"github.com/quillhq/quill/internal/config"
	"github.com/quillhq/quill/internal/providers"
	"github.com/quillhq/quill/internal/secrets"
	"github.com/quillhq/quill/internal/session"
	"github.com/quillhq/quill/internal/tools"
	"github.com/quillhq/quill/internal/tracing"
	"github.com/quillhq/quill/internal/tracing/otelexport"
)

var (
	styleUser      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	styleAssistant = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleTool      = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	styleError     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleInfo      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func chatCmd() *cobra.Command {
	var (
		message     string
		sessionName string
		noSave      bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant interactively or send a one-shot message",
		Long: `Chat with the assistant. Without -m, starts an interactive REPL.

Examples:
  quill chat                         # Interactive REPL
  quill chat -m "What time is it?"   # One-shot message
  quill chat -s work                 # Continue the "work" session`,
		Run: func(cmd *cobra.Command, args []string) {
			runChat(message, sessionName, noSave)
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "one-shot message (omit for interactive mode)")
	cmd.Flags().StringVarP(&sessionName, "session", "s", "", "session name to resume (default: \"default\")")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "don't persist this conversation")

	return cmd
}

// chatRuntime bundles everything one chat run needs. The config watcher
// swaps the loop between turns when the file changes.
type chatRuntime struct {
	mu         sync.Mutex
	cfg        *config.Config
	loop       *agent.Loop
	conv       *agent.Conversation
	store      *session.Store // nil when persistence is off
	sessionKey string
	collector  *tracing.Collector
}

func runChat(message, sessionName string, noSave bool) {
	cfg := loadConfigOrExit()
	sessionKey := config.NormalizeSessionName(sessionName)

	rt := &chatRuntime{cfg: cfg, conv: agent.NewConversation(), sessionKey: sessionKey}

	rt.collector = buildCollector(cfg)
	rt.collector.Start()
	defer rt.collector.Stop()

	loop, err := buildLoop(cfg, sessionKey, rt.collector)
	if err != nil {
		fmt.Fprintln(os.Stderr, styleError.Render("Error: "+err.Error()))
		fmt.Fprintln(os.Stderr, "Run \"quill onboard\" to configure a provider.")
		os.Exit(1)
	}
	rt.loop = loop

	if !noSave && !cfg.Sessions.Disabled {
		store, err := session.NewStore(cfg.SessionDBPath())
		if err != nil {
			fmt.Fprintln(os.Stderr, styleError.Render("Warning: session persistence unavailable: "+err.Error()))
		} else {
			rt.store = store
			defer store.Close()
			if prior, err := store.Load(context.Background(), sessionKey); err == nil && len(prior) > 0 {
				rt.conv.Seed(prior)
				fmt.Println(styleInfo.Render(fmt.Sprintf("Resumed session %q (%d messages).", sessionKey, len(prior))))
			}
		}
	}

	if message != "" {
		if !runOneTurn(rt, message) {
			os.Exit(1)
		}
		return
	}

	runREPL(rt)
}

// buildCollector returns a started-able tracing collector, or nil when
// tracing is disabled (a nil collector is safe to use).
func buildCollector(cfg *config.Config) *tracing.Collector {
	if !cfg.Tracing.Enabled || cfg.Tracing.Endpoint == "" {
		return nil
	}
	exp, err := otelexport.New(context.Background(), otelexport.Config{
		Endpoint: cfg.Tracing.Endpoint,
		Protocol: cfg.Tracing.Protocol,
		Insecure: cfg.Tracing.Insecure,
		Headers:  cfg.Tracing.Headers,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, styleError.Render("Warning: tracing disabled: "+err.Error()))
		return nil
	}
	return tracing.NewCollector(exp)
}

// buildProviderRegistry constructs a provider for every known name a
// credential resolves for. The chat loop takes the active one out by name;
// doctor lists the rest.
func buildProviderRegistry(cfg *config.Config) *providers.Registry {
	resolver := &secrets.Resolver{ConfigKeys: cfg.APIKeys}
	registry := providers.NewRegistry()
	for _, name := range providers.KnownNames() {
		apiKey, _ := resolver.APIKey(name)
		apiBase, model := "", ""
		if name == cfg.Provider {
			apiBase, model = cfg.APIBase, cfg.Model
		}
		if name == "custom" {
			if apiBase == "" {
				continue
			}
		} else if apiKey == "" {
			continue
		}
		p, err := providers.New(name, apiKey, apiBase, model)
		if err != nil {
			continue
		}
		registry.Register(p)
	}
	return registry
}

// buildLoop wires the provider, tool registry, and loop settings from config.
func buildLoop(cfg *config.Config, sessionKey string, collector *tracing.Collector) (*agent.Loop, error) {
	prov, err := buildProviderRegistry(cfg).Get(cfg.Provider)
	if err != nil {
		if cfg.Provider == "custom" && cfg.APIBase == "" {
			return nil, fmt.Errorf("custom provider requires an API base URL")
		}
		return nil, err
	}

	reg := tools.NewRegistry()
	webSearch := cfg.Tools.WebSearchEnabled == nil || *cfg.Tools.WebSearchEnabled
	tools.RegisterBuiltins(reg, webSearch)
	if cfg.Tools.RateLimitPerMinute > 0 {
		reg.SetRateLimiter(tools.NewRateLimiter(cfg.Tools.RateLimitPerMinute, cfg.Tools.RateLimitPerMinute))
	}

	return &agent.Loop{
		Provider:      prov,
		Tools:         reg,
		Model:         cfg.Model,
		SystemPrompt:  cfg.SystemPrompt,
		Temperature:   cfg.Temperature,
		MaxIterations: cfg.MaxToolIterations,
		ParallelTools: cfg.ParallelTools,
		ContextWindow: cfg.ContextWindow,
		Pruning:       cfg.ContextPruning,
		SessionKey:    sessionKey,
		Tracer:        collector,
		OnEvent:       printEvent,
	}, nil
}

func printEvent(ev agent.Event) {
	switch ev.Kind {
	case agent.EventToolCall:
		fmt.Println(styleTool.Render("  ⚙ " + ev.ToolName + "..."))
	case agent.EventToolResult:
		if ev.IsError {
			fmt.Println(styleTool.Render("  ⚙ " + ev.ToolName + " failed"))
		} else if ev.Output != "" {
			fmt.Println(styleTool.Render("  ⚙ " + ev.ToolName + ": " + firstLine(ev.Output)))
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// runOneTurn executes a single turn with interrupt handling. Returns false
// when the turn failed.
func runOneTurn(rt *chatRuntime, input string) bool {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt.mu.Lock()
	loop, conv := rt.loop, rt.conv
	rt.mu.Unlock()

	res, err := loop.RunTurn(ctx, conv, input)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			fmt.Println(styleInfo.Render("\nTurn cancelled. History unchanged — ask again."))
		case errors.Is(err, agent.ErrLoopBound):
			fmt.Fprintln(os.Stderr, styleError.Render("Turn aborted: "+err.Error()))
		default:
			fmt.Fprintln(os.Stderr, styleError.Render("Turn failed: "+err.Error()))
			fmt.Fprintln(os.Stderr, styleInfo.Render("Your message was not recorded; retry the same input."))
		}
		return false
	}

	fmt.Println(styleAssistant.Render(res.Reply))

	if rt.store != nil {
		if err := rt.store.Append(context.Background(), rt.sessionKey, res.NewMessages); err != nil {
			fmt.Fprintln(os.Stderr, styleError.Render("Warning: could not save transcript: "+err.Error()))
		}
	}
	return true
}

func runREPL(rt *chatRuntime) {
	fmt.Printf("quill %s — provider %s", version, rt.cfg.Provider)
	if rt.cfg.Model != "" {
		fmt.Printf(", model %s", rt.cfg.Model)
	}
	fmt.Println()
	fmt.Println(styleInfo.Render(`Type a message, or: /new  /tokens  /help  exit`))

	// Pick up provider/model edits between turns.
	watcher, err := config.NewWatcher(resolveConfigPath())
	if err == nil {
		watcher.OnChange(func(newCfg *config.Config) {
			rt.mu.Lock()
			defer rt.mu.Unlock()
			loop, err := buildLoop(newCfg, rt.sessionKey, rt.collector)
			if err != nil {
				fmt.Fprintln(os.Stderr, styleError.Render("Config reload skipped: "+err.Error()))
				return
			}
			rt.cfg = newCfg
			rt.loop = loop
			fmt.Println(styleInfo.Render("Config reloaded."))
		})
		if err := watcher.Start(); err == nil {
			defer watcher.Stop()
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print(styleUser.Render("you › "))
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch input {
		case "exit", "quit", "/exit", "/quit":
			return
		case "/help":
			fmt.Println(styleInfo.Render(`  /new      start a fresh conversation
  /tokens   estimate context size
  /help     this help
  exit      leave quill`))
			continue
		case "/new":
			rt.mu.Lock()
			rt.conv.Clear()
			rt.mu.Unlock()
			if rt.store != nil {
				if err := rt.store.Clear(context.Background(), rt.sessionKey); err != nil {
					fmt.Fprintln(os.Stderr, styleError.Render("Warning: "+err.Error()))
				}
			}
			fmt.Println(styleInfo.Render("Started a new conversation."))
			continue
		case "/tokens":
			rt.mu.Lock()
			n := agent.EstimateHistoryTokens(rt.conv.Messages())
			window := rt.cfg.ContextWindow
			rt.mu.Unlock()
			fmt.Println(styleInfo.Render(fmt.Sprintf("~%d tokens of %d context window", n, window)))
			continue
		}

		runOneTurn(rt, input)
	}
}
