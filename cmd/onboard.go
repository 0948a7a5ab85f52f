package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quillhq/quill/internal/config"
	"github.com/quillhq/quill/internal/providers"
	"github.com/quillhq/quill/internal/secrets"
)

func onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Interactive setup wizard — configure provider, credential, model",
		Run: func(cmd *cobra.Command, args []string) {
			runOnboard()
		},
	}
}

type providerInfo struct {
	label     string
	modelHint string
}

var providerMap = map[string]providerInfo{
	"openrouter": {"OpenRouter (many models, one key)", "anthropic/claude-sonnet-4-5-20250929"},
	"anthropic":  {"Anthropic", "claude-sonnet-4-5-20250929"},
	"openai":     {"OpenAI", "gpt-4o"},
	"groq":       {"Groq", "llama-3.3-70b-versatile"},
	"deepseek":   {"DeepSeek", "deepseek-chat"},
	"custom":     {"Custom (OpenAI-compatible endpoint)", ""},
}

func runOnboard() {
	fmt.Println("quill — setup wizard")
	fmt.Println()

	cfgPath := resolveConfigPath()

	cfg := config.Default()
	if _, err := os.Stat(cfgPath); err == nil {
		if loaded, err := config.Load(cfgPath); err == nil {
			cfg = loaded
			fmt.Printf("Using existing config at %s as base.\n", cfgPath)
		}
	}

	// 1. Provider
	names := providers.KnownNames()
	options := make([]SelectOption[string], len(names))
	defaultIdx := 0
	for i, name := range names {
		label := name
		if info, ok := providerMap[name]; ok {
			label = info.label
		}
		options[i] = SelectOption[string]{Label: label, Value: name}
		if name == cfg.Provider {
			defaultIdx = i
		}
	}
	providerChoice, err := promptSelect("Which provider?", options, defaultIdx)
	if err != nil {
		fmt.Println("Cancelled.")
		return
	}
	cfg.Provider = providerChoice

	// 2. Endpoint for custom providers
	if providerChoice == "custom" {
		base, err := promptString("API base URL", "An OpenAI-compatible /v1 endpoint", cfg.APIBase)
		if err != nil || base == "" {
			fmt.Println("Cancelled.")
			return
		}
		cfg.APIBase = base
	}

	// 3. Credential
	envVar := secrets.EnvVar(providerChoice)
	if v := os.Getenv(envVar); v != "" {
		fmt.Printf("Found %s in the environment; quill will use it.\n", envVar)
	} else {
		apiKey, err := promptPassword("API key for "+providerChoice,
			"Stored in your OS keyring. Alternatively set "+envVar+".")
		if err != nil {
			fmt.Println("Cancelled.")
			return
		}
		if apiKey != "" {
			if err := secrets.Store(providerChoice, apiKey); err != nil {
				fmt.Printf("Keyring unavailable (%v); storing in the config file instead.\n", err)
				stored, encErr := secrets.EncryptValue(apiKey)
				if encErr != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", encErr)
					return
				}
				if cfg.APIKeys == nil {
					cfg.APIKeys = map[string]string{}
				}
				cfg.APIKeys[providerChoice] = stored
			} else {
				fmt.Println("API key saved to the OS keyring.")
			}
		}
	}

	// 4. Model
	hint := providerMap[providerChoice].modelHint
	model := pickModel(cfg, providerChoice, hint)
	if model != "" {
		cfg.Model = model
	}

	// 5. Web search opt-in
	webSearch, err := promptConfirm("Enable the web_search tool?", true)
	if err == nil {
		cfg.Tools.WebSearchEnabled = &webSearch
	}

	if err := cfg.Save(cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Printf("Config written to %s\n", cfgPath)
	fmt.Println(`All set. Try:  quill chat -m "What is 15 * 3 + 7?"`)
}

// pickModel offers the provider's live model list when reachable, falling
// back to manual entry.
func pickModel(cfg *config.Config, provider, hint string) string {
	resolver := &secrets.Resolver{ConfigKeys: cfg.APIKeys}
	apiKey, _ := resolver.APIKey(provider)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	catalog := providers.NewCatalog()
	models, err := catalog.Models(ctx, provider, cfg.APIBase, apiKey)
	if err != nil || len(models) == 0 {
		model, err := promptString("Model", "Model identifier to use", hint)
		if err != nil {
			return ""
		}
		return model
	}

	options := make([]SelectOption[string], 0, len(models)+1)
	defaultIdx := 0
	for i, m := range models {
		label := m.ID
		if m.Name != "" && m.Name != m.ID {
			label = fmt.Sprintf("%s — %s", m.ID, m.Name)
		}
		options = append(options, SelectOption[string]{Label: label, Value: m.ID})
		if m.ID == cfg.Model || (cfg.Model == "" && m.ID == hint) {
			defaultIdx = i
		}
	}
	options = append(options, SelectOption[string]{Label: "(enter manually)", Value: ""})

	choice, err := promptSelect("Which model?", options, defaultIdx)
	if err != nil {
		return ""
	}
	if choice == "" {
		manual, err := promptString("Model", "Model identifier to use", hint)
		if err != nil {
			return ""
		}
		return manual
	}
	return choice
}
