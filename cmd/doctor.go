package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quillhq/quill/internal/config"
	"github.com/quillhq/quill/internal/providers"
	"github.com/quillhq/quill/internal/secrets"
	"github.com/quillhq/quill/internal/session"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("quill doctor")
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND — run \"quill onboard\")")
		return
	}
	fmt.Println(" (OK)")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Credentials:")
	resolver := &secrets.Resolver{ConfigKeys: cfg.APIKeys}
	for _, name := range providers.KnownNames() {
		if name == "custom" {
			continue
		}
		checkCredential(resolver, name, name == cfg.Provider)
	}
	fmt.Printf("    %-12s %v\n", "keyring:", keyringStatus())

	configured := buildProviderRegistry(cfg).List()
	if len(configured) == 0 {
		fmt.Printf("    %-12s (none)\n", "usable:")
	} else {
		fmt.Printf("    %-12s %s\n", "usable:", strings.Join(configured, ", "))
	}

	fmt.Println()
	fmt.Printf("  Sessions: %s", cfg.SessionDBPath())
	if cfg.Sessions.Disabled {
		fmt.Println(" (disabled)")
	} else if store, err := session.NewStore(cfg.SessionDBPath()); err != nil {
		fmt.Printf(" (ERROR: %s)\n", err)
	} else {
		store.Close()
		fmt.Println(" (OK)")
	}

	fmt.Println()
	fmt.Printf("  Connectivity (%s): ", cfg.Provider)
	fmt.Println(probeProvider(cfg, resolver))

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkCredential(resolver *secrets.Resolver, provider string, active bool) {
	marker := ""
	if active {
		marker = " (active)"
	}
	key, source := resolver.APIKey(provider)
	if key == "" {
		fmt.Printf("    %-12s (not configured)%s\n", provider+":", marker)
		return
	}
	fmt.Printf("    %-12s %s via %s%s\n", provider+":", maskSecret(key), source, marker)
}

func keyringStatus() string {
	if secrets.KeyringAvailable() {
		return "available"
	}
	return "unavailable (config-file fallback in use)"
}

// probeProvider checks whether the active provider accepts our credential by
// fetching its model list.
func probeProvider(cfg *config.Config, resolver *secrets.Resolver) string {
	apiKey, _ := resolver.APIKey(cfg.Provider)
	if apiKey == "" && cfg.Provider != "custom" {
		return "SKIPPED (no API key)"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	models, err := providers.NewCatalog().Models(ctx, cfg.Provider, cfg.APIBase, apiKey)
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "401") || strings.Contains(msg, "403") {
			return "AUTH FAILED — check your API key"
		}
		return "UNREACHABLE (" + msg + ")"
	}
	return fmt.Sprintf("OK (%d models visible)", len(models))
}
