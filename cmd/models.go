package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/quillhq/quill/internal/providers"
	"github.com/quillhq/quill/internal/secrets"
)

func modelsCmd() *cobra.Command {
	var jsonOutput bool
	var providerFlag string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models available from the configured provider",
		Run: func(cmd *cobra.Command, args []string) {
			runModels(providerFlag, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().StringVarP(&providerFlag, "provider", "p", "", "provider to query (default: configured provider)")
	return cmd
}

func runModels(providerName string, jsonOutput bool) {
	cfg := loadConfigOrExit()
	if providerName == "" {
		providerName = cfg.Provider
	}

	resolver := &secrets.Resolver{ConfigKeys: cfg.APIKeys}
	apiKey, _ := resolver.APIKey(providerName)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	models, err := providers.NewCatalog().Models(ctx, providerName, cfg.APIBase, apiKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing models for %s: %v\n", providerName, err)
		os.Exit(1)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(models, "", "  ")
		fmt.Println(string(data))
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "MODEL\tNAME\tCONTEXT\n")
	for _, m := range models {
		ctxLen := ""
		if m.ContextLength > 0 {
			ctxLen = fmt.Sprintf("%d", m.ContextLength)
		}
		name := m.Name
		if name == m.ID {
			name = ""
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.ID, name, ctxLen)
	}
	tw.Flush()
}
