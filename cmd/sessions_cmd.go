package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/quillhq/quill/internal/config"
	"github.com/quillhq/quill/internal/session"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "View and manage saved chat sessions",
	}
	cmd.AddCommand(sessionsListCmd())
	cmd.AddCommand(sessionsDeleteCmd())
	return cmd
}

func openSessionStore() *session.Store {
	cfg := loadConfigOrExit()
	store, err := session.NewStore(cfg.SessionDBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening session store: %s\n", err)
		os.Exit(1)
	}
	return store
}

func sessionsListCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved sessions",
		Run: func(cmd *cobra.Command, args []string) {
			store := openSessionStore()
			defer store.Close()

			infos, err := store.List(context.Background())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}

			if jsonOutput {
				data, _ := json.MarshalIndent(infos, "", "  ")
				fmt.Println(string(data))
				return
			}

			if len(infos) == 0 {
				fmt.Println("No saved sessions.")
				return
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "SESSION\tMESSAGES\tUPDATED\n")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Key, info.MessageCount, info.UpdatedAt.Format(time.RFC3339))
			}
			tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func sessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved session",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store := openSessionStore()
			defer store.Close()

			key := config.NormalizeSessionName(args[0])
			if err := store.Clear(context.Background(), key); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %s\n", err)
				os.Exit(1)
			}
			fmt.Printf("Deleted session: %s\n", key)
		},
	}
}
