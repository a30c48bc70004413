package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/tablescout/tablescout/internal/cli/config"
	"github.com/tablescout/tablescout/internal/state"
)

// NewHistoryCommand creates the history command and its subcommands.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent searches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openHistoryFromConfig()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			recent, err := store.ListRecent(limit)
			if err != nil {
				return err
			}

			cfg := config.GetCurrentConfig()
			if cfg != nil && cfg.Output == "json" {
				return renderJSON(cmd.OutOrStdout(), recent)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"ID", "When", "Query", "Backend", "Tables"})
			for _, s := range recent {
				t.AppendRow(table.Row{
					s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04"), s.Text, s.Backend, s.Tables,
				})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of searches to show")

	cmd.AddCommand(newHistoryDeleteCommand())
	cmd.AddCommand(newHistoryPruneCommand())
	return cmd
}

func newHistoryDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistoryFromConfig()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			return store.DeleteSearch(args[0])
		},
	}
}

func newHistoryPruneCommand() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove searches older than a cutoff",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openHistoryFromConfig()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			cutoff := time.Now().AddDate(0, 0, -days)
			n, err := store.PruneOlderThan(cutoff)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d searches\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "Remove searches older than this many days")
	return cmd
}

func openHistoryFromConfig() (*state.SQLiteStore, error) {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	if cfg.HistoryPath == "" {
		return nil, fmt.Errorf("history is disabled (empty history_path)")
	}
	return openHistory(cfg.HistoryPath)
}
