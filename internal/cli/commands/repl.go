package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/tablescout/tablescout/internal/backend"
)

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive search prompt",
		Long: `Repl opens an interactive prompt. Plain input runs a search; editing the
query keeps the term annotations from the previous search. Dot-commands page
through the results of the last search.`,
		RunE: runREPL,
	}
}

func runREPL(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	sess, err := newSession(ctx, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	// Readline history sits next to the search history database.
	historyFile := filepath.Join(filepath.Dir(sess.cfg.HistoryPath), "repl_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "tablescout> ",
		HistoryFile:     historyFile,
		AutoComplete:    replCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(out, "tablescout REPL (%s backend)\n", sess.backend.Name())
	_, _ = fmt.Fprintln(out, "Type a query to search, .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(out)

	var lastMatches []backend.TableMatch
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ".") {
			if quit := handleDotCommand(ctx, cmd, sess, lastMatches, line); quit {
				break
			}
			continue
		}

		res, err := sess.searcher.Search(ctx, line)
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			continue
		}
		sess.record(line, res)
		lastMatches = res.Tables

		if err := renderTableMatches(out, res.Tables, sess.cfg.Output); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		_, _ = fmt.Fprintln(out)
	}

	return nil
}

func handleDotCommand(ctx context.Context, cmd *cobra.Command, sess *session, matches []backend.TableMatch, line string) (quit bool) {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(out)

	case ".tables":
		if err := renderTableMatches(out, matches, sess.cfg.Output); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		}

	case ".rows":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .rows <table>")
			return false
		}
		showRows(ctx, cmd, sess, parts[1], false)

	case ".more":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .more <table>")
			return false
		}
		showRows(ctx, cmd, sess, parts[1], true)

	case ".columns":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .columns <table>")
			return false
		}
		showColumns(ctx, cmd, sess, parts[1])

	case ".history":
		showHistory(cmd, sess, 10)

	case ".clear":
		fmt.Print("\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

// showRows prints the loaded rows of a table, fetching the first or next
// page as needed.
func showRows(ctx context.Context, cmd *cobra.Command, sess *session, tableID string, more bool) {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	if _, tracked := sess.cache.PaginationState(tableID); !tracked {
		if err := sess.searcher.FetchVisible(ctx, []string{tableID}); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return
		}
	} else if more {
		if _, err := sess.searcher.LoadMore(ctx, tableID); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return
		}
	}

	rows := sess.cache.LoadedRecords(tableID)
	if rows == nil {
		_, _ = fmt.Fprintf(errOut, "No rows loaded for %s\n", tableID)
		return
	}
	if err := renderRows(out, rows, sess.cfg.Output); err != nil {
		_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		return
	}
	if sess.cache.HasMoreRecords(tableID) {
		_, _ = fmt.Fprintf(out, "... more rows available (.more %s)\n", tableID)
	}
}

func showColumns(ctx context.Context, cmd *cobra.Command, sess *session, tableID string) {
	cols, err := sess.backend.TableColumns(ctx, tableID)
	if err != nil {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}
	results := make([]map[string]any, len(cols))
	for i, c := range cols {
		results[i] = map[string]any{"name": c.Name, "type": c.Type, "nullable": c.Nullable}
	}
	if err := renderTable(cmd.OutOrStdout(), []string{"name", "type", "nullable"}, results); err != nil {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}
}

func showHistory(cmd *cobra.Command, sess *session, limit int) {
	if sess.history == nil {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "History is disabled")
		return
	}
	recent, err := sess.history.ListRecent(limit)
	if err != nil {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return
	}
	for _, s := range recent {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %-30q  %d tables\n",
			s.CreatedAt.Local().Format("2006-01-02 15:04"), s.Text, s.Tables)
	}
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help            Show this help message
  .tables          Show the tables matched by the last search
  .rows <table>    Show the loaded rows for a table (fetches the first page)
  .more <table>    Fetch and show the next page for a table
  .columns <table> Show the columns of a table
  .history         Show recent searches
  .clear           Clear the screen
  .quit / .exit    Exit the REPL

Tips:
  - Quote phrases: alpha "beta gamma"
  - Group terms: (alpha beta) gamma
  - Editing a query keeps the annotations of unchanged terms
`
	_, _ = fmt.Fprintln(w, help)
}

// replCompleter completes the dot-commands.
func replCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(".help"),
		readline.PcItem(".tables"),
		readline.PcItem(".rows"),
		readline.PcItem(".more"),
		readline.PcItem(".columns"),
		readline.PcItem(".history"),
		readline.PcItem(".clear"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
