package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// SearchOptions holds options for the search command.
type SearchOptions struct {
	Pages      int
	TablesOnly bool
	NoHistory  bool
}

// NewSearchCommand creates the search command.
func NewSearchCommand() *cobra.Command {
	opts := &SearchOptions{}

	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Search the database for matching tables",
		Long: `Search finds the tables whose name, columns, or contents match every
term of the query, then prints the first page of rows for each match.

Examples:
  tablescout search users
  tablescout search 'alpha "beta gamma"' --pages 2
  tablescout search orders --tables-only -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVar(&opts.Pages, "pages", 1, "Pages of rows to fetch per table")
	cmd.Flags().BoolVar(&opts.TablesOnly, "tables-only", false, "Only list matching tables, no rows")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "Do not record this search in history")

	return cmd
}

func runSearch(cmd *cobra.Command, text string, opts *SearchOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	sess, err := newSession(ctx, !opts.NoHistory)
	if err != nil {
		return err
	}
	defer sess.Close()

	res, err := sess.searcher.Search(ctx, text)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	sess.record(text, res)

	format := sess.cfg.Output
	if err := renderTableMatches(out, res.Tables, format); err != nil {
		return err
	}
	if opts.TablesOnly || len(res.Tables) == 0 {
		return nil
	}

	ids := make([]string, len(res.Tables))
	for i, m := range res.Tables {
		ids[i] = m.TableID
	}
	if err := sess.searcher.FetchVisible(ctx, ids); err != nil {
		return err
	}

	for _, m := range res.Tables {
		for page := 1; page < opts.Pages && sess.cache.HasMoreRecords(m.TableID); page++ {
			if _, err := sess.searcher.LoadMore(ctx, m.TableID); err != nil {
				sess.logger.Warn("load more failed", "table", m.TableID, "error", err)
				break
			}
		}

		rows := sess.cache.LoadedRecords(m.TableID)
		if rows == nil {
			// First page failed; the warning is already logged.
			continue
		}

		_, _ = fmt.Fprintf(out, "\n%s\n", m.TableID)
		if err := renderRows(out, rows, format); err != nil {
			return err
		}
		if sess.cache.HasMoreRecords(m.TableID) {
			_, _ = fmt.Fprintln(out, "... more rows available")
		}
	}

	return nil
}
