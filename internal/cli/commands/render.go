package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/tablescout/tablescout/internal/backend"
)

// renderTableMatches prints the matched tables in the requested format.
func renderTableMatches(w io.Writer, matches []backend.TableMatch, format string) error {
	switch format {
	case "json":
		return renderJSON(w, matches)
	case "csv":
		cols := []string{"table", "schema", "type"}
		rows := make([]map[string]any, len(matches))
		for i, m := range matches {
			rows[i] = map[string]any{"table": m.TableID, "schema": m.Schema, "type": m.Type}
		}
		return renderCSV(w, cols, rows)
	case "md", "markdown":
		cols := []string{"table", "schema", "type"}
		rows := make([]map[string]any, len(matches))
		for i, m := range matches {
			rows[i] = map[string]any{"table": m.TableID, "schema": m.Schema, "type": m.Type}
		}
		return renderMarkdown(w, cols, rows)
	}

	if len(matches) == 0 {
		_, _ = fmt.Fprintln(w, "(no matching tables)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Table", "Schema", "Type"})
	for _, m := range matches {
		t.AppendRow(table.Row{m.TableID, m.Schema, m.Type})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d tables)\n", len(matches))
	return nil
}

// renderRows prints loaded rows in the requested format. Columns are the
// union of the row keys, sorted for a stable layout.
func renderRows(w io.Writer, rows []backend.Row, format string) error {
	cols := rowColumns(rows)
	results := make([]map[string]any, len(rows))
	for i, r := range rows {
		results[i] = r.Values
	}

	switch format {
	case "json":
		return renderJSON(w, rows)
	case "csv":
		return renderCSV(w, cols, results)
	case "md", "markdown":
		return renderMarkdown(w, cols, results)
	}
	return renderTable(w, cols, results)
}

func rowColumns(rows []backend.Row) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range rows {
		for c := range r.Values {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func renderTable(w io.Writer, cols []string, results []map[string]any) error {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(cols))
	for i, col := range cols {
		headerRow[i] = col
	}
	t.AppendHeader(headerRow)

	for _, result := range results {
		row := make(table.Row, len(cols))
		for i, col := range cols {
			row[i] = formatValue(result[col])
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(results))
	return nil
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderCSV(w io.Writer, cols []string, results []map[string]any) error {
	_, _ = fmt.Fprintln(w, strings.Join(cols, ","))

	for _, result := range results {
		values := make([]string, len(cols))
		for i, col := range cols {
			values[i] = escapeCSV(formatValue(result[col]))
		}
		_, _ = fmt.Fprintln(w, strings.Join(values, ","))
	}
	return nil
}

func renderMarkdown(w io.Writer, cols []string, results []map[string]any) error {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(cols, " | "))
	seps := make([]string, len(cols))
	for i := range seps {
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for _, result := range results {
		values := make([]string, len(cols))
		for i, col := range cols {
			values[i] = formatValue(result[col])
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(values, " | "))
	}
	return nil
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}

func escapeCSV(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
