package backend

import (
	"strconv"
	"strings"

	"github.com/tablescout/tablescout/pkg/query"
)

// searchTerms flattens the query into its non-empty clause values. Grouping
// is a hint for the UI and future operator support; matching treats the
// query as a conjunction of terms.
func searchTerms(ast query.AST) []string {
	var terms []string
	for _, v := range ast.Values() {
		if strings.TrimSpace(v) != "" {
			terms = append(terms, v)
		}
	}
	return terms
}

// likePattern builds a substring LIKE pattern for a term, escaping the
// wildcard characters so user input matches literally. Pair with
// "ESCAPE '\'" in the SQL.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

// quoteIdent quotes a SQL identifier with double quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// offsetCursor encodes and decodes the offset-strategy cursor token.
func encodeOffsetCursor(offset int) string {
	return strconv.Itoa(offset)
}

func decodeOffsetCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	return strconv.Atoi(cursor)
}

// containsTermFold reports a case-insensitive substring match.
func containsTermFold(s, term string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(term))
}
