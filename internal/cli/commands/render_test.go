package commands

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablescout/tablescout/internal/backend"
)

func sampleMatches() []backend.TableMatch {
	return []backend.TableMatch{
		{TableID: "main.users", Schema: "main", Name: "users", Type: "table"},
		{TableID: "main.active_users", Schema: "main", Name: "active_users", Type: "view"},
	}
}

func sampleRows() []backend.Row {
	return []backend.Row{
		{ID: "main.users#0", Values: map[string]any{"id": int64(1), "name": "alice"}},
		{ID: "main.users#1", Values: map[string]any{"id": int64(2), "name": nil, "email": "bob@example.com"}},
	}
}

func TestRenderTableMatchesTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderTableMatches(&buf, sampleMatches(), "table"))

	out := buf.String()
	assert.Contains(t, out, "main.users")
	assert.Contains(t, out, "main.active_users")
	assert.Contains(t, out, "view")
	assert.Contains(t, out, "(2 tables)")
}

func TestRenderTableMatchesEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderTableMatches(&buf, nil, "table"))
	assert.Contains(t, buf.String(), "(no matching tables)")
}

func TestRenderTableMatchesJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderTableMatches(&buf, sampleMatches(), "json"))

	var decoded []backend.TableMatch
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "main.users", decoded[0].TableID)
}

func TestRenderTableMatchesCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderTableMatches(&buf, sampleMatches(), "csv"))

	out := buf.String()
	assert.Contains(t, out, "table,schema,type")
	assert.Contains(t, out, "main.users,main,table")
}

func TestRenderRowsColumnUnion(t *testing.T) {
	// Columns are the sorted union across rows; missing values render as NULL.
	var buf bytes.Buffer
	require.NoError(t, renderRows(&buf, sampleRows(), "markdown"))

	out := buf.String()
	assert.Contains(t, out, "| email | id | name |")
	assert.Contains(t, out, "| NULL | 1 | alice |")
	assert.Contains(t, out, "| bob@example.com | 2 | NULL |")
}

func TestRenderRowsEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderRows(&buf, nil, "table"))
	assert.Contains(t, buf.String(), "(0 rows)")
}

func TestRowColumnsSortedUnion(t *testing.T) {
	cols := rowColumns(sampleRows())
	assert.Equal(t, []string{"email", "id", "name"}, cols)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "NULL", formatValue(nil))
	assert.Equal(t, "raw", formatValue([]byte("raw")))
	assert.Equal(t, "42", formatValue(int64(42)))
	assert.Equal(t, "3.5", formatValue(3.5))
}

func TestEscapeCSV(t *testing.T) {
	assert.Equal(t, "plain", escapeCSV("plain"))
	assert.Equal(t, `"a,b"`, escapeCSV("a,b"))
	assert.Equal(t, `"say ""hi"""`, escapeCSV(`say "hi"`))
}
