package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablescout/tablescout/pkg/query"
)

func TestMakeAndSplitTableID(t *testing.T) {
	assert.Equal(t, "main.users", MakeTableID("main", "users"))
	assert.Equal(t, "users", MakeTableID("", "users"))

	schema, name := SplitTableID("main.users")
	assert.Equal(t, "main", schema)
	assert.Equal(t, "users", name)

	schema, name = SplitTableID("users")
	assert.Equal(t, "", schema)
	assert.Equal(t, "users", name)
}

func TestFiltersAllows(t *testing.T) {
	empty := Filters{}
	assert.True(t, empty.Allows("main", "table"))
	assert.True(t, empty.Allows("anything", "view"))

	f := Filters{Schemas: []string{"Public"}, TableTypes: []string{"table"}}
	assert.True(t, f.Allows("public", "table"))
	assert.False(t, f.Allows("public", "view"))
	assert.False(t, f.Allows("main", "table"))
}

func TestSearchTerms(t *testing.T) {
	ast := query.Parse(`alpha (beta "  ") gamma`)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, searchTerms(ast))

	assert.Nil(t, searchTerms(query.AST{}))
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%alpha%", likePattern("alpha"))
	assert.Equal(t, `%50\%%`, likePattern("50%"))
	assert.Equal(t, `%a\_b%`, likePattern("a_b"))
	assert.Equal(t, `%c:\\tmp%`, likePattern(`c:\tmp`))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"users"`, quoteIdent("users"))
	assert.Equal(t, `"we""ird"`, quoteIdent(`we"ird`))
}

func TestOffsetCursorRoundTrip(t *testing.T) {
	offset, err := decodeOffsetCursor("")
	require.NoError(t, err)
	assert.Equal(t, 0, offset)

	offset, err = decodeOffsetCursor(encodeOffsetCursor(42))
	require.NoError(t, err)
	assert.Equal(t, 42, offset)

	_, err = decodeOffsetCursor("not-a-number")
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	names := List()
	assert.Contains(t, names, "sqlite")
	assert.Contains(t, names, "duckdb")
	assert.Contains(t, names, "postgres")

	b, err := New(Config{Type: "sqlite"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", b.Name())

	_, err = New(Config{Type: "oracle"}, nil)
	require.Error(t, err)
	var unknown *UnknownBackendError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "oracle", unknown.Type)

	_, err = New(Config{}, nil)
	assert.Error(t, err)
}
