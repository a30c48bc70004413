package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablescout/tablescout/pkg/query"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s := NewSQLiteStore()
	require.NoError(t, s.Open(":memory:"))
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndGetSearch(t *testing.T) {
	s := newTestStore(t)

	ast := query.Parse(`alpha "beta gamma"`)
	ast.Clauses()[0].Metadata = query.Metadata{"variants": []any{"alpha_id"}}

	saved, err := s.SaveSearch(`alpha "beta gamma"`, ast, "sqlite", 2)
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())

	got, err := s.GetSearch(saved.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, `alpha "beta gamma"`, got.Text)
	assert.Equal(t, "sqlite", got.Backend)
	assert.Equal(t, 2, got.Tables)
	assert.Equal(t, []string{"alpha", "beta gamma"}, got.Query.Values())
	assert.Equal(t, query.Metadata{"variants": []any{"alpha_id"}}, got.Query.Clauses()[0].Metadata)
}

func TestGetSearchMissing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetSearch("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListRecentNewestFirst(t *testing.T) {
	s := newTestStore(t)

	for _, text := range []string{"one", "two", "three"} {
		_, err := s.SaveSearch(text, query.Parse(text), "sqlite", 0)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	recent, err := s.ListRecent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "three", recent[0].Text)
	assert.Equal(t, "two", recent[1].Text)
}

func TestDeleteSearch(t *testing.T) {
	s := newTestStore(t)

	saved, err := s.SaveSearch("gone", query.Parse("gone"), "sqlite", 0)
	require.NoError(t, err)

	require.NoError(t, s.DeleteSearch(saved.ID))
	got, err := s.GetSearch(saved.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Unknown IDs delete cleanly.
	assert.NoError(t, s.DeleteSearch("nope"))
}

func TestPruneOlderThan(t *testing.T) {
	s := newTestStore(t)

	_, err := s.SaveSearch("old", query.Parse("old"), "sqlite", 0)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	cutoff := time.Now().UTC()
	time.Sleep(2 * time.Millisecond)
	_, err = s.SaveSearch("new", query.Parse("new"), "sqlite", 0)
	require.NoError(t, err)

	n, err := s.PruneOlderThan(cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	recent, err := s.ListRecent(10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "new", recent[0].Text)
}

func TestMigrationVersion(t *testing.T) {
	s := newTestStore(t)

	version, err := s.MigrationVersion()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, version, int64(1))
}

func TestOperationsRequireOpen(t *testing.T) {
	s := NewSQLiteStore()

	_, err := s.SaveSearch("x", nil, "sqlite", 0)
	assert.Error(t, err)
	_, err = s.ListRecent(5)
	assert.Error(t, err)
	assert.Error(t, s.Migrate())
}
