package backend

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablescout/tablescout/pkg/query"
)

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &Postgres{db: db, logger: slog.New(slog.DiscardHandler)}, mock
}

func columnRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable"}).
		AddRow("id", "integer", "NO").
		AddRow("name", "text", "YES")
}

func TestPostgresFetchPage_FirstPage(t *testing.T) {
	b, mock := newMockPostgres(t)

	mock.ExpectQuery(`information_schema\.columns`).
		WithArgs("public", "users").
		WillReturnRows(columnRows())
	mock.ExpectQuery(`SELECT ctid::text`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"ctid", "id", "name"}).
			AddRow("(0,1)", 1, "alice").
			AddRow("(0,2)", 2, "bob").
			AddRow("(0,3)", 3, "carol"))

	res, err := b.FetchPage(context.Background(), PageRequest{
		TableID:  "public.users",
		PageSize: 2,
	})
	require.NoError(t, err)

	require.Len(t, res.Rows, 2)
	assert.Equal(t, "(0,1)", res.Rows[0].ID)
	assert.Equal(t, "alice", res.Rows[0].Values["name"])
	assert.True(t, res.Pagination.HasMore)
	assert.Equal(t, "(0,2)", res.Pagination.Cursor)
	assert.Equal(t, StrategyCursor, res.Pagination.Strategy)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFetchPage_CursorContinuation(t *testing.T) {
	b, mock := newMockPostgres(t)

	mock.ExpectQuery(`information_schema\.columns`).
		WithArgs("public", "users").
		WillReturnRows(columnRows())
	mock.ExpectQuery(`ctid > \$1::tid`).
		WithArgs("(0,2)", 3).
		WillReturnRows(sqlmock.NewRows([]string{"ctid", "id", "name"}).
			AddRow("(0,3)", 3, "carol"))

	res, err := b.FetchPage(context.Background(), PageRequest{
		TableID:  "public.users",
		Cursor:   "(0,2)",
		PageSize: 2,
	})
	require.NoError(t, err)

	require.Len(t, res.Rows, 1)
	assert.Equal(t, "(0,3)", res.Rows[0].ID)
	assert.False(t, res.Pagination.HasMore)
	assert.Equal(t, "(0,3)", res.Pagination.Cursor)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFetchPage_TermFilterBindsPlaceholders(t *testing.T) {
	b, mock := newMockPostgres(t)

	mock.ExpectQuery(`information_schema\.columns`).
		WithArgs("public", "users").
		WillReturnRows(columnRows())
	mock.ExpectQuery(`ILIKE \$1`).
		WithArgs("%ali%", "%ali%", 3).
		WillReturnRows(sqlmock.NewRows([]string{"ctid", "id", "name"}).
			AddRow("(0,1)", 1, "alice"))

	res, err := b.FetchPage(context.Background(), PageRequest{
		TableID:  "public.users",
		PageSize: 2,
		Query:    query.Parse("ali"),
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.False(t, res.Pagination.HasMore)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFetchPage_Validation(t *testing.T) {
	b, _ := newMockPostgres(t)

	_, err := b.FetchPage(context.Background(), PageRequest{TableID: "public.users"})
	assert.Error(t, err)

	var disconnected Postgres
	_, err = disconnected.FetchPage(context.Background(), PageRequest{TableID: "t", PageSize: 1})
	assert.Error(t, err)
}

func TestPostgresSearchTables_SkipsFailingTable(t *testing.T) {
	b, mock := newMockPostgres(t)

	mock.ExpectQuery(`information_schema\.tables`).
		WillReturnRows(sqlmock.NewRows([]string{"table_schema", "table_name", "table_type"}).
			AddRow("public", "broken", "BASE TABLE").
			AddRow("public", "users", "BASE TABLE"))

	mock.ExpectQuery(`information_schema\.columns`).
		WithArgs("public", "broken").
		WillReturnError(errors.New("permission denied"))
	mock.ExpectQuery(`information_schema\.columns`).
		WithArgs("public", "users").
		WillReturnRows(columnRows())
	mock.ExpectQuery(`SELECT 1 FROM "public"\."users"`).
		WithArgs("%alice%", "%alice%").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	matches, err := b.SearchTables(context.Background(), query.Parse("alice"), Filters{})
	require.NoError(t, err)

	require.Len(t, matches, 1)
	assert.Equal(t, "public.users", matches[0].TableID)
	assert.Equal(t, "table", matches[0].Type)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresExpandTerm(t *testing.T) {
	b, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT DISTINCT name`).
		WithArgs("%user%", 8).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).
			AddRow("user_id").
			AddRow("users"))

	variants, err := b.ExpandTerm(context.Background(), "user")
	require.NoError(t, err)
	assert.Equal(t, []string{"user_id", "users"}, variants)

	assert.NoError(t, mock.ExpectationsWereMet())
}
