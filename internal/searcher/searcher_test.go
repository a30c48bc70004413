package searcher

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablescout/tablescout/internal/backend"
	"github.com/tablescout/tablescout/internal/pagecache"
	"github.com/tablescout/tablescout/internal/visibility"
	"github.com/tablescout/tablescout/pkg/query"
)

// fakeBackend serves canned tables with offset pagination.
type fakeBackend struct {
	mu          sync.Mutex
	tables      map[string][]backend.Row
	expand      map[string][]string
	fetchErr    map[string]error
	beforeFetch func(tableID string)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		tables:   make(map[string][]backend.Row),
		expand:   make(map[string][]string),
		fetchErr: make(map[string]error),
	}
}

func (f *fakeBackend) Connect(context.Context, backend.Config) error { return nil }
func (f *fakeBackend) Close() error                                  { return nil }
func (f *fakeBackend) Name() string                                  { return "fake" }

func (f *fakeBackend) SearchTables(_ context.Context, _ query.AST, _ backend.Filters) ([]backend.TableMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matches []backend.TableMatch
	for id := range f.tables {
		schema, name := backend.SplitTableID(id)
		matches = append(matches, backend.TableMatch{TableID: id, Schema: schema, Name: name, Type: "table"})
	}
	return matches, nil
}

func (f *fakeBackend) FetchPage(_ context.Context, req backend.PageRequest) (*backend.PageResult, error) {
	if f.beforeFetch != nil {
		f.beforeFetch(req.TableID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.fetchErr[req.TableID]; err != nil {
		return nil, err
	}
	rows, ok := f.tables[req.TableID]
	if !ok {
		return nil, errors.New("no such table")
	}

	offset := 0
	if req.Cursor != "" {
		offset, _ = strconv.Atoi(req.Cursor)
	}
	end := offset + req.PageSize
	if end > len(rows) {
		end = len(rows)
	}
	page := rows[offset:end]
	return &backend.PageResult{
		Rows: page,
		Pagination: backend.PaginationInfo{
			Cursor:   strconv.Itoa(end),
			HasMore:  end < len(rows),
			Strategy: backend.StrategyOffset,
		},
	}, nil
}

func (f *fakeBackend) ExpandTerm(_ context.Context, term string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expand[term], nil
}

func (f *fakeBackend) TableColumns(context.Context, string) ([]backend.Column, error) {
	return []backend.Column{{Name: "id", Type: "INTEGER"}}, nil
}

func rowsN(n int) []backend.Row {
	rows := make([]backend.Row, n)
	for i := range rows {
		rows[i] = backend.Row{ID: strconv.Itoa(i), Values: map[string]any{"id": i}}
	}
	return rows
}

func newTestSearcher(fb *fakeBackend, pageSize int) (*Searcher, *pagecache.Cache, *visibility.Set) {
	cache := pagecache.New()
	visible := visibility.New(nil)
	s := New(fb, cache, visible, Options{PageSize: pageSize, FetchConcurrency: 1})
	return s, cache, visible
}

func TestSearchMarksMatchesPending(t *testing.T) {
	fb := newFakeBackend()
	fb.tables["main.users"] = rowsN(3)
	fb.tables["main.orders"] = rowsN(1)
	s, _, visible := newTestSearcher(fb, 2)

	res, err := s.Search(context.Background(), "anything")
	require.NoError(t, err)

	assert.Len(t, res.Tables, 2)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", res.Generation.String())
	assert.Equal(t, []string{"main.orders", "main.users"}, visible.Snapshot())
}

func TestSearchResetsCache(t *testing.T) {
	fb := newFakeBackend()
	fb.tables["main.users"] = rowsN(3)
	s, cache, _ := newTestSearcher(fb, 2)

	_, err := s.Search(context.Background(), "first")
	require.NoError(t, err)
	require.NoError(t, s.FetchVisible(context.Background(), []string{"main.users"}))
	require.NotEmpty(t, cache.LoadedRecords("main.users"))

	_, err = s.Search(context.Background(), "second")
	require.NoError(t, err)
	assert.Empty(t, cache.Tables())
}

func TestSearchAnnotatesAndPreservesMetadata(t *testing.T) {
	fb := newFakeBackend()
	fb.tables["main.users"] = rowsN(1)
	fb.expand["alpha"] = []string{"alpha_id"}
	fb.expand["beta"] = []string{"beta_col"}
	fb.expand["gamma"] = []string{"gamma_ts"}
	s, _, _ := newTestSearcher(fb, 2)

	res, err := s.Search(context.Background(), "alpha beta")
	require.NoError(t, err)
	clauses := res.Query.Clauses()
	require.Len(t, clauses, 2)
	assert.Equal(t, query.Metadata{MetaVariants: []string{"alpha_id"}}, clauses[0].Metadata)

	// Editing the text keeps the earlier annotations; only the new term is
	// looked up again.
	fb.mu.Lock()
	fb.expand["alpha"] = []string{"stale"}
	fb.mu.Unlock()

	res, err = s.Search(context.Background(), "alpha beta gamma")
	require.NoError(t, err)
	clauses = res.Query.Clauses()
	require.Len(t, clauses, 3)
	assert.Equal(t, query.Metadata{MetaVariants: []string{"alpha_id"}}, clauses[0].Metadata)
	assert.Equal(t, query.Metadata{MetaVariants: []string{"beta_col"}}, clauses[1].Metadata)
	assert.Equal(t, query.Metadata{MetaVariants: []string{"gamma_ts"}}, clauses[2].Metadata)
}

func TestFetchVisibleLoadsFirstPages(t *testing.T) {
	fb := newFakeBackend()
	fb.tables["main.users"] = rowsN(5)
	fb.tables["main.orders"] = rowsN(1)
	s, cache, visible := newTestSearcher(fb, 2)

	_, err := s.Search(context.Background(), "x")
	require.NoError(t, err)
	require.NoError(t, s.FetchVisible(context.Background(), []string{"main.users", "main.orders"}))

	assert.Len(t, cache.LoadedRecords("main.users"), 2)
	assert.True(t, cache.HasMoreRecords("main.users"))
	assert.Len(t, cache.LoadedRecords("main.orders"), 1)
	assert.False(t, cache.HasMoreRecords("main.orders"))
	assert.Equal(t, 0, visible.Len())
}

func TestFetchVisibleSkipsFailingTable(t *testing.T) {
	fb := newFakeBackend()
	fb.tables["main.users"] = rowsN(2)
	fb.tables["main.broken"] = rowsN(2)
	fb.fetchErr["main.broken"] = errors.New("boom")
	s, cache, visible := newTestSearcher(fb, 2)

	_, err := s.Search(context.Background(), "x")
	require.NoError(t, err)
	require.NoError(t, s.FetchVisible(context.Background(), []string{"main.users", "main.broken"}))

	assert.Len(t, cache.LoadedRecords("main.users"), 2)
	assert.Nil(t, cache.LoadedRecords("main.broken"))
	assert.True(t, visible.IsPending("main.broken"))
	assert.False(t, visible.IsPending("main.users"))
}

func TestFetchVisibleDiscardsStaleGeneration(t *testing.T) {
	fb := newFakeBackend()
	fb.tables["main.users"] = rowsN(3)
	s, cache, _ := newTestSearcher(fb, 2)

	_, err := s.Search(context.Background(), "first")
	require.NoError(t, err)

	// A newer search starts while the first page is in flight.
	fired := false
	fb.beforeFetch = func(string) {
		if !fired {
			fired = true
			fb.beforeFetch = nil
			_, err := s.Search(context.Background(), "second")
			require.NoError(t, err)
		}
	}

	require.NoError(t, s.FetchVisible(context.Background(), []string{"main.users"}))
	assert.Nil(t, cache.LoadedRecords("main.users"))
}

func TestLoadMoreAppendsAndAdvances(t *testing.T) {
	fb := newFakeBackend()
	fb.tables["main.users"] = rowsN(5)
	s, cache, _ := newTestSearcher(fb, 2)

	_, err := s.Search(context.Background(), "x")
	require.NoError(t, err)
	require.NoError(t, s.FetchVisible(context.Background(), []string{"main.users"}))

	rows, err := s.LoadMore(context.Background(), "main.users")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Len(t, cache.LoadedRecords("main.users"), 4)
	assert.True(t, cache.HasMoreRecords("main.users"))

	rows, err = s.LoadMore(context.Background(), "main.users")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Len(t, cache.LoadedRecords("main.users"), 5)
	assert.False(t, cache.HasMoreRecords("main.users"))

	_, err = s.LoadMore(context.Background(), "main.users")
	assert.ErrorIs(t, err, pagecache.ErrNoMoreRows)
}

func TestFetchVisibleKeepsLoadedTables(t *testing.T) {
	fb := newFakeBackend()
	fb.tables["main.users"] = rowsN(5)
	s, cache, visible := newTestSearcher(fb, 2)

	_, err := s.Search(context.Background(), "x")
	require.NoError(t, err)
	require.NoError(t, s.FetchVisible(context.Background(), []string{"main.users"}))
	_, err = s.LoadMore(context.Background(), "main.users")
	require.NoError(t, err)
	require.Len(t, cache.LoadedRecords("main.users"), 4)

	// Re-announcing a table that is already loaded must not refetch its
	// first page or discard the pages accumulated through LoadMore.
	require.NoError(t, s.FetchVisible(context.Background(), []string{"main.users"}))

	assert.Len(t, cache.LoadedRecords("main.users"), 4)
	p, ok := cache.PaginationState("main.users")
	require.True(t, ok)
	assert.Equal(t, "4", p.Cursor)
	assert.False(t, visible.IsPending("main.users"))
}

func TestLoadMoreGateRejectsConcurrent(t *testing.T) {
	fb := newFakeBackend()
	fb.tables["main.users"] = rowsN(5)
	s, cache, _ := newTestSearcher(fb, 2)

	_, err := s.Search(context.Background(), "x")
	require.NoError(t, err)
	require.NoError(t, s.FetchVisible(context.Background(), []string{"main.users"}))

	cache.SetLoadingMore("main.users", true)
	_, err = s.LoadMore(context.Background(), "main.users")
	assert.ErrorIs(t, err, pagecache.ErrLoadInFlight)
}

func TestLoadMoreFailureLeavesStateUntouched(t *testing.T) {
	fb := newFakeBackend()
	fb.tables["main.users"] = rowsN(5)
	s, cache, _ := newTestSearcher(fb, 2)

	_, err := s.Search(context.Background(), "x")
	require.NoError(t, err)
	require.NoError(t, s.FetchVisible(context.Background(), []string{"main.users"}))
	before, _ := cache.PaginationState("main.users")

	fb.mu.Lock()
	fb.fetchErr["main.users"] = errors.New("transient")
	fb.mu.Unlock()

	_, err = s.LoadMore(context.Background(), "main.users")
	require.Error(t, err)

	after, _ := cache.PaginationState("main.users")
	assert.Equal(t, before, after)
	assert.Len(t, cache.LoadedRecords("main.users"), 2)
	assert.False(t, cache.IsTableLoadingMore("main.users"))

	// The gate is free again once the failure is handled.
	fb.mu.Lock()
	delete(fb.fetchErr, "main.users")
	fb.mu.Unlock()
	_, err = s.LoadMore(context.Background(), "main.users")
	assert.NoError(t, err)
}

func TestLoadMoreDropsResultsForEvictedTable(t *testing.T) {
	fb := newFakeBackend()
	fb.tables["main.users"] = rowsN(5)
	s, cache, _ := newTestSearcher(fb, 2)

	_, err := s.Search(context.Background(), "x")
	require.NoError(t, err)
	require.NoError(t, s.FetchVisible(context.Background(), []string{"main.users"}))

	// The table is evicted while the fetch runs.
	fb.beforeFetch = func(string) { cache.Reset("main.users") }

	_, err = s.LoadMore(context.Background(), "main.users")
	assert.ErrorIs(t, err, pagecache.ErrUnknownTable)
	assert.Nil(t, cache.LoadedRecords("main.users"))
}
