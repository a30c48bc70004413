// Package pagecache tracks per-table pagination state while results stream
// in: the cursor to continue from, whether more rows exist, whether a load is
// already in flight, and the rows loaded so far. It is the single source of
// truth for "load more" across concurrent fetches.
package pagecache

import (
	"errors"
	"sort"
	"sync"

	"github.com/tablescout/tablescout/internal/backend"
)

// Load-more gate errors.
var (
	// ErrLoadInFlight means a load-more for the table is already running.
	ErrLoadInFlight = errors.New("load already in flight")
	// ErrUnknownTable means the table was never initialized (or was reset).
	ErrUnknownTable = errors.New("table not tracked")
	// ErrNoMoreRows means the table is tracked but fully loaded.
	ErrNoMoreRows = errors.New("no more rows")
)

type entry struct {
	cursor      string
	strategy    backend.Strategy
	hasMore     bool
	loadingMore bool
	rows        []backend.Row
}

// Cache is the per-table pagination store. The zero value is not usable;
// call New.
type Cache struct {
	mu     sync.RWMutex
	tables map[string]*entry
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{tables: make(map[string]*entry)}
}

// Initialize records the first page for a table, replacing any prior state.
// A pending loadingMore flag from an evicted generation does not survive.
func (c *Cache) Initialize(tableID string, rows []backend.Row, p backend.PaginationInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[tableID] = &entry{
		cursor:   p.Cursor,
		strategy: p.Strategy,
		hasMore:  p.HasMore,
		rows:     append([]backend.Row(nil), rows...),
	}
}

// AppendRecords concatenates a follow-up page onto a table's loaded rows and
// advances the cursor. It reports false and changes nothing when the table
// was never initialized; results for evicted tables are dropped, not revived.
func (c *Cache) AppendRecords(tableID string, rows []backend.Row, p backend.PaginationInfo) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.tables[tableID]
	if !ok {
		return false
	}
	e.rows = append(e.rows, rows...)
	e.cursor = p.Cursor
	e.strategy = p.Strategy
	e.hasMore = p.HasMore
	return true
}

// TryBeginLoadMore claims the load-more gate for a table. Exactly one caller
// wins between Initialize and the matching EndLoadMore; losers get
// ErrLoadInFlight. Unknown tables get ErrUnknownTable, exhausted ones
// ErrNoMoreRows.
func (c *Cache) TryBeginLoadMore(tableID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.tables[tableID]
	if !ok {
		return ErrUnknownTable
	}
	if e.loadingMore {
		return ErrLoadInFlight
	}
	if !e.hasMore {
		return ErrNoMoreRows
	}
	e.loadingMore = true
	return nil
}

// EndLoadMore releases the load-more gate. Safe to call for unknown tables,
// which happens when the table was reset while its load was in flight.
func (c *Cache) EndLoadMore(tableID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.tables[tableID]; ok {
		e.loadingMore = false
	}
}

// SetLoadingMore sets the in-flight flag directly. No-op for unknown tables.
func (c *Cache) SetLoadingMore(tableID string, loading bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.tables[tableID]; ok {
		e.loadingMore = loading
	}
}

// Reset forgets a single table.
func (c *Cache) Reset(tableID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tables, tableID)
}

// ResetAll forgets every table. Called when a new search supersedes the
// current result set or the underlying data changed.
func (c *Cache) ResetAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = make(map[string]*entry)
}

// HasMoreRecords reports whether a table has more rows to fetch. Unknown
// tables report false.
func (c *Cache) HasMoreRecords(tableID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.tables[tableID]
	return ok && e.hasMore
}

// IsTableLoadingMore reports whether a load-more for the table is in flight.
// Unknown tables report false.
func (c *Cache) IsTableLoadingMore(tableID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.tables[tableID]
	return ok && e.loadingMore
}

// LoadedRecords returns a copy of the rows loaded so far, nil for unknown
// tables. Duplicate row IDs across page boundaries are preserved; collapsing
// them is the display layer's job.
func (c *Cache) LoadedRecords(tableID string) []backend.Row {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.tables[tableID]
	if !ok {
		return nil
	}
	return append([]backend.Row(nil), e.rows...)
}

// PaginationState returns the table's current pagination info and whether
// the table is tracked at all.
func (c *Cache) PaginationState(tableID string) (backend.PaginationInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.tables[tableID]
	if !ok {
		return backend.PaginationInfo{}, false
	}
	return backend.PaginationInfo{
		Cursor:   e.cursor,
		HasMore:  e.hasMore,
		Strategy: e.strategy,
	}, true
}

// Tables returns the tracked table IDs, sorted.
func (c *Cache) Tables() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.tables))
	for id := range c.tables {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
