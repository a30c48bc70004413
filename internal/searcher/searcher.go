// Package searcher runs the search pipeline: parse the query text, carry
// term annotations over from the previous query, find matching tables, and
// page their rows through the cache. A generation token fences overlapping
// searches so a slow fetch can never write into a newer search's results.
package searcher

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tablescout/tablescout/internal/backend"
	"github.com/tablescout/tablescout/internal/pagecache"
	"github.com/tablescout/tablescout/internal/visibility"
	"github.com/tablescout/tablescout/pkg/query"
)

// Metadata keys the searcher writes into query clauses.
const (
	// MetaVariants lists catalog names matching the term.
	MetaVariants = "variants"
)

// DefaultPageSize is the page size used when Options leaves it zero.
const DefaultPageSize = 50

// Options configures a Searcher.
type Options struct {
	PageSize int
	// FetchConcurrency bounds parallel first-page fetches. Zero means 4.
	FetchConcurrency int
	Filters          backend.Filters
	Logger           *slog.Logger
}

// Searcher coordinates one backend with the pagination cache and the
// pending-table set. Safe for concurrent use.
type Searcher struct {
	backend backend.Backend
	cache   *pagecache.Cache
	visible *visibility.Set
	opts    Options
	logger  *slog.Logger

	mu         sync.Mutex
	prev       query.AST
	generation uuid.UUID
}

// New creates a Searcher. cache and visible must not be nil.
func New(b backend.Backend, cache *pagecache.Cache, visible *visibility.Set, opts Options) *Searcher {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.FetchConcurrency <= 0 {
		opts.FetchConcurrency = 4
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Searcher{
		backend: b,
		cache:   cache,
		visible: visible,
		opts:    opts,
		logger:  logger,
	}
}

// Result is the outcome of one search.
type Result struct {
	// Query is the parsed query with annotations carried over from the
	// previous search where the terms survived the edit.
	Query query.AST `json:"query"`
	// Tables are the matching tables, in catalog order.
	Tables []backend.TableMatch `json:"tables"`
	// Generation identifies this search; page fetches carry it so stale
	// results can be discarded.
	Generation uuid.UUID `json:"generation"`
}

// Search parses the query text and finds the matching tables. It starts a
// new generation: all cached pages are dropped and every match becomes
// pending until the display layer syncs it.
func (s *Searcher) Search(ctx context.Context, text string) (*Result, error) {
	ast := query.Parse(text)

	s.mu.Lock()
	if merged := query.Merge(s.prev, ast); merged != nil {
		ast = merged
	}
	s.mu.Unlock()

	s.annotate(ctx, ast)

	gen := uuid.New()
	s.mu.Lock()
	s.prev = ast
	s.generation = gen
	s.mu.Unlock()

	s.cache.ResetAll()

	matches, err := s.backend.SearchTables(ctx, ast, s.opts.Filters)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.TableID
	}
	s.visible.SyncWithVisible(ids)

	s.logger.Debug("search complete",
		"terms", len(ast.Values()), "tables", len(matches), "generation", gen)

	return &Result{Query: ast, Tables: matches, Generation: gen}, nil
}

// annotate fills in variant metadata for clauses that have none. Annotation
// is best-effort; a failing lookup leaves the clause bare.
func (s *Searcher) annotate(ctx context.Context, ast query.AST) {
	for _, c := range ast.Clauses() {
		if c.Metadata != nil {
			continue
		}
		variants, err := s.backend.ExpandTerm(ctx, c.Value)
		if err != nil {
			s.logger.Debug("term expansion failed", "term", c.Value, "error", err)
			continue
		}
		if len(variants) > 0 {
			c.Metadata = query.Metadata{MetaVariants: variants}
		}
	}
}

// CurrentQuery returns the most recent annotated query.
func (s *Searcher) CurrentQuery() query.AST {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prev.Clone()
}

// Generation returns the current search generation.
func (s *Searcher) Generation() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// FetchVisible loads first pages for the visible tables that have no cached
// entry yet, concurrently. Tables already in the cache keep their accumulated
// pages; re-initializing them would throw away rows loaded through LoadMore.
// Pages that arrive after a newer search has started are discarded. Per-table
// fetch errors are logged and skipped so one broken table cannot blank the
// whole result set.
func (s *Searcher) FetchVisible(ctx context.Context, tableIDs []string) error {
	toFetch := make([]string, 0, len(tableIDs))
	for _, tableID := range tableIDs {
		if _, ok := s.cache.PaginationState(tableID); !ok {
			toFetch = append(toFetch, tableID)
		}
	}
	s.visible.SyncWithVisible(toFetch)

	s.mu.Lock()
	gen := s.generation
	ast := s.prev
	s.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.FetchConcurrency)

	for _, tableID := range toFetch {
		g.Go(func() error {
			res, err := s.backend.FetchPage(ctx, backend.PageRequest{
				TableID:  tableID,
				PageSize: s.opts.PageSize,
				Query:    ast,
				Filters:  s.opts.Filters,
			})
			if err != nil {
				s.logger.Warn("first page fetch failed", "table", tableID, "error", err)
				return nil
			}

			s.mu.Lock()
			stale := s.generation != gen
			s.mu.Unlock()
			if stale {
				return nil
			}

			s.cache.Initialize(tableID, res.Rows, res.Pagination)
			s.visible.RemovePending(tableID)
			return nil
		})
	}
	return g.Wait()
}

// LoadMore fetches the next page for a table. Exactly one load per table
// runs at a time; concurrent calls get pagecache.ErrLoadInFlight, exhausted
// tables pagecache.ErrNoMoreRows. A failed fetch leaves the cached state
// untouched. Results for a table evicted while the fetch ran are dropped.
func (s *Searcher) LoadMore(ctx context.Context, tableID string) ([]backend.Row, error) {
	if err := s.cache.TryBeginLoadMore(tableID); err != nil {
		return nil, err
	}
	defer s.cache.EndLoadMore(tableID)

	p, ok := s.cache.PaginationState(tableID)
	if !ok {
		return nil, pagecache.ErrUnknownTable
	}

	s.mu.Lock()
	ast := s.prev
	s.mu.Unlock()

	res, err := s.backend.FetchPage(ctx, backend.PageRequest{
		TableID:  tableID,
		Cursor:   p.Cursor,
		PageSize: s.opts.PageSize,
		Query:    ast,
		Filters:  s.opts.Filters,
	})
	if err != nil {
		return nil, err
	}

	if !s.cache.AppendRecords(tableID, res.Rows, res.Pagination) {
		// The table was reset mid-flight; a newer search owns the cache now.
		return nil, pagecache.ErrUnknownTable
	}
	return res.Rows, nil
}
