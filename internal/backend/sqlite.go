package backend

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tablescout/tablescout/pkg/query"

	_ "modernc.org/sqlite" // sqlite driver
)

func init() {
	Register("sqlite", func(logger *slog.Logger) Backend { return NewSQLite(logger) })
}

// SQLite implements Backend for SQLite databases. It paginates with the
// offset strategy: the cursor is the next row offset.
type SQLite struct {
	db     *sql.DB
	cfg    Config
	logger *slog.Logger
}

// NewSQLite creates an unconnected SQLite backend.
func NewSQLite(logger *slog.Logger) *SQLite {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLite{logger: logger}
}

// Name returns the backend type name.
func (b *SQLite) Name() string { return "sqlite" }

// Connect opens the database file. Use ":memory:" for an in-memory database.
func (b *SQLite) Connect(ctx context.Context, cfg Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	b.db = db
	b.cfg = cfg
	return nil
}

// Close closes the database connection.
func (b *SQLite) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

type catalogEntry struct {
	name      string
	tableType string // "table" or "view"
}

func (b *SQLite) listCatalog(ctx context.Context) ([]catalogEntry, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT name, type FROM sqlite_master
		WHERE type IN ('table', 'view')
		AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []catalogEntry
	for rows.Next() {
		var e catalogEntry
		if err := rows.Scan(&e.name, &e.tableType); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SearchTables returns the tables for which every query term matches the
// table name, a column name, or some cell value.
func (b *SQLite) SearchTables(ctx context.Context, ast query.AST, f Filters) ([]TableMatch, error) {
	if b.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	terms := searchTerms(ast)
	entries, err := b.listCatalog(ctx)
	if err != nil {
		return nil, err
	}

	var matches []TableMatch
	for _, e := range entries {
		if !f.Allows("main", e.tableType) {
			continue
		}
		ok, err := b.tableMatches(ctx, e.name, terms)
		if err != nil {
			// A single unreadable table must not sink the whole search.
			b.logger.Warn("skipping table", "table", e.name, "error", err)
			continue
		}
		if ok {
			matches = append(matches, TableMatch{
				TableID: MakeTableID("main", e.name),
				Schema:  "main",
				Name:    e.name,
				Type:    e.tableType,
			})
		}
	}
	return matches, nil
}

func (b *SQLite) tableMatches(ctx context.Context, table string, terms []string) (bool, error) {
	if len(terms) == 0 {
		return true, nil
	}

	cols, err := b.columnNames(ctx, table)
	if err != nil {
		return false, err
	}

	for _, term := range terms {
		if containsTermFold(table, term) {
			continue
		}
		if colMatches(cols, term) {
			continue
		}
		ok, err := b.cellMatch(ctx, table, cols, term)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func colMatches(cols []string, term string) bool {
	for _, c := range cols {
		if containsTermFold(c, term) {
			return true
		}
	}
	return false
}

// cellMatch probes for at least one row containing the term.
func (b *SQLite) cellMatch(ctx context.Context, table string, cols []string, term string) (bool, error) {
	where, args := columnFilter(cols, term)
	q := fmt.Sprintf(`SELECT 1 FROM %s WHERE %s LIMIT 1`, quoteIdent(table), where)

	var one int
	err := b.db.QueryRowContext(ctx, q, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// columnFilter builds "column LIKE ? OR ..." across all columns for one term.
// SQLite's LIKE is already case-insensitive for ASCII.
func columnFilter(cols []string, term string) (string, []any) {
	parts := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for _, c := range cols {
		parts = append(parts, fmt.Sprintf(`CAST(%s AS TEXT) LIKE ? ESCAPE '\'`, quoteIdent(c)))
		args = append(args, likePattern(term))
	}
	if len(parts) == 0 {
		return "0", nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

func (b *SQLite) columnNames(ctx context.Context, table string) ([]string, error) {
	cols, err := b.tableColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names, nil
}

// FetchPage returns the next page of rows matching the query's terms.
// Row filtering happens in SQL, so a single query yields exactly PageSize
// matching rows (plus one probe row to decide hasMore).
func (b *SQLite) FetchPage(ctx context.Context, req PageRequest) (*PageResult, error) {
	if b.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	if req.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", req.PageSize)
	}

	offset, err := decodeOffsetCursor(req.Cursor)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor %q: %w", req.Cursor, err)
	}

	_, table := SplitTableID(req.TableID)
	cols, err := b.columnNames(ctx, table)
	if err != nil {
		return nil, err
	}

	where, args := rowFilter(cols, searchTerms(req.Query))
	args = append(args, req.PageSize+1, offset)

	// rowid gives stable row identifiers for tables; views have none, so
	// fall back to position-derived IDs there.
	q := fmt.Sprintf(`SELECT rowid, * FROM %s WHERE %s LIMIT ? OFFSET ?`, quoteIdent(table), where)
	rows, err := b.db.QueryContext(ctx, q, args...)
	withRowID := true
	if err != nil {
		q = fmt.Sprintf(`SELECT * FROM %s WHERE %s LIMIT ? OFFSET ?`, quoteIdent(table), where)
		rows, err = b.db.QueryContext(ctx, q, args...)
		withRowID = false
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page for %s: %w", req.TableID, err)
	}
	defer func() { _ = rows.Close() }()

	fetched, err := scanRows(rows, withRowID, req.TableID, offset)
	if err != nil {
		return nil, err
	}

	hasMore := len(fetched) > req.PageSize
	if hasMore {
		fetched = fetched[:req.PageSize]
	}

	return &PageResult{
		Rows: fetched,
		Pagination: PaginationInfo{
			Cursor:   encodeOffsetCursor(offset + len(fetched)),
			HasMore:  hasMore,
			Strategy: StrategyOffset,
		},
	}, nil
}

// rowFilter ANDs the per-term column filters.
func rowFilter(cols []string, terms []string) (string, []any) {
	if len(terms) == 0 {
		return "1", nil
	}
	parts := make([]string, 0, len(terms))
	var args []any
	for _, term := range terms {
		p, a := columnFilter(cols, term)
		parts = append(parts, p)
		args = append(args, a...)
	}
	return strings.Join(parts, " AND "), args
}

// scanRows reads generic rows into the wire Row shape.
func scanRows(rows *sql.Rows, withRowID bool, tableID string, offset int) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := Row{Values: make(map[string]any, len(cols))}
		start := 0
		if withRowID {
			row.ID = formatRowID(values[0])
			start = 1
		} else {
			row.ID = fmt.Sprintf("%s#%d", tableID, offset+len(out))
		}
		for i := start; i < len(cols); i++ {
			row.Values[cols[i]] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func formatRowID(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// ExpandTerm returns catalog names (tables and columns) containing the term.
func (b *SQLite) ExpandTerm(ctx context.Context, term string) ([]string, error) {
	if b.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	const limit = 8
	entries, err := b.listCatalog(ctx)
	if err != nil {
		return nil, err
	}

	var variants []string
	seen := make(map[string]bool)
	add := func(name string) {
		if len(variants) < limit && containsTermFold(name, term) && !seen[name] {
			seen[name] = true
			variants = append(variants, name)
		}
	}

	for _, e := range entries {
		add(e.name)
	}
	for _, e := range entries {
		if len(variants) >= limit {
			break
		}
		cols, err := b.columnNames(ctx, e.name)
		if err != nil {
			continue
		}
		for _, c := range cols {
			add(c)
		}
	}
	return variants, nil
}

// TableColumns returns column metadata via PRAGMA table_info.
func (b *SQLite) TableColumns(ctx context.Context, tableID string) ([]Column, error) {
	if b.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	_, table := SplitTableID(tableID)
	return b.tableColumns(ctx, table)
}

func (b *SQLite) tableColumns(ctx context.Context, table string) ([]Column, error) {
	// PRAGMA does not take bound parameters; the identifier is quoted.
	rows, err := b.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("failed to read columns for %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []Column
	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			continue
		}
		cols = append(cols, Column{Name: name, Type: colType, Nullable: notNull == 0})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}
	return cols, nil
}

var _ Backend = (*SQLite)(nil)
