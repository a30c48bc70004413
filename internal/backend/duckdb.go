package backend

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tablescout/tablescout/pkg/query"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

func init() {
	Register("duckdb", func(logger *slog.Logger) Backend { return NewDuckDB(logger) })
}

// DuckDB implements Backend for DuckDB databases using the offset strategy.
// DuckDB result sets carry no stable row identifier usable across tables and
// views, so row IDs encode the absolute position within the filtered scan.
type DuckDB struct {
	db     *sql.DB
	cfg    Config
	logger *slog.Logger
}

// NewDuckDB creates an unconnected DuckDB backend.
func NewDuckDB(logger *slog.Logger) *DuckDB {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DuckDB{logger: logger}
}

// Name returns the backend type name.
func (b *DuckDB) Name() string { return "duckdb" }

// Connect opens the database file. Use ":memory:" for an in-memory database.
func (b *DuckDB) Connect(ctx context.Context, cfg Config) error {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	b.db = db
	b.cfg = cfg
	return nil
}

// Close closes the database connection.
func (b *DuckDB) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

type duckCatalogEntry struct {
	schema    string
	name      string
	tableType string
}

func (b *DuckDB) listCatalog(ctx context.Context) ([]duckCatalogEntry, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT table_schema, table_name, table_type
		FROM information_schema.tables
		WHERE table_schema NOT IN ('information_schema', 'pg_catalog')
		ORDER BY table_schema, table_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []duckCatalogEntry
	for rows.Next() {
		var e duckCatalogEntry
		var rawType string
		if err := rows.Scan(&e.schema, &e.name, &rawType); err != nil {
			continue
		}
		e.tableType = normalizeTableType(rawType)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func normalizeTableType(t string) string {
	t = strings.ToLower(t)
	switch {
	case strings.Contains(t, "view"):
		return "view"
	default:
		return "table"
	}
}

// SearchTables returns the tables for which every query term matches the
// table name, a column name, or some cell value.
func (b *DuckDB) SearchTables(ctx context.Context, ast query.AST, f Filters) ([]TableMatch, error) {
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
		if !f.Allows(e.schema, e.tableType) {
			continue
		}
		ok, err := b.tableMatches(ctx, e, terms)
		if err != nil {
			b.logger.Warn("skipping table", "table", e.name, "error", err)
			continue
		}
		if ok {
			matches = append(matches, TableMatch{
				TableID: MakeTableID(e.schema, e.name),
				Schema:  e.schema,
				Name:    e.name,
				Type:    e.tableType,
			})
		}
	}
	return matches, nil
}

func (b *DuckDB) tableMatches(ctx context.Context, e duckCatalogEntry, terms []string) (bool, error) {
	if len(terms) == 0 {
		return true, nil
	}

	cols, err := b.columnNames(ctx, e.schema, e.name)
	if err != nil {
		return false, err
	}

	for _, term := range terms {
		if containsTermFold(e.name, term) || colMatches(cols, term) {
			continue
		}
		where, args := b.columnFilter(cols, term)
		q := fmt.Sprintf(`SELECT 1 FROM %s.%s WHERE %s LIMIT 1`,
			quoteIdent(e.schema), quoteIdent(e.name), where)

		var one int
		err := b.db.QueryRowContext(ctx, q, args...).Scan(&one)
		if err == sql.ErrNoRows {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

// columnFilter builds "column ILIKE ? OR ..." across all columns for a term.
func (b *DuckDB) columnFilter(cols []string, term string) (string, []any) {
	parts := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for _, c := range cols {
		parts = append(parts, fmt.Sprintf(`CAST(%s AS VARCHAR) ILIKE ? ESCAPE '\'`, quoteIdent(c)))
		args = append(args, likePattern(term))
	}
	if len(parts) == 0 {
		return "0=1", nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

// FetchPage returns the next page of rows matching the query's terms.
func (b *DuckDB) FetchPage(ctx context.Context, req PageRequest) (*PageResult, error) {
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

	schema, table := SplitTableID(req.TableID)
	if schema == "" {
		schema = "main"
	}
	cols, err := b.columnNames(ctx, schema, table)
	if err != nil {
		return nil, err
	}

	where, args := b.rowFilter(cols, searchTerms(req.Query))
	args = append(args, req.PageSize+1, offset)

	q := fmt.Sprintf(`SELECT * FROM %s.%s WHERE %s LIMIT ? OFFSET ?`,
		quoteIdent(schema), quoteIdent(table), where)
	rows, err := b.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page for %s: %w", req.TableID, err)
	}
	defer func() { _ = rows.Close() }()

	fetched, err := scanRows(rows, false, req.TableID, offset)
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

func (b *DuckDB) rowFilter(cols []string, terms []string) (string, []any) {
	if len(terms) == 0 {
		return "1=1", nil
	}
	parts := make([]string, 0, len(terms))
	var args []any
	for _, term := range terms {
		p, a := b.columnFilter(cols, term)
		parts = append(parts, p)
		args = append(args, a...)
	}
	return strings.Join(parts, " AND "), args
}

// ExpandTerm returns catalog names (tables and columns) containing the term.
func (b *DuckDB) ExpandTerm(ctx context.Context, term string) ([]string, error) {
	if b.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	const limit = 8
	rows, err := b.db.QueryContext(ctx, `
		SELECT DISTINCT name FROM (
			SELECT table_name AS name FROM information_schema.tables
			UNION
			SELECT column_name AS name FROM information_schema.columns
		)
		WHERE name ILIKE ? ESCAPE '\'
		ORDER BY name
		LIMIT ?
	`, likePattern(term), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to expand term: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var variants []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			variants = append(variants, name)
		}
	}
	return variants, rows.Err()
}

// TableColumns returns column metadata from information_schema.
func (b *DuckDB) TableColumns(ctx context.Context, tableID string) ([]Column, error) {
	if b.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	schema, table := SplitTableID(tableID)
	if schema == "" {
		schema = "main"
	}

	rows, err := b.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns for %s: %w", tableID, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []Column
	for rows.Next() {
		var col Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.Type, &nullable); err != nil {
			continue
		}
		col.Nullable = nullable == "YES"
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s not found", tableID)
	}
	return cols, nil
}

func (b *DuckDB) columnNames(ctx context.Context, schema, table string) ([]string, error) {
	cols, err := b.TableColumns(ctx, MakeTableID(schema, table))
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names, nil
}

var _ Backend = (*DuckDB)(nil)
