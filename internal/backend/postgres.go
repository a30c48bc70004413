package backend

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/tablescout/tablescout/pkg/query"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
)

func init() {
	Register("postgres", func(logger *slog.Logger) Backend { return NewPostgres(logger) })
}

// Postgres implements Backend for PostgreSQL using the cursor strategy:
// pages walk the table in ctid order and the cursor is the last ctid seen.
// Unlike offsets, a ctid cursor stays cheap on large tables and does not
// re-scan skipped rows.
type Postgres struct {
	db     *sql.DB
	cfg    Config
	logger *slog.Logger
}

// NewPostgres creates an unconnected PostgreSQL backend.
func NewPostgres(logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Postgres{logger: logger}
}

// Name returns the backend type name.
func (b *Postgres) Name() string { return "postgres" }

// Connect opens a connection using the config's host settings, or the raw
// connection string in Path when set.
func (b *Postgres) Connect(ctx context.Context, cfg Config) error {
	dsn := cfg.Path
	if dsn == "" {
		dsn = buildPostgresDSN(cfg)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	b.db = db
	b.cfg = cfg
	return nil
}

func buildPostgresDSN(cfg Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
		Path:   "/" + cfg.Database,
	}
	if cfg.Username != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	q := u.Query()
	for k, v := range cfg.Options {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Close closes the database connection.
func (b *Postgres) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

type pgCatalogEntry struct {
	schema    string
	name      string
	tableType string
}

func (b *Postgres) listCatalog(ctx context.Context) ([]pgCatalogEntry, error) {
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

	var entries []pgCatalogEntry
	for rows.Next() {
		var e pgCatalogEntry
		var rawType string
		if err := rows.Scan(&e.schema, &e.name, &rawType); err != nil {
			continue
		}
		e.tableType = normalizeTableType(rawType)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SearchTables returns the tables for which every query term matches the
// table name, a column name, or some cell value.
func (b *Postgres) SearchTables(ctx context.Context, ast query.AST, f Filters) ([]TableMatch, error) {
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

func (b *Postgres) tableMatches(ctx context.Context, e pgCatalogEntry, terms []string) (bool, error) {
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
		where, args := pgColumnFilter(cols, term, 1)
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

// pgColumnFilter builds "column ILIKE $n OR ..." across all columns for a
// term. argStart is the first placeholder number; the next free number is
// argStart + len(cols).
func pgColumnFilter(cols []string, term string, argStart int) (string, []any) {
	parts := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for i, c := range cols {
		parts = append(parts, fmt.Sprintf(`CAST(%s AS TEXT) ILIKE $%d ESCAPE '\'`, quoteIdent(c), argStart+i))
		args = append(args, likePattern(term))
	}
	if len(parts) == 0 {
		return "false", nil
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

func pgRowFilter(cols []string, terms []string, argStart int) (string, []any) {
	if len(terms) == 0 {
		return "true", nil
	}
	parts := make([]string, 0, len(terms))
	var args []any
	for _, term := range terms {
		p, a := pgColumnFilter(cols, term, argStart)
		argStart += len(a)
		parts = append(parts, p)
		args = append(args, a...)
	}
	return strings.Join(parts, " AND "), args
}

// FetchPage returns the next page of matching rows in ctid order. The cursor
// is the ctid of the last row of the previous page; an empty cursor starts
// from the beginning of the table.
func (b *Postgres) FetchPage(ctx context.Context, req PageRequest) (*PageResult, error) {
	if b.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	if req.PageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", req.PageSize)
	}

	schema, table := SplitTableID(req.TableID)
	if schema == "" {
		schema = "public"
	}
	cols, err := b.columnNames(ctx, schema, table)
	if err != nil {
		return nil, err
	}

	where, args := pgRowFilter(cols, searchTerms(req.Query), 1)
	next := len(args) + 1

	if req.Cursor != "" {
		where = fmt.Sprintf("%s AND ctid > $%d::tid", where, next)
		args = append(args, req.Cursor)
		next++
	}
	args = append(args, req.PageSize+1)

	q := fmt.Sprintf(`SELECT ctid::text, * FROM %s.%s WHERE %s ORDER BY ctid LIMIT $%d`,
		quoteIdent(schema), quoteIdent(table), where, next)
	rows, err := b.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page for %s: %w", req.TableID, err)
	}
	defer func() { _ = rows.Close() }()

	fetched, err := scanRows(rows, true, req.TableID, 0)
	if err != nil {
		return nil, err
	}

	hasMore := len(fetched) > req.PageSize
	if hasMore {
		fetched = fetched[:req.PageSize]
	}

	cursor := req.Cursor
	if len(fetched) > 0 {
		cursor = fetched[len(fetched)-1].ID
	}

	return &PageResult{
		Rows: fetched,
		Pagination: PaginationInfo{
			Cursor:   cursor,
			HasMore:  hasMore,
			Strategy: StrategyCursor,
		},
	}, nil
}

// ExpandTerm returns catalog names (tables and columns) containing the term.
func (b *Postgres) ExpandTerm(ctx context.Context, term string) ([]string, error) {
	if b.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	const limit = 8
	rows, err := b.db.QueryContext(ctx, `
		SELECT DISTINCT name FROM (
			SELECT table_name AS name FROM information_schema.tables
			WHERE table_schema NOT IN ('information_schema', 'pg_catalog')
			UNION
			SELECT column_name AS name FROM information_schema.columns
			WHERE table_schema NOT IN ('information_schema', 'pg_catalog')
		) names
		WHERE name ILIKE $1 ESCAPE '\'
		ORDER BY name
		LIMIT $2
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
func (b *Postgres) TableColumns(ctx context.Context, tableID string) ([]Column, error) {
	if b.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	schema, table := SplitTableID(tableID)
	if schema == "" {
		schema = "public"
	}

	rows, err := b.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
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

func (b *Postgres) columnNames(ctx context.Context, schema, table string) ([]string, error) {
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

var _ Backend = (*Postgres)(nil)
