package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tablescout/tablescout/pkg/query"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates a new SQLite history store instance.
func NewSQLiteStore() *SQLiteStore {
	return &SQLiteStore{}
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveSearch records a search and returns it with ID and timestamp set.
func (s *SQLiteStore) SaveSearch(text string, ast query.AST, backendType string, tables int) (*SavedSearch, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	astJSON, err := query.MarshalAST(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	saved := &SavedSearch{
		ID:        uuid.New().String(),
		Text:      text,
		Query:     ast,
		Backend:   backendType,
		Tables:    tables,
		CreatedAt: time.Now().UTC(),
	}

	_, err = s.db.Exec(
		`INSERT INTO searches (id, text, query_json, backend, tables, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		saved.ID, saved.Text, string(astJSON), saved.Backend, saved.Tables, saved.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save search: %w", err)
	}
	return saved, nil
}

// GetSearch retrieves a saved search by ID. Returns nil when not found.
func (s *SQLiteStore) GetSearch(id string) (*SavedSearch, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	row := s.db.QueryRow(
		`SELECT id, text, query_json, backend, tables, created_at FROM searches WHERE id = ?`, id)
	saved, err := scanSearch(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return saved, err
}

// ListRecent returns the most recent searches, newest first.
func (s *SQLiteStore) ListRecent(limit int) ([]*SavedSearch, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT id, text, query_json, backend, tables, created_at FROM searches
		 ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list searches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*SavedSearch
	for rows.Next() {
		saved, err := scanSearch(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, saved)
	}
	return out, rows.Err()
}

func scanSearch(scan func(...any) error) (*SavedSearch, error) {
	saved := &SavedSearch{}
	var astJSON string
	if err := scan(&saved.ID, &saved.Text, &astJSON, &saved.Backend, &saved.Tables, &saved.CreatedAt); err != nil {
		return nil, err
	}
	// A malformed stored query degrades to empty, same as DecodeParam.
	saved.Query = query.DecodeParam(astJSON)
	return saved, nil
}

// DeleteSearch removes a saved search. Deleting an unknown ID is not an error.
func (s *SQLiteStore) DeleteSearch(id string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if _, err := s.db.Exec(`DELETE FROM searches WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete search: %w", err)
	}
	return nil
}

// PruneOlderThan removes searches recorded before the cutoff.
func (s *SQLiteStore) PruneOlderThan(cutoff time.Time) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not opened")
	}
	res, err := s.db.Exec(`DELETE FROM searches WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune searches: %w", err)
	}
	return res.RowsAffected()
}

var _ Store = (*SQLiteStore)(nil)
