// Package backend defines the contract between the browse core and the
// databases it searches. A Backend answers three questions: which tables
// match a query, what is the next page of matching rows for one table, and
// what variants exist for a term. Concrete implementations live alongside
// this file; the core treats cursors and the pagination strategy as opaque.
package backend

import (
	"context"
	"strings"

	"github.com/tablescout/tablescout/pkg/query"
)

// Strategy identifies which pagination scheme issued a cursor. It is
// carried opaquely through the cache and echoed back on the next fetch.
type Strategy string

// Pagination strategies.
const (
	// StrategyOffset encodes the next row offset in the cursor.
	StrategyOffset Strategy = "offset"
	// StrategyCursor encodes a keyset position in the cursor.
	StrategyCursor Strategy = "cursor"
)

// Row is one result row. ID is the backend's row identifier; duplicate IDs
// can legitimately appear across overlapping pages and are collapsed by the
// display layer, never by the cache.
type Row struct {
	ID     string         `json:"id"`
	Values map[string]any `json:"values"`
}

// PaginationInfo describes how to continue fetching a table's rows.
type PaginationInfo struct {
	Cursor   string   `json:"cursor,omitempty"`
	HasMore  bool     `json:"hasMore"`
	Strategy Strategy `json:"strategy,omitempty"`
}

// Filters restricts a search to parts of the catalog.
type Filters struct {
	Schemas    []string `json:"schemas,omitempty"`
	TableTypes []string `json:"tableTypes,omitempty"` // "table", "view"
}

// Allows reports whether the filter set admits the given schema and type.
// Empty filter lists admit everything.
func (f Filters) Allows(schema, tableType string) bool {
	if len(f.Schemas) > 0 && !containsFold(f.Schemas, schema) {
		return false
	}
	if len(f.TableTypes) > 0 && !containsFold(f.TableTypes, tableType) {
		return false
	}
	return true
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// TableMatch is one table in a search result.
type TableMatch struct {
	TableID string `json:"tableId"`
	Schema  string `json:"schema"`
	Name    string `json:"name"`
	Type    string `json:"type"` // "table" or "view"
}

// Column describes one column of a table.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// PageRequest asks for the next page of matching rows for one table.
// An empty Cursor requests the first page.
type PageRequest struct {
	TableID  string
	Cursor   string
	PageSize int
	Query    query.AST
	Filters  Filters
}

// PageResult is one fetched page. The backend returns exactly PageSize
// matching rows unless the table is exhausted, and HasMore is authoritative.
type PageResult struct {
	Rows       []Row
	Pagination PaginationInfo
}

// Config holds connection settings for a backend.
type Config struct {
	// Type selects the backend implementation ("sqlite", "duckdb", "postgres").
	Type string
	// Path is the database file for file-based backends; ":memory:" works.
	Path string

	Host     string
	Port     int
	Database string
	Username string
	Password string

	// Options carries driver-specific settings.
	Options map[string]string
}

// Backend is the search collaborator the browse core talks to.
type Backend interface {
	// Connect establishes the connection described by cfg.
	Connect(ctx context.Context, cfg Config) error

	// Close releases the connection.
	Close() error

	// Name returns the backend type name.
	Name() string

	// SearchTables returns the tables whose name, columns, or contents
	// match every clause of the query, restricted by the filters.
	SearchTables(ctx context.Context, ast query.AST, f Filters) ([]TableMatch, error)

	// FetchPage returns the next page of matching rows for one table.
	FetchPage(ctx context.Context, req PageRequest) (*PageResult, error)

	// ExpandTerm returns known variants of a term (matching table and
	// column names). Used only to annotate the UI.
	ExpandTerm(ctx context.Context, term string) ([]string, error)

	// TableColumns returns the column metadata for a table.
	TableColumns(ctx context.Context, tableID string) ([]Column, error)
}

// MakeTableID builds the canonical "schema.name" table identifier.
func MakeTableID(schema, name string) string {
	if schema == "" {
		return name
	}
	return schema + "." + name
}

// SplitTableID splits a canonical table identifier into schema and name.
// An identifier without a dot has an empty schema.
func SplitTableID(tableID string) (schema, name string) {
	if i := strings.IndexByte(tableID, '.'); i >= 0 {
		return tableID[:i], tableID[i+1:]
	}
	return "", tableID
}
