// Package state persists search history with database migrations.
package state

import (
	"time"

	"github.com/tablescout/tablescout/pkg/query"
)

// SavedSearch is one remembered search.
type SavedSearch struct {
	ID string `json:"id"`
	// Text is the query as the user typed it.
	Text string `json:"text"`
	// Query is the annotated query at the time of the search.
	Query query.AST `json:"query"`
	// Backend is the backend type the search ran against.
	Backend string `json:"backend"`
	// Tables is how many tables matched.
	Tables    int       `json:"tables"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the interface for search history persistence.
type Store interface {
	// SaveSearch records a search and returns it with ID and timestamp set.
	SaveSearch(text string, ast query.AST, backendType string, tables int) (*SavedSearch, error)

	// GetSearch retrieves a saved search by ID. Returns nil when not found.
	GetSearch(id string) (*SavedSearch, error)

	// ListRecent returns the most recent searches, newest first.
	ListRecent(limit int) ([]*SavedSearch, error)

	// DeleteSearch removes a saved search. Deleting an unknown ID is not
	// an error.
	DeleteSearch(id string) error

	// PruneOlderThan removes searches recorded before the cutoff and
	// returns how many were removed.
	PruneOlderThan(cutoff time.Time) (int64, error)

	// Close closes the store.
	Close() error
}
