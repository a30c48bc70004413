package search

import (
	"github.com/tablescout/tablescout/internal/backend"
	"github.com/tablescout/tablescout/pkg/query"
)

// SearchSignals represents the signals sent from the frontend for a search.
type SearchSignals struct {
	Text string `json:"text"`
}

// VisibleSignals carries the table IDs the client currently displays.
type VisibleSignals struct {
	TableIDs []string `json:"tableIds"`
}

// SearchResponse is the JSON body returned by the search endpoint.
type SearchResponse struct {
	Query      query.AST            `json:"query"`
	Text       string               `json:"text"`
	Tables     []backend.TableMatch `json:"tables"`
	Generation string               `json:"generation"`
	SearchID   string               `json:"searchId,omitempty"`
}

// TableRowsResponse is the JSON body for a table's loaded rows.
type TableRowsResponse struct {
	TableID     string                 `json:"tableId"`
	Rows        []backend.Row          `json:"rows"`
	Pagination  backend.PaginationInfo `json:"pagination"`
	LoadingMore bool                   `json:"loadingMore"`
}

// PendingResponse lists the tables still waiting to be displayed.
type PendingResponse struct {
	Pending []string `json:"pending"`
}

// ViewPrefs are the per-browser display preferences kept in the session.
type ViewPrefs struct {
	PageSize int    `json:"pageSize"`
	Density  string `json:"density"`
	// TableOrder overrides the catalog order of the result list; tables not
	// named keep their relative position after the named ones.
	TableOrder []string `json:"tableOrder,omitempty"`
	// Collapsed lists the tables whose row grids are folded away.
	Collapsed []string `json:"collapsed,omitempty"`
}

// DefaultPrefs returns the preferences for a fresh session.
func DefaultPrefs() ViewPrefs {
	return ViewPrefs{PageSize: 50, Density: "normal"}
}

type errorResponse struct {
	Error string `json:"error"`
}
