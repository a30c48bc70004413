// Package search provides the HTTP handlers for searching tables and paging
// their rows.
package search

import (
	"encoding/gob"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/tablescout/tablescout/internal/pagecache"
	"github.com/tablescout/tablescout/internal/searcher"
	"github.com/tablescout/tablescout/internal/state"
	"github.com/tablescout/tablescout/internal/ui/notifier"
	"github.com/tablescout/tablescout/internal/visibility"
)

const sessionName = "tablescout"

// Session values are gob-encoded into the cookie; slice-typed prefs need
// their concrete type registered.
func init() {
	gob.Register([]string(nil))
}

// Handlers provides HTTP handlers for the search feature.
type Handlers struct {
	searcher     *searcher.Searcher
	cache        *pagecache.Cache
	visible      *visibility.Set
	history      state.Store // nil disables history
	sessionStore sessions.Store
	notifier     *notifier.Notifier
	backendName  string
	logger       *slog.Logger
}

// NewHandlers creates a new Handlers instance. history may be nil.
func NewHandlers(
	s *searcher.Searcher,
	cache *pagecache.Cache,
	visible *visibility.Set,
	history state.Store,
	sessionStore sessions.Store,
	notify *notifier.Notifier,
	backendName string,
	logger *slog.Logger,
) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{
		searcher:     s,
		cache:        cache,
		visible:      visible,
		history:      history,
		sessionStore: sessionStore,
		notifier:     notify,
		backendName:  backendName,
		logger:       logger,
	}
}

// Search runs a search for the submitted query text.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	var signals SearchSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		writeError(w, http.StatusBadRequest, "failed to read signals: "+err.Error())
		return
	}

	res, err := h.searcher.Search(r.Context(), signals.Text)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	resp := SearchResponse{
		Query:      res.Query,
		Text:       signals.Text,
		Tables:     res.Tables,
		Generation: res.Generation.String(),
	}

	if h.history != nil {
		saved, err := h.history.SaveSearch(signals.Text, res.Query, h.backendName, len(res.Tables))
		if err != nil {
			h.logger.Warn("failed to save search history", "error", err)
		} else {
			resp.SearchID = saved.ID
		}
	}

	h.notifier.Broadcast()
	writeJSON(w, http.StatusOK, resp)
}

// Visible syncs the pending set to the tables the client displays and loads
// their first pages.
func (h *Handlers) Visible(w http.ResponseWriter, r *http.Request) {
	var signals VisibleSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		writeError(w, http.StatusBadRequest, "failed to read signals: "+err.Error())
		return
	}

	if err := h.searcher.FetchVisible(r.Context(), signals.TableIDs); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	h.notifier.Broadcast()
	writeJSON(w, http.StatusOK, PendingResponse{Pending: h.visible.Snapshot()})
}

// TableRows returns the rows loaded so far for one table.
func (h *Handlers) TableRows(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "tableID")

	p, ok := h.cache.PaginationState(tableID)
	if !ok {
		writeError(w, http.StatusNotFound, "table not loaded: "+tableID)
		return
	}

	writeJSON(w, http.StatusOK, TableRowsResponse{
		TableID:     tableID,
		Rows:        h.cache.LoadedRecords(tableID),
		Pagination:  p,
		LoadingMore: h.cache.IsTableLoadingMore(tableID),
	})
}

// LoadMore fetches the next page for one table and returns all loaded rows.
func (h *Handlers) LoadMore(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "tableID")

	_, err := h.searcher.LoadMore(r.Context(), tableID)
	switch {
	case err == pagecache.ErrLoadInFlight:
		writeError(w, http.StatusConflict, "load already in flight")
		return
	case err == pagecache.ErrUnknownTable:
		writeError(w, http.StatusNotFound, "table not loaded: "+tableID)
		return
	case err == pagecache.ErrNoMoreRows:
		// Fully loaded; a load-more is a no-op, answer with the full state.
	case err != nil:
		writeError(w, http.StatusBadGateway, err.Error())
		return
	default:
		h.notifier.Broadcast()
	}

	p, _ := h.cache.PaginationState(tableID)
	writeJSON(w, http.StatusOK, TableRowsResponse{
		TableID:    tableID,
		Rows:       h.cache.LoadedRecords(tableID),
		Pagination: p,
	})
}

// Pending lists the tables still waiting to be displayed.
func (h *Handlers) Pending(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, PendingResponse{Pending: h.visible.Snapshot()})
}

// History lists recent searches, newest first.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	recent, err := h.history.ListRecent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recent == nil {
		recent = []*state.SavedSearch{}
	}
	writeJSON(w, http.StatusOK, recent)
}

// HistoryDelete removes one saved search.
func (h *Handlers) HistoryDelete(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}
	if err := h.history.DeleteSearch(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Prefs returns the session's display preferences.
func (h *Handlers) Prefs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.loadPrefs(r))
}

// UpdatePrefs stores display preferences in the session.
func (h *Handlers) UpdatePrefs(w http.ResponseWriter, r *http.Request) {
	prefs := h.loadPrefs(r)
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid preferences: "+err.Error())
		return
	}
	if prefs.PageSize <= 0 || prefs.PageSize > 500 {
		prefs.PageSize = DefaultPrefs().PageSize
	}

	session, _ := h.sessionStore.Get(r, sessionName)
	session.Values["pageSize"] = prefs.PageSize
	session.Values["density"] = prefs.Density
	session.Values["tableOrder"] = prefs.TableOrder
	session.Values["collapsed"] = prefs.Collapsed
	if err := session.Save(r, w); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *Handlers) loadPrefs(r *http.Request) ViewPrefs {
	prefs := DefaultPrefs()
	session, err := h.sessionStore.Get(r, sessionName)
	if err != nil {
		return prefs
	}
	if v, ok := session.Values["pageSize"].(int); ok && v > 0 {
		prefs.PageSize = v
	}
	if v, ok := session.Values["density"].(string); ok && v != "" {
		prefs.Density = v
	}
	if v, ok := session.Values["tableOrder"].([]string); ok {
		prefs.TableOrder = v
	}
	if v, ok := session.Values["collapsed"].([]string); ok {
		prefs.Collapsed = v
	}
	return prefs
}

// UpdatesSSE streams a refresh ping to the client whenever results change.
func (h *Handlers) UpdatesSSE(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	ch := h.notifier.Subscribe()
	defer h.notifier.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ch:
			if err := sse.ExecuteScript(`window.dispatchEvent(new CustomEvent('results-updated'))`); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: strings.TrimSpace(msg)})
}
