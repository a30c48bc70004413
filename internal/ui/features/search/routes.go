package search

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/tablescout/tablescout/internal/pagecache"
	"github.com/tablescout/tablescout/internal/searcher"
	"github.com/tablescout/tablescout/internal/state"
	"github.com/tablescout/tablescout/internal/ui/notifier"
	"github.com/tablescout/tablescout/internal/visibility"
)

// SetupRoutes registers the search feature routes.
func SetupRoutes(
	router chi.Router,
	s *searcher.Searcher,
	cache *pagecache.Cache,
	visible *visibility.Set,
	history state.Store,
	sessionStore sessions.Store,
	notify *notifier.Notifier,
	backendName string,
	logger *slog.Logger,
) error {
	handlers := NewHandlers(s, cache, visible, history, sessionStore, notify, backendName, logger)

	router.Route("/api", func(r chi.Router) {
		r.Post("/search", handlers.Search)
		r.Get("/pending", handlers.Pending)

		r.Route("/tables", func(r chi.Router) {
			r.Post("/visible", handlers.Visible)
			r.Get("/{tableID}/rows", handlers.TableRows)
			r.Post("/{tableID}/more", handlers.LoadMore)
		})

		r.Get("/history", handlers.History)
		r.Delete("/history/{id}", handlers.HistoryDelete)

		r.Get("/prefs", handlers.Prefs)
		r.Put("/prefs", handlers.UpdatePrefs)
	})

	router.Get("/updates", handlers.UpdatesSSE)

	return nil
}
