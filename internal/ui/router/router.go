// Package router sets up HTTP routes for the UI server.
package router

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/tablescout/tablescout/internal/pagecache"
	"github.com/tablescout/tablescout/internal/searcher"
	"github.com/tablescout/tablescout/internal/state"
	searchFeature "github.com/tablescout/tablescout/internal/ui/features/search"
	"github.com/tablescout/tablescout/internal/ui/notifier"
	"github.com/tablescout/tablescout/internal/visibility"
)

// Deps carries everything the routes need.
type Deps struct {
	Searcher     *searcher.Searcher
	Cache        *pagecache.Cache
	Visible      *visibility.Set
	History      state.Store
	SessionStore *sessions.CookieStore
	Notifier     *notifier.Notifier
	BackendName  string
	Logger       *slog.Logger
	IsDev        bool
}

// SetupRoutes configures all routes for the UI server.
func SetupRoutes(router chi.Router, deps Deps) error {
	// Hot reload endpoint for dev mode
	if deps.IsDev {
		setupReload(router)
	}

	return searchFeature.SetupRoutes(
		router,
		deps.Searcher,
		deps.Cache,
		deps.Visible,
		deps.History,
		deps.SessionStore,
		deps.Notifier,
		deps.BackendName,
		deps.Logger,
	)
}

func setupReload(router chi.Router) {
	reloadChan := make(chan struct{}, 1)
	var hotReloadOnce sync.Once

	router.Get("/reload", func(w http.ResponseWriter, r *http.Request) {
		sse := datastar.NewSSE(w, r)
		reload := func() { _ = sse.ExecuteScript("window.location.reload()") }
		hotReloadOnce.Do(reload)
		select {
		case <-reloadChan:
			reload()
		case <-r.Context().Done():
		}
	})

	router.Get("/hotreload", func(w http.ResponseWriter, _ *http.Request) {
		select {
		case reloadChan <- struct{}{}:
		default:
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}
