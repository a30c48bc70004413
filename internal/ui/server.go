// Package ui provides the web server for browsing search results.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	"github.com/tablescout/tablescout/internal/pagecache"
	"github.com/tablescout/tablescout/internal/searcher"
	"github.com/tablescout/tablescout/internal/state"
	"github.com/tablescout/tablescout/internal/ui/notifier"
	"github.com/tablescout/tablescout/internal/ui/router"
	"github.com/tablescout/tablescout/internal/visibility"
)

// Server is the main UI server.
type Server struct {
	searcher     *searcher.Searcher
	cache        *pagecache.Cache
	visible      *visibility.Set
	history      state.Store
	sessionStore *sessions.CookieStore
	port         int
	watchPath    string
	backendName  string
	dev          bool
	logger       *slog.Logger
	notifier     *notifier.Notifier
}

// Config holds configuration for the UI server.
type Config struct {
	Searcher *searcher.Searcher
	Cache    *pagecache.Cache
	Visible  *visibility.Set
	// History may be nil to disable search history.
	History state.Store
	Port    int
	// WatchPath is the database file to watch for changes; empty disables
	// watching. A change invalidates all cached pages.
	WatchPath     string
	BackendName   string
	Dev           bool
	SessionSecret string
	Logger        *slog.Logger
}

// NewServer creates a new UI server instance.
func NewServer(cfg Config) *Server {
	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.MaxAge(86400 * 30) // 30 days
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Server{
		searcher:     cfg.Searcher,
		cache:        cfg.Cache,
		visible:      cfg.Visible,
		history:      cfg.History,
		sessionStore: sessionStore,
		port:         cfg.Port,
		watchPath:    cfg.WatchPath,
		backendName:  cfg.BackendName,
		dev:          cfg.Dev,
		logger:       logger,
		notifier:     notifier.New(),
	}
}

// Serve starts the UI server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting UI server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	err := router.SetupRoutes(r, router.Deps{
		Searcher:     s.searcher,
		Cache:        s.cache,
		Visible:      s.visible,
		History:      s.history,
		SessionStore: s.sessionStore,
		Notifier:     s.notifier,
		BackendName:  s.backendName,
		Logger:       s.logger,
		IsDev:        s.dev,
	})
	if err != nil {
		return fmt.Errorf("failed to setup routes: %w", err)
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start database watcher if enabled
	if s.watchPath != "" {
		eg.Go(func() error {
			return s.watchDatabase(egctx)
		})
	}

	// Start HTTP server
	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down UI server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Notifier returns the server's notifier for SSE updates.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

// watchDatabase watches the database file and invalidates cached pages when
// it changes. SQLite writes through -wal/-journal siblings, so the whole
// parent directory is watched and events are filtered by base name.
func (s *Server) watchDatabase(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(s.watchPath)
	base := filepath.Base(s.watchPath)
	if err := watcher.Add(dir); err != nil {
		s.logger.Error("failed to watch database directory", "dir", dir, "error", err)
		// Don't fail - continue without watching
		<-ctx.Done()
		return nil
	}

	// Debounce timer
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case event := <-watcher.Events:
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}

			name := filepath.Base(event.Name)
			if name != base && name != base+"-wal" && name != base+"-journal" {
				continue
			}

			// Debounce
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
				s.logger.Debug("database changed, invalidating cached pages", "file", event.Name)
				s.cache.ResetAll()
				s.notifier.Broadcast()
			})

		case err := <-watcher.Errors:
			s.logger.Error("watcher error", "error", err)
		}
	}
}
