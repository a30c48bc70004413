// Package commands implements the tablescout subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tablescout/tablescout/internal/backend"
	"github.com/tablescout/tablescout/internal/cli/config"
	"github.com/tablescout/tablescout/internal/pagecache"
	"github.com/tablescout/tablescout/internal/searcher"
	"github.com/tablescout/tablescout/internal/state"
	"github.com/tablescout/tablescout/internal/visibility"
)

// session wires a connected backend to the search pipeline for the duration
// of one command.
type session struct {
	cfg      *config.Config
	backend  backend.Backend
	cache    *pagecache.Cache
	visible  *visibility.Set
	searcher *searcher.Searcher
	history  *state.SQLiteStore // nil when history is disabled
	logger   *slog.Logger
}

// newSession connects the configured backend and, when withHistory is set,
// opens the history store.
func newSession(ctx context.Context, withHistory bool) (*session, error) {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	logger := config.GetLogger(ctx)

	b, err := backend.New(cfg.BackendConfig(), logger)
	if err != nil {
		return nil, err
	}
	if err := b.Connect(ctx, cfg.BackendConfig()); err != nil {
		return nil, err
	}

	cache := pagecache.New()
	visible := visibility.New(nil)
	s := searcher.New(b, cache, visible, searcher.Options{
		PageSize: cfg.PageSize,
		Filters:  cfg.Filters(),
		Logger:   logger,
	})

	sess := &session{
		cfg:      cfg,
		backend:  b,
		cache:    cache,
		visible:  visible,
		searcher: s,
		logger:   logger,
	}

	if withHistory && cfg.HistoryPath != "" {
		history, err := openHistory(cfg.HistoryPath)
		if err != nil {
			// History is a convenience; a broken store must not block search.
			logger.Warn("search history unavailable", "error", err)
		} else {
			sess.history = history
		}
	}

	return sess, nil
}

// Close releases the backend connection and the history store.
func (s *session) Close() {
	if s.history != nil {
		_ = s.history.Close()
	}
	_ = s.backend.Close()
}

// record saves a finished search to history, if enabled.
func (s *session) record(text string, res *searcher.Result) {
	if s.history == nil {
		return
	}
	if _, err := s.history.SaveSearch(text, res.Query, s.backend.Name(), len(res.Tables)); err != nil {
		s.logger.Warn("failed to save search history", "error", err)
	}
}

// historyStore returns the session's history as the Store interface. The
// typed-nil check matters: a nil *SQLiteStore in a non-nil interface would
// defeat the callers' nil checks.
func historyStore(s *session) state.Store {
	if s.history == nil {
		return nil
	}
	return s.history
}

// openHistory opens and migrates the history store, creating its directory.
func openHistory(path string) (*state.SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	store := state.NewSQLiteStore()
	if err := store.Open(path); err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}
