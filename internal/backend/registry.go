package backend

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func(*slog.Logger) Backend)
)

// Register adds a backend factory to the registry. Called by backend
// implementations in their init() functions.
func Register(name string, factory func(*slog.Logger) Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Get retrieves a backend factory by name.
func Get(name string) (func(*slog.Logger) Backend, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// List returns all registered backend names, sorted.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownBackendError is returned when a config names a backend type that
// was never registered.
type UnknownBackendError struct {
	Type      string
	Available []string
}

func (e *UnknownBackendError) Error() string {
	return fmt.Sprintf("unknown backend type %q (available: %s)",
		e.Type, strings.Join(e.Available, ", "))
}

// New creates a backend instance for the config's type. A nil logger uses
// the discard logger.
func New(cfg Config, logger *slog.Logger) (Backend, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("backend type not specified")
	}
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, &UnknownBackendError{Type: cfg.Type, Available: List()}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return factory(logger), nil
}
