package config

import (
	"fmt"

	"github.com/tablescout/tablescout/internal/backend"
)

// Validate checks the loaded configuration for problems that would only
// surface later as confusing runtime errors.
func Validate(cfg *Config) error {
	bc := cfg.BackendConfig()

	if _, ok := backend.Get(bc.Type); !ok {
		return &backend.UnknownBackendError{Type: bc.Type, Available: backend.List()}
	}

	if bc.Type == "postgres" && bc.Path == "" && bc.Database == "" {
		return fmt.Errorf("postgres backend requires a database name or connection string")
	}

	if cfg.PageSize < 0 || cfg.PageSize > 1000 {
		return fmt.Errorf("page_size must be between 1 and 1000, got %d", cfg.PageSize)
	}

	for _, tt := range cfg.TableTypes {
		if tt != "table" && tt != "view" {
			return fmt.Errorf("table_types entries must be \"table\" or \"view\", got %q", tt)
		}
	}

	return nil
}
