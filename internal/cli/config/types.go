// Package config provides configuration management for the tablescout CLI.
package config

import (
	"strings"

	"github.com/tablescout/tablescout/internal/backend"
)

// UIConfig holds configuration for the UI server.
type UIConfig struct {
	Port          int    `koanf:"port"`
	Watch         bool   `koanf:"watch"`
	Dev           bool   `koanf:"dev"`
	SessionSecret string `koanf:"session_secret"`
}

// DefaultUIConfig returns a UIConfig with default values.
func DefaultUIConfig() *UIConfig {
	return &UIConfig{
		Port:  8765,
		Watch: true,
		Dev:   false,
	}
}

// GetUIConfig returns the UI config with defaults applied for any unset values.
func (c *Config) GetUIConfig() *UIConfig {
	if c.UI == nil {
		return DefaultUIConfig()
	}
	ui := c.UI
	if ui.Port == 0 {
		ui.Port = 8765
	}
	return ui
}

// ConnectionConfig describes the database to search.
type ConnectionConfig struct {
	// Type selects the backend ("sqlite", "duckdb", "postgres").
	Type string `koanf:"type"`
	// Database is the file path for file-based backends (":memory:" works)
	// or the database name for server backends. A full DSN also works for
	// postgres.
	Database string            `koanf:"database"`
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	User     string            `koanf:"user"`
	Password string            `koanf:"password"`
	Options  map[string]string `koanf:"options"`
}

// Config holds all CLI configuration options.
type Config struct {
	Connection  *ConnectionConfig `koanf:"connection"`
	HistoryPath string            `koanf:"history_path"`
	PageSize    int               `koanf:"page_size"`
	Schemas     []string          `koanf:"schemas"`
	TableTypes  []string          `koanf:"table_types"`
	Verbose     bool              `koanf:"verbose"`
	Output      string            `koanf:"output"`
	UI          *UIConfig         `koanf:"ui"`

	// ProjectRoot is where the config file was found; relative paths
	// resolve against it.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultBackend     = "sqlite"
	DefaultHistoryFile = ".tablescout/history.db"
	DefaultPageSize    = 50
	DefaultOutput      = "table"
)

// BackendConfig translates the connection settings into a backend config.
func (c *Config) BackendConfig() backend.Config {
	conn := c.Connection
	if conn == nil {
		conn = &ConnectionConfig{Type: DefaultBackend}
	}

	cfg := backend.Config{
		Type:     conn.Type,
		Host:     conn.Host,
		Port:     conn.Port,
		Username: conn.User,
		Password: conn.Password,
		Options:  conn.Options,
	}
	if cfg.Type == "" {
		cfg.Type = DefaultBackend
	}

	// File backends take the database as a path; postgres takes it as the
	// database name unless it looks like a DSN.
	switch cfg.Type {
	case "postgres":
		if isDSN(conn.Database) {
			cfg.Path = conn.Database
		} else {
			cfg.Database = conn.Database
		}
	default:
		cfg.Path = conn.Database
	}
	return cfg
}

// Filters returns the catalog filters configured for searches.
func (c *Config) Filters() backend.Filters {
	return backend.Filters{Schemas: c.Schemas, TableTypes: c.TableTypes}
}

func isDSN(s string) bool {
	return strings.HasPrefix(s, "postgres://") || strings.HasPrefix(s, "postgresql://")
}
