package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tablescout.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	ResetConfig()
	t.Cleanup(ResetConfig)

	path := writeConfig(t, "")
	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultPageSize, cfg.PageSize)
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Equal(t, "sqlite", cfg.BackendConfig().Type)
	assert.Equal(t, path, GetConfigFileUsed())
}

func TestLoadConfigFromFile(t *testing.T) {
	ResetConfig()
	t.Cleanup(ResetConfig)

	path := writeConfig(t, `
connection:
  type: duckdb
  database: warehouse.db
page_size: 25
schemas: [main]
table_types: [table]
ui:
  port: 9000
  watch: false
`)
	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	bc := cfg.BackendConfig()
	assert.Equal(t, "duckdb", bc.Type)
	// Relative paths resolve against the config file directory.
	assert.Equal(t, filepath.Join(filepath.Dir(path), "warehouse.db"), bc.Path)
	assert.Equal(t, 25, cfg.PageSize)
	assert.Equal(t, []string{"main"}, cfg.Filters().Schemas)
	assert.Equal(t, 9000, cfg.GetUIConfig().Port)
	assert.False(t, cfg.GetUIConfig().Watch)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	ResetConfig()
	t.Cleanup(ResetConfig)

	path := writeConfig(t, "connection:\n  type: sqlite\n")
	t.Setenv("TABLESCOUT_CONNECTION_TYPE", "duckdb")
	t.Setenv("TABLESCOUT_PAGE_SIZE", "10")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "duckdb", cfg.BackendConfig().Type)
	assert.Equal(t, 10, cfg.PageSize)
}

func TestLoadConfigFlagsWin(t *testing.T) {
	ResetConfig()
	t.Cleanup(ResetConfig)

	path := writeConfig(t, "connection:\n  type: sqlite\npage_size: 25\n")
	t.Setenv("TABLESCOUT_CONNECTION_TYPE", "duckdb")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("backend", "", "")
	flags.Int("page-size", 0, "")
	require.NoError(t, flags.Parse([]string{"--backend=postgres", "--page-size=5"}))

	// Postgres needs a database; supply one via env.
	t.Setenv("TABLESCOUT_CONNECTION_DATABASE", "analytics")

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.BackendConfig().Type)
	assert.Equal(t, "analytics", cfg.BackendConfig().Database)
	assert.Equal(t, 5, cfg.PageSize)
}

func TestLoadConfigExpandsCredentials(t *testing.T) {
	ResetConfig()
	t.Cleanup(ResetConfig)

	t.Setenv("TS_TEST_PASSWORD", "hunter2")
	path := writeConfig(t, `
connection:
  type: postgres
  database: analytics
  user: scout
  password: ${TS_TEST_PASSWORD}
`)
	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.BackendConfig().Password)
}

func TestLoadConfigPostgresDSN(t *testing.T) {
	ResetConfig()
	t.Cleanup(ResetConfig)

	path := writeConfig(t, `
connection:
  type: postgres
  database: postgres://scout:pw@db:5432/analytics
`)
	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	bc := cfg.BackendConfig()
	assert.Equal(t, "postgres://scout:pw@db:5432/analytics", bc.Path)
	assert.Empty(t, bc.Database)
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	ResetConfig()
	t.Cleanup(ResetConfig)

	path := writeConfig(t, "connection:\n  type: oracle\n")
	_, err := LoadConfig(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestValidateRejectsBadTableTypes(t *testing.T) {
	cfg := &Config{
		Connection: &ConnectionConfig{Type: "sqlite"},
		TableTypes: []string{"sequence"},
	}
	assert.Error(t, Validate(cfg))
}

func TestValidateRejectsPostgresWithoutDatabase(t *testing.T) {
	cfg := &Config{Connection: &ConnectionConfig{Type: "postgres"}}
	assert.Error(t, Validate(cfg))
}
