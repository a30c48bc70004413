package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store the logger in context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// configExistsIn checks if a tablescout config file exists in the directory.
func configExistsIn(dir string) string {
	for _, name := range []string{"tablescout.yaml", "tablescout.yml"} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findConfigFile finds the config file to use.
// Priority: explicit path > upward search from the working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}

	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if found := configExistsIn(dir); found != "" {
			return found
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// Reset koanf for fresh load
	k = koanf.New(".")

	// 1. Load defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"connection.type": DefaultBackend,
		"history_path":    DefaultHistoryFile,
		"page_size":       DefaultPageSize,
		"output":          DefaultOutput,
		"verbose":         false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load environment variables (TABLESCOUT_ prefix)
	// Transform: TABLESCOUT_CONNECTION_TYPE -> connection.type
	if err := k.Load(env.Provider("TABLESCOUT_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "TABLESCOUT_"))
		if rest, ok := strings.CutPrefix(key, "connection_"); ok {
			return "connection." + rest
		}
		if rest, ok := strings.CutPrefix(key, "ui_"); ok {
			return "ui." + rest
		}
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			// Transform kebab-case to snake_case for config keys
			key := strings.ReplaceAll(f.Name, "-", "_")

			// Map the short CLI flag names onto the nested config keys.
			switch key {
			case "backend":
				return "connection.type", posflag.FlagVal(flags, f)
			case "database":
				return "connection.database", posflag.FlagVal(flags, f)
			case "host":
				return "connection.host", posflag.FlagVal(flags, f)
			case "db_port":
				return "connection.port", posflag.FlagVal(flags, f)
			case "user":
				return "connection.user", posflag.FlagVal(flags, f)
			case "history":
				return "history_path", posflag.FlagVal(flags, f)
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Resolve relative paths against the config file's directory
	projectRoot := "."
	if configFileUsed != "" {
		if abs, err := filepath.Abs(configFileUsed); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	} else if cwd, err := os.Getwd(); err == nil {
		projectRoot = cwd
	}
	cfg.ProjectRoot = projectRoot

	cfg.HistoryPath = resolvePathRelativeTo(cfg.HistoryPath, projectRoot)
	if cfg.Connection != nil && cfg.Connection.Type != "postgres" {
		cfg.Connection.Database = resolvePathRelativeTo(cfg.Connection.Database, projectRoot)
	}

	// Expand ${VAR} references in credentials
	expandConnectionEnvVars(cfg.Connection)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	currentConfig = &cfg
	return &cfg, nil
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger. This allows
// the commands package to retrieve the logger from context without creating
// an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}

// expandConnectionEnvVars expands environment variables in sensitive fields.
func expandConnectionEnvVars(c *ConnectionConfig) {
	if c == nil {
		return
	}
	c.Password = expandEnvVars(c.Password)
	c.User = expandEnvVars(c.User)
	c.Host = expandEnvVars(c.Host)
	c.Database = expandEnvVars(c.Database)
}
