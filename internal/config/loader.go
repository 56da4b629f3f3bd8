package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix is prepended to every environment override.
const envPrefix = "THREADLINE"

// Loader reads configuration with the precedence
// defaults < config file < THREADLINE_* env vars < Set overrides.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// SetConfigFile sets an explicit config file path. A missing explicit file
// is an error; a missing file on the search path is not.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Set overrides a key, e.g. from a CLI flag.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// ConfigFileUsed returns the config file that was loaded, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Load builds, expands and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	l.setup(cfg)

	if err := l.readConfigFile(); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	expandPaths(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}

// settings lists every key with its default. Defaults and env bindings are
// both derived from it, so a key added here is overridable everywhere.
func settings(cfg *Config) map[string]any {
	return map[string]any{
		"global.data_dir":   cfg.Global.DataDir,
		"global.config_dir": cfg.Global.ConfigDir,

		"database.path":            cfg.Database.Path,
		"database.busy_timeout_ms": cfg.Database.BusyTimeoutMs,

		"logging.level":         cfg.Logging.Level,
		"logging.format":        cfg.Logging.Format,
		"logging.enable_caller": cfg.Logging.EnableCaller,
		"logging.file":          cfg.Logging.File,

		"engine.search_window":       cfg.Engine.SearchWindow,
		"engine.window_margin":       cfg.Engine.WindowMargin,
		"engine.max_prepare_retries": cfg.Engine.MaxPrepareRetries,
		"engine.prepare_retry_delay": cfg.Engine.PrepareRetryDelay,
		"engine.max_ancestor_depth":  cfg.Engine.MaxAncestorDepth,
		"engine.page_size":           cfg.Engine.PageSize,

		"platform.kind":                string(cfg.Platform.Kind),
		"platform.base_url":            cfg.Platform.BaseURL,
		"platform.token_env":           cfg.Platform.TokenEnv,
		"platform.timeout":             cfg.Platform.Timeout,
		"platform.user_agent":          cfg.Platform.UserAgent,
		"platform.requests_per_second": cfg.Platform.RequestsPerSecond,
		"platform.burst":               cfg.Platform.Burst,
	}
}

// EnvVar returns the environment variable overriding key:
// database.path -> THREADLINE_DATABASE_PATH.
func EnvVar(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func (l *Loader) setup(cfg *Config) {
	v := l.v
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		v.AddConfigPath(filepath.Join(xdgConfig, "threadline"))
	}
	if homeDir, _ := os.UserHomeDir(); homeDir != "" {
		v.AddConfigPath(filepath.Join(homeDir, ".config", "threadline"))
	}
	v.AddConfigPath(".")

	// Unmarshal only sees env vars for keys that are bound explicitly.
	for key, value := range settings(cfg) {
		v.SetDefault(key, value)
		_ = v.BindEnv(key, EnvVar(key))
	}
}

func (l *Loader) readConfigFile() error {
	if l.configFile != "" {
		if _, err := os.Stat(l.configFile); err != nil {
			return err
		}
		l.v.SetConfigFile(l.configFile)
	}

	err := l.v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}

// expandTilde expands a leading ~ to the user's home directory.
func expandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

func expandPaths(cfg *Config) {
	cfg.Global.DataDir = expandTilde(cfg.Global.DataDir)
	cfg.Global.ConfigDir = expandTilde(cfg.Global.ConfigDir)
	cfg.Database.Path = expandTilde(cfg.Database.Path)
	cfg.Logging.File = expandTilde(cfg.Logging.File)
}
