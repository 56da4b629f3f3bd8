// Package config handles threadline configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tOgg1/threadline/internal/models"
)

// Config is the root configuration structure for threadline.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Database settings for the local post store
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Engine tunes the reconstruction state machines.
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`

	// Platform selects and configures the remote backend.
	Platform PlatformConfig `yaml:"platform" mapstructure:"platform"`
}

// GlobalConfig contains global settings.
type GlobalConfig struct {
	// DataDir is where threadline stores its data (default: ~/.local/share/threadline).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/threadline).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path" mapstructure:"path"`

	// BusyTimeoutMs is how long to wait for a locked database (milliseconds).
	BusyTimeoutMs int `yaml:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`

	// File is an optional rotated log file.
	File string `yaml:"file" mapstructure:"file"`
}

// EngineConfig contains reconstruction engine settings.
type EngineConfig struct {
	// SearchWindow is how far back the recent-search backend retains posts.
	SearchWindow time.Duration `yaml:"search_window" mapstructure:"search_window"`

	// WindowMargin is subtracted from SearchWindow so requests never fall
	// just outside the retention boundary.
	WindowMargin time.Duration `yaml:"window_margin" mapstructure:"window_margin"`

	// MaxPrepareRetries bounds automatic conversation preparation retries.
	MaxPrepareRetries int `yaml:"max_prepare_retries" mapstructure:"max_prepare_retries"`

	// PrepareRetryDelay is the fixed delay between preparation retries.
	PrepareRetryDelay time.Duration `yaml:"prepare_retry_delay" mapstructure:"prepare_retry_delay"`

	// MaxAncestorDepth stops the ancestor walk after this many hops.
	MaxAncestorDepth int `yaml:"max_ancestor_depth" mapstructure:"max_ancestor_depth"`

	// PageSize is the max_results hint sent with each search page.
	PageSize int `yaml:"page_size" mapstructure:"page_size"`
}

// PlatformConfig configures the remote backend binding.
type PlatformConfig struct {
	// Kind is the backend: twitter or mastodon.
	Kind models.Platform `yaml:"kind" mapstructure:"kind"`

	// BaseURL overrides the API root (required for mastodon).
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// TokenEnv names the environment variable holding the bearer token.
	TokenEnv string `yaml:"token_env" mapstructure:"token_env"`

	// Timeout bounds each HTTP request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is sent with every request.
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`

	// RequestsPerSecond throttles outgoing requests (0 = unlimited).
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`

	// Burst is the number of requests allowed above the steady rate.
	Burst int `yaml:"burst" mapstructure:"burst"`
}

// DefaultEngineConfig returns the engine defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SearchWindow:      7 * 24 * time.Hour,
		WindowMargin:      5 * time.Minute,
		MaxPrepareRetries: 3,
		PrepareRetryDelay: 3 * time.Second,
		MaxAncestorDepth:  64,
		PageSize:          100,
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "threadline"),
			ConfigDir: filepath.Join(homeDir, ".config", "threadline"),
		},
		Database: DatabaseConfig{
			Path:          "", // Will be set to DataDir/posts.db
			BusyTimeoutMs: 5000,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
		Engine: DefaultEngineConfig(),
		Platform: PlatformConfig{
			Kind:              models.PlatformTwitter,
			TokenEnv:          "THREADLINE_TOKEN",
			Timeout:           15 * time.Second,
			UserAgent:         "threadline",
			RequestsPerSecond: 1,
			Burst:             5,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	validation := &models.ValidationErrors{}

	if c.Database.BusyTimeoutMs < 0 {
		validation.AddMessage("database.busy_timeout_ms", "must not be negative")
	}

	if c.Engine.SearchWindow <= 0 {
		validation.AddMessage("engine.search_window", "must be positive")
	}
	if c.Engine.WindowMargin < 0 || c.Engine.WindowMargin >= c.Engine.SearchWindow {
		validation.AddMessage("engine.window_margin", "must be between 0 and search_window")
	}
	if c.Engine.MaxPrepareRetries < 0 {
		validation.AddMessage("engine.max_prepare_retries", "must not be negative")
	}
	if c.Engine.PrepareRetryDelay < 0 {
		validation.AddMessage("engine.prepare_retry_delay", "must not be negative")
	}
	if c.Engine.MaxAncestorDepth < 1 {
		validation.AddMessage("engine.max_ancestor_depth", "must be at least 1")
	}
	if c.Engine.PageSize < 10 || c.Engine.PageSize > 100 {
		validation.AddMessage("engine.page_size", "must be between 10 and 100")
	}

	switch c.Platform.Kind {
	case models.PlatformTwitter:
	case models.PlatformMastodon:
		if strings.TrimSpace(c.Platform.BaseURL) == "" {
			validation.AddMessage("platform.base_url", "is required for mastodon")
		}
	default:
		validation.AddMessage("platform.kind", "must be one of twitter, mastodon")
	}
	if c.Platform.Timeout <= 0 {
		validation.AddMessage("platform.timeout", "must be positive")
	}
	if c.Platform.RequestsPerSecond < 0 {
		validation.AddMessage("platform.requests_per_second", "must not be negative")
	}
	if c.Platform.RequestsPerSecond > 0 && c.Platform.Burst < 1 {
		validation.AddMessage("platform.burst", "must be at least 1 when throttling")
	}

	return validation.Err()
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		filepath.Dir(c.DatabasePath()),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// DatabasePath returns the full database path.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Global.DataDir, "posts.db")
}

// PlatformToken reads the bearer token from the configured env var.
func (c *Config) PlatformToken() string {
	if c.Platform.TokenEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.Platform.TokenEnv))
}
