// Package config loads flowsync configuration from the project-level
// config file, XDG locations, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// Defaults applied when neither config file nor environment provide a
// value.
const (
	DefaultBranch        = "main"
	DefaultAPIURL        = "https://api.flowsync.dev/v1/sync"
	DefaultRetentionDays = 90
)

// DefaultExclusions are project-relative glob patterns the scanner and
// watcher skip.
var DefaultExclusions = []string{
	".dart_tool/**",
	"build/**",
	".flowsync/**",
	"**/*.g.dart",
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// APIConfig configures the remote sync endpoint.
type APIConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

// HistoryConfig configures the sync round log.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// Config represents the application configuration.
type Config struct {
	ProjectRoot string        `mapstructure:"project_root"`
	ProjectID   string        `mapstructure:"project_id"`
	Branch      string        `mapstructure:"branch"`
	Exclude     []string      `mapstructure:"exclude"`
	API         APIConfig     `mapstructure:"api"`
	History     HistoryConfig `mapstructure:"history"`
	Logging     LoggingConfig `mapstructure:"logging"`
}

// Load loads configuration for the given project root. Lookup order:
//   - <root>/flowsync.yaml
//   - $XDG_CONFIG_HOME/flowsync/config.yaml
//   - $HOME/.config/flowsync/config.yaml
//
// Environment variables are prefixed with FLOWSYNC_ (e.g.
// FLOWSYNC_PROJECT_ID, FLOWSYNC_API_TOKEN).
func Load(root string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("flowsync")
	v.SetConfigType("yaml")
	if root != "" {
		v.AddConfigPath(root)
	}

	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		v.AddConfigPath(filepath.Join(xdgConfigHome, "flowsync"))
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}
	v.AddConfigPath(filepath.Join(homeDir, ".config", "flowsync"))

	v.SetEnvPrefix("FLOWSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a registered default for AutomaticEnv to surface
	// env-only values through Unmarshal.
	v.SetDefault("project_root", root)
	v.SetDefault("project_id", "")
	v.SetDefault("branch", DefaultBranch)
	v.SetDefault("exclude", DefaultExclusions)
	v.SetDefault("api.url", DefaultAPIURL)
	v.SetDefault("api.token", "")
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", DefaultHistoryPath())
	v.SetDefault("history.retention_days", DefaultRetentionDays)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", map[string]string{
		"detector": "info",
		"watcher":  "warn",
		"scanner":  "info",
		"syncer":   "info",
	})

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is acceptable; defaults plus env apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.HasPrefix(cfg.ProjectRoot, "~") {
		cfg.ProjectRoot = filepath.Join(homeDir, cfg.ProjectRoot[1:])
	}

	return &cfg, nil
}

// Validate checks the fields a sync round cannot run without.
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return errors.New("project_id is required (flowsync.yaml or FLOWSYNC_PROJECT_ID)")
	}
	if c.ProjectRoot == "" {
		return errors.New("project_root is required")
	}
	return nil
}

// DataDir returns $XDG_DATA_HOME/flowsync/ for the history database.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "flowsync")
}

// DefaultHistoryPath returns the default history database path.
func DefaultHistoryPath() string {
	return filepath.Join(DataDir(), "history")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	if err := os.MkdirAll(DataDir(), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}
