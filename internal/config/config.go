// Package config handles configuration loading and management for crewd.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for crewd.
type Config struct {
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Broker     BrokerConfig     `mapstructure:"broker"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	Store      StoreConfig      `mapstructure:"store"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Delegation DelegationConfig `mapstructure:"delegation"`
	Personas   PersonasConfig   `mapstructure:"personas"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// BrokerConfig selects and configures the message broker.
type BrokerConfig struct {
	// Kind is "redis" or "memory".
	Kind string `mapstructure:"kind"`
	// RedisURL is the redis connection URL (redis://host:port/db).
	RedisURL string `mapstructure:"redis_url"`
}

// ProviderConfig selects the decision provider.
type ProviderConfig struct {
	// Kind is "anthropic" or "mock". Empty auto-selects: anthropic when an
	// API key is available, mock otherwise.
	Kind string `mapstructure:"kind"`
}

// StoreConfig holds audit persistence settings.
type StoreConfig struct {
	// SQLitePath is the database file location; empty disables persistence.
	SQLitePath string `mapstructure:"sqlite_path"`
}

// WorkerConfig holds task intake settings.
type WorkerConfig struct {
	// Queue is the broker list the worker pops tasks from.
	Queue string `mapstructure:"queue"`
	// CallbackTimeout bounds result callback POSTs.
	CallbackTimeout time.Duration `mapstructure:"callback_timeout"`
}

// DelegationConfig bounds recursive delegation.
type DelegationConfig struct {
	// MaxDepth is the deepest delegation chain allowed.
	MaxDepth int `mapstructure:"max_depth"`
}

// PersonasConfig holds persona overlay settings.
type PersonasConfig struct {
	// Dir is a directory of YAML persona definitions layered over the
	// built-in catalog; empty skips loading.
	Dir string `mapstructure:"dir"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, CREWD_REDIS_URL)
// 2. Project config (.crewd.yaml in current directory or parent)
// 3. User config (~/.config/crewd/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.model", "CREWD_MODEL")
	v.BindEnv("broker.redis_url", "CREWD_REDIS_URL")
	v.BindEnv("broker.kind", "CREWD_BROKER")
	v.BindEnv("store.sqlite_path", "CREWD_SQLITE_PATH")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("broker.kind", cfg.Broker.Kind)
	v.Set("broker.redis_url", cfg.Broker.RedisURL)
	v.Set("provider.kind", cfg.Provider.Kind)
	v.Set("store.sqlite_path", cfg.Store.SQLitePath)
	v.Set("worker.queue", cfg.Worker.Queue)
	v.Set("worker.callback_timeout", cfg.Worker.CallbackTimeout.String())
	v.Set("delegation.max_depth", cfg.Delegation.MaxDepth)
	v.Set("personas.dir", cfg.Personas.Dir)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")

	v.SetDefault("broker.kind", "memory")
	v.SetDefault("broker.redis_url", "redis://localhost:6379/0")

	v.SetDefault("provider.kind", "")

	v.SetDefault("store.sqlite_path", defaultSQLitePath())

	v.SetDefault("worker.queue", "task_queue")
	v.SetDefault("worker.callback_timeout", "10s")

	v.SetDefault("delegation.max_depth", 5)

	v.SetDefault("personas.dir", "")
}

// getUserConfigDir returns the XDG config directory for crewd.
func getUserConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "crewd")
	}

	// Fall back to ~/.config/crewd
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "crewd")
	}
	return filepath.Join(home, ".config", "crewd")
}

// defaultSQLitePath places the audit database next to the user config.
func defaultSQLitePath() string {
	return filepath.Join(getUserConfigDir(), "crewd.db")
}

// findProjectConfig searches for .crewd.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".crewd.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			Kind:     "memory",
			RedisURL: "redis://localhost:6379/0",
		},
		Store: StoreConfig{
			SQLitePath: defaultSQLitePath(),
		},
		Worker: WorkerConfig{
			Queue:           "task_queue",
			CallbackTimeout: 10 * time.Second,
		},
		Delegation: DelegationConfig{
			MaxDepth: 5,
		},
	}
}
