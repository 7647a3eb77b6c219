// Package config handles configuration loading for Loom.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for Loom.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Pool      PoolConfig      `mapstructure:"pool"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Budget    BudgetConfig    `mapstructure:"budget"`
	Endpoints EndpointsConfig `mapstructure:"endpoints"`
	Profiles  ProfilesConfig  `mapstructure:"profiles"`
	Storage   StorageConfig   `mapstructure:"storage"`
	TUI       TUIConfig       `mapstructure:"tui"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// PoolConfig holds worker pool settings.
type PoolConfig struct {
	// MaxAgents is the maximum number of concurrent workers.
	MaxAgents int `mapstructure:"max_agents"`
	// MaxIterations bounds each worker's model-call loop.
	MaxIterations int `mapstructure:"max_iterations"`
}

// MonitorConfig holds loop-detection thresholds.
type MonitorConfig struct {
	// InterventionThreshold is the attempt count that triggers guidance.
	InterventionThreshold int `mapstructure:"intervention_threshold"`
	// AbortThreshold is the attempt count that cancels the task.
	AbortThreshold int `mapstructure:"abort_threshold"`
}

// BudgetConfig holds context-window budgeting settings.
type BudgetConfig struct {
	// OutputReserve is headroom kept for model responses, in tokens.
	OutputReserve int `mapstructure:"output_reserve"`
	// TriggerRatio of the usable window at which compaction starts.
	TriggerRatio float64 `mapstructure:"trigger_ratio"`
	// TargetRatio of the usable window compaction aims for.
	TargetRatio float64 `mapstructure:"target_ratio"`
	// MinRecentMessages are never folded into a summary.
	MinRecentMessages int `mapstructure:"min_recent_messages"`
}

// EndpointsConfig locates the remote tool endpoint catalog.
type EndpointsConfig struct {
	// File is the path to the endpoints YAML file. Empty disables remote tools.
	File string `mapstructure:"file"`
	// Watch reloads the catalog when the file changes.
	Watch bool `mapstructure:"watch"`
}

// ProfilesConfig locates agent-type capability overrides.
type ProfilesConfig struct {
	// File is the path to a profiles YAML file. Empty uses the built-in
	// capability catalog.
	File string `mapstructure:"file"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// Path is the SQLite database file. ":memory:" keeps state in memory.
	Path string `mapstructure:"path"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, LOOM_MODEL)
// 2. Project config (.loom.yaml in current directory or parent)
// 3. User config (~/.config/loom/config.yaml)
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

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.model", "LOOM_MODEL")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	cfg.Endpoints.File = os.ExpandEnv(cfg.Endpoints.File)
	cfg.Profiles.File = os.ExpandEnv(cfg.Profiles.File)
	cfg.Storage.Path = os.ExpandEnv(cfg.Storage.Path)

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

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")

	v.SetDefault("pool.max_agents", 3)
	v.SetDefault("pool.max_iterations", 20)

	v.SetDefault("monitor.intervention_threshold", 3)
	v.SetDefault("monitor.abort_threshold", 6)

	v.SetDefault("budget.output_reserve", 8192)
	v.SetDefault("budget.trigger_ratio", 0.85)
	v.SetDefault("budget.target_ratio", 0.5)
	v.SetDefault("budget.min_recent_messages", 6)

	v.SetDefault("endpoints.file", "")
	v.SetDefault("endpoints.watch", true)

	v.SetDefault("storage.path", defaultDBPath())

	v.SetDefault("tui.refresh_rate", "100ms")
}

// getUserConfigDir returns the XDG config directory for Loom.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "loom")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "loom")
	}
	return filepath.Join(home, ".config", "loom")
}

// defaultDBPath returns the XDG data path for the state database.
func defaultDBPath() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "loom", "loom.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "loom.db"
	}
	return filepath.Join(home, ".local", "share", "loom", "loom.db")
}

// findProjectConfig searches for .loom.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".loom.yaml")
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

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{Model: "claude-sonnet-4-20250514"},
		Pool:      PoolConfig{MaxAgents: 3, MaxIterations: 20},
		Monitor:   MonitorConfig{InterventionThreshold: 3, AbortThreshold: 6},
		Budget: BudgetConfig{
			OutputReserve:     8192,
			TriggerRatio:      0.85,
			TargetRatio:       0.5,
			MinRecentMessages: 6,
		},
		Endpoints: EndpointsConfig{Watch: true},
		Storage:   StorageConfig{Path: defaultDBPath()},
		TUI:       TUIConfig{RefreshRate: 100 * time.Millisecond},
	}
}
