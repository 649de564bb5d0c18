// Package config handles configuration loading for Maestro. It supports XDG
// config paths, project-level overrides, environment variables, and live
// reload of processor cadence settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all configuration for Maestro.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Processor ProcessorConfig `mapstructure:"processor"`
	Planner   PlannerConfig   `mapstructure:"planner"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// AnthropicConfig holds Anthropic API settings for the LLM planner.
type AnthropicConfig struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// ProcessorConfig holds auto-processor cadence and retry settings.
type ProcessorConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	LoopIterations int           `mapstructure:"loop_iterations"`
	LoopDelay      time.Duration `mapstructure:"loop_delay"`
	DebugLog       string        `mapstructure:"debug_log"`
}

// PlannerConfig selects the planning backend.
type PlannerConfig struct {
	// Backend is "rules" or "llm".
	Backend string `mapstructure:"backend"`
	// RulesPath optionally overrides the embedded keyword rules.
	RulesPath string `mapstructure:"rules_path"`
}

// Loader wraps a viper instance so callers can watch for file changes after
// the initial load.
type Loader struct {
	v *viper.Viper
}

// Load reads configuration with the following precedence (highest first):
// environment variables, project config (.maestro.yaml in the current
// directory or a parent), user config (~/.config/maestro/config.yaml),
// built-in defaults.
func Load() (*Config, *Loader, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if project := findProjectConfig(); project != "" {
		pv := viper.New()
		pv.SetConfigFile(project)
		if err := pv.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(pv.AllSettings()); err != nil {
				return nil, nil, fmt.Errorf("merging project config: %w", err)
			}
			// Watch the nearest file so cadence edits take effect live.
			v.SetConfigFile(project)
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("database.path", "MAESTRO_DB_PATH")
	v.BindEnv("processor.interval", "MAESTRO_PROCESSOR_INTERVAL")

	cfg, err := unmarshal(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, &Loader{v: v}, nil
}

// LoadFromPath loads configuration from a specific file.
func LoadFromPath(path string) (*Config, *Loader, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg, err := unmarshal(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, &Loader{v: v}, nil
}

// Watch re-reads the config file whenever it changes on disk and invokes fn
// with the fresh configuration. Unparseable edits are skipped. Watching is
// a no-op when no config file was found during Load.
func (l *Loader) Watch(fn func(*Config)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshal(l.v)
		if err != nil {
			return
		}
		fn(cfg)
	})
	l.v.WatchConfig()
}

// Save writes configuration to the user config file.
func Save(cfg *Config) error {
	dir := userConfigDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, "config.yaml"))

	v.Set("database.path", cfg.Database.Path)
	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("processor.interval", cfg.Processor.Interval.String())
	v.Set("processor.max_attempts", cfg.Processor.MaxAttempts)
	v.Set("processor.loop_iterations", cfg.Processor.LoopIterations)
	v.Set("processor.loop_delay", cfg.Processor.LoopDelay.String())
	v.Set("planner.backend", cfg.Planner.Backend)

	return v.WriteConfig()
}

// UserConfigPath returns the path to the user config file.
func UserConfigPath() string {
	return filepath.Join(userConfigDir(), "config.yaml")
}

// APIKey resolves the Anthropic API key, preferring the environment over the
// config file, and expanding ${VAR} references.
func (c *Config) APIKey() string {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key
	}
	key := os.ExpandEnv(c.Anthropic.APIKey)
	if strings.HasPrefix(key, "${") {
		return ""
	}
	return key
}

// MaskKey returns a display-safe form of an API key.
func MaskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 15 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "")
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_aws_bedrock", false)
	v.SetDefault("processor.interval", "30s")
	v.SetDefault("processor.max_attempts", 3)
	v.SetDefault("processor.loop_iterations", 10)
	v.SetDefault("processor.loop_delay", "2s")
	v.SetDefault("processor.debug_log", "")
	v.SetDefault("planner.backend", "rules")
}

// userConfigDir returns the XDG config directory for Maestro.
func userConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "maestro")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "maestro")
	}
	return filepath.Join(home, ".config", "maestro")
}

// findProjectConfig searches for .maestro.yaml in the current directory and
// parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		path := filepath.Join(cwd, ".maestro.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return ""
		}
		cwd = parent
	}
}
