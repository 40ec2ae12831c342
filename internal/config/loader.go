package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading.
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader. An empty path falls back to the
// default search locations.
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// Load reads configuration from file and environment, layered over defaults.
// Environment variables use the SASH_ prefix with underscores for nesting,
// e.g. SASH_ENGINE_MAX_TOKENS.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("server.host", defaults.Server.Host)
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("model.provider", defaults.Model.Provider)
	v.SetDefault("model.name", defaults.Model.Name)
	v.SetDefault("model.temperature", defaults.Model.Temperature)
	v.SetDefault("model.max_output_tokens", defaults.Model.MaxOutputTokens)
	v.SetDefault("engine.max_tokens", defaults.Engine.MaxTokens)
	v.SetDefault("engine.min_conversation_tokens", defaults.Engine.MinConversationTokens)
	v.SetDefault("engine.trim_to_tokens", defaults.Engine.TrimToTokens)
	v.SetDefault("engine.max_items", defaults.Engine.MaxItems)
	v.SetDefault("engine.max_logs", defaults.Engine.MaxLogs)
	v.SetDefault("engine.idle_timeout", defaults.Engine.IdleTimeout)
	v.SetDefault("engine.sweep_schedule", defaults.Engine.SweepSchedule)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.console", defaults.Logging.Console)
	v.SetDefault("logging.pretty", defaults.Logging.Pretty)

	v.SetEnvPrefix("SASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if l.configPath != "" {
		v.SetConfigFile(l.configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("sash")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".sash"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Path returns the configured config file path, possibly empty.
func (l *Loader) Path() string {
	return l.configPath
}
