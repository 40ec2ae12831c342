package config

import "time"

// Config is the main sashd configuration.
type Config struct {
	// Server holds the listener configuration
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Model selects and tunes the LLM collaborator
	Model ModelConfig `json:"model" mapstructure:"model"`

	// Engine bounds per-session state and rendering
	Engine EngineConfig `json:"engine" mapstructure:"engine"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ServerConfig holds the HTTP/WebSocket listener configuration.
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`

	// SharedSecret, when set, is required in the X-Sash-Secret header of
	// every gateway request.
	SharedSecret string `json:"shared_secret" mapstructure:"shared_secret"`
}

// ModelConfig selects the LLM provider and model parameters.
type ModelConfig struct {
	Provider        string  `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey          string  `json:"api_key" mapstructure:"api_key"`
	Name            string  `json:"name" mapstructure:"name"`
	SystemPrompt    string  `json:"system_prompt" mapstructure:"system_prompt"`
	Temperature     float64 `json:"temperature" mapstructure:"temperature"`
	MaxOutputTokens int     `json:"max_output_tokens" mapstructure:"max_output_tokens"`
}

// EngineConfig bounds session state and context rendering.
type EngineConfig struct {
	MaxTokens             int           `json:"max_tokens" mapstructure:"max_tokens"`
	MinConversationTokens int           `json:"min_conversation_tokens" mapstructure:"min_conversation_tokens"`
	TrimToTokens          int           `json:"trim_to_tokens" mapstructure:"trim_to_tokens"` // <= 0 means max_tokens/2
	MaxItems              int           `json:"max_items" mapstructure:"max_items"`
	MaxLogs               int           `json:"max_logs" mapstructure:"max_logs"`
	IdleTimeout           time.Duration `json:"idle_timeout" mapstructure:"idle_timeout"`
	SweepSchedule         string        `json:"sweep_schedule" mapstructure:"sweep_schedule"`
	ArchivePath           string        `json:"archive_path" mapstructure:"archive_path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8614,
		},
		Model: ModelConfig{
			Provider:        "anthropic",
			Name:            "claude-3-5-sonnet-20241022",
			Temperature:     0.7,
			MaxOutputTokens: 4096,
		},
		Engine: EngineConfig{
			MaxTokens:             8000,
			MinConversationTokens: 2000,
			TrimToTokens:          0,
			MaxItems:              200,
			MaxLogs:               100,
			IdleTimeout:           30 * time.Minute,
			SweepSchedule:         "@every 5m",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
	}
}
