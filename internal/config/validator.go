package config

import "fmt"

// Validate checks the configuration bounds. All budget values must be
// positive except TrimToTokens, where zero or less selects the
// MaxTokens/2 default.
func Validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	switch cfg.Model.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("model.provider must be anthropic or openai, got %q", cfg.Model.Provider)
	}
	if cfg.Model.Name == "" {
		return fmt.Errorf("model.name is required")
	}
	if cfg.Model.MaxOutputTokens <= 0 {
		return fmt.Errorf("model.max_output_tokens must be positive, got %d", cfg.Model.MaxOutputTokens)
	}

	e := cfg.Engine
	if e.MaxTokens <= 0 {
		return fmt.Errorf("engine.max_tokens must be positive, got %d", e.MaxTokens)
	}
	if e.MinConversationTokens <= 0 {
		return fmt.Errorf("engine.min_conversation_tokens must be positive, got %d", e.MinConversationTokens)
	}
	if e.MinConversationTokens >= e.MaxTokens {
		return fmt.Errorf("engine.min_conversation_tokens (%d) must be below engine.max_tokens (%d)",
			e.MinConversationTokens, e.MaxTokens)
	}
	if e.TrimToTokens > e.MaxTokens {
		return fmt.Errorf("engine.trim_to_tokens (%d) must not exceed engine.max_tokens (%d)",
			e.TrimToTokens, e.MaxTokens)
	}
	if e.MaxItems <= 0 {
		return fmt.Errorf("engine.max_items must be positive, got %d", e.MaxItems)
	}
	if e.MaxLogs <= 0 {
		return fmt.Errorf("engine.max_logs must be positive, got %d", e.MaxLogs)
	}
	if e.IdleTimeout <= 0 {
		return fmt.Errorf("engine.idle_timeout must be positive, got %s", e.IdleTimeout)
	}

	return nil
}
