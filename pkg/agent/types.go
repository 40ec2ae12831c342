package agent

import "strings"

// Message is one role-tagged entry of the exchange sent to a provider.
type Message struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ToolCall is a tool invocation proposed by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolSpec advertises one invokable tool to the provider. InputSchema is a
// JSON Schema document describing the accepted arguments.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// TokenUsage tracks token consumption of one call.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// LLMRequest contains the request parameters for one provider call.
type LLMRequest struct {
	Model        string
	Messages     []Message
	Tools        []ToolSpec
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// LLMResponse contains the provider's reply.
type LLMResponse struct {
	Content   string
	Model     string
	ToolCalls []ToolCall
	Usage     *TokenUsage
}

// IsRetryableError reports whether an error looks transient: network
// resets, rate limits, upstream server errors.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	for _, marker := range []string{
		"ECONNRESET", "ETIMEDOUT",
		"429", "rate limit",
		"500", "502", "503", "504",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
