package engine

// Event payload shapes published on the bus. They are plain data so
// subscribers and the gateway can serialize them as-is.

// MessagePayload accompanies message.appended events.
type MessagePayload struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// WindowPayload accompanies window.opened and window.closed events.
type WindowPayload struct {
	WindowID string `json:"window_id"`
	App      string `json:"app,omitempty"`
	Replaced bool   `json:"replaced,omitempty"`
}

// ActionInvokedPayload accompanies action.invoked events.
type ActionInvokedPayload struct {
	WindowID string         `json:"window_id"`
	ActionID string         `json:"action_id"`
	Args     map[string]any `json:"args,omitempty"`
}

// ActionCompletedPayload accompanies action.completed events.
type ActionCompletedPayload struct {
	WindowID string       `json:"window_id"`
	ActionID string       `json:"action_id"`
	Result   ActionResult `json:"result"`
}

// ActivityPayload accompanies activity.logged events.
type ActivityPayload struct {
	Message string `json:"message"`
}
