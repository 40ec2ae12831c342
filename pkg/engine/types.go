package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/lunarc/sash/pkg/agent"
)

// ActionContext carries everything a handler needs for one invocation.
// Args hold the schema-validated, default-substituted argument values.
// Immutable once constructed.
type ActionContext struct {
	SessionID string         `json:"session_id"`
	WindowID  string         `json:"window_id"`
	ActionID  string         `json:"action_id"`
	Args      map[string]any `json:"args"`
}

// ActionResult is the outcome of one action invocation. A failed action is
// a normal, loggable outcome, not a fault.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// Ok returns a successful result with a machine-usable summary.
func Ok(summary string) ActionResult {
	return ActionResult{Success: true, Summary: summary}
}

// Fail returns a failed result with a human-readable message.
func Fail(message string) ActionResult {
	return ActionResult{Success: false, Message: message}
}

// ActionHandler executes one kind of action.
type ActionHandler interface {
	Execute(ctx context.Context, call ActionContext) (ActionResult, error)
}

// HandlerFunc adapts a function to the ActionHandler interface.
type HandlerFunc func(ctx context.Context, call ActionContext) (ActionResult, error)

// Execute implements ActionHandler.
func (f HandlerFunc) Execute(ctx context.Context, call ActionContext) (ActionResult, error) {
	return f(ctx, call)
}

// HandlerRegistry maps (window id, action id) pairs to handlers. A window
// id of "*" registers a handler for that action id on any window.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]ActionHandler
}

// AnyWindow registers a handler for an action id regardless of window.
const AnyWindow = "*"

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]ActionHandler)}
}

// Register wires a handler. Registering the same pair again replaces the
// prior handler.
func (r *HandlerRegistry) Register(windowID, actionID string, h ActionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[windowID+"/"+actionID] = h
}

// Resolve finds the handler for a pair, falling back to an AnyWindow
// registration.
func (r *HandlerRegistry) Resolve(windowID, actionID string) (ActionHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.handlers[windowID+"/"+actionID]; ok {
		return h, true
	}
	h, ok := r.handlers[AnyWindow+"/"+actionID]
	return h, ok
}

// ActionCall is a model-proposed action invocation, parsed strictly from
// the provider reply.
type ActionCall struct {
	WindowID string         `json:"window_id"`
	ActionID string         `json:"action_id"`
	RawArgs  map[string]any `json:"raw_args,omitempty"`
}

// ModelReply is the strict tagged form of a provider response: either a
// plain reply, or a reply carrying exactly one action call.
type ModelReply struct {
	Text   string
	Action *ActionCall
}

// InteractionResponse is the composed result of one turn returned to the
// caller. Every failure path yields a well-formed response with Success
// false and Error populated.
type InteractionResponse struct {
	SessionID    string            `json:"session_id"`
	Success      bool              `json:"success"`
	Message      string            `json:"message,omitempty"`
	Error        string            `json:"error,omitempty"`
	Action       *ActionCall       `json:"action,omitempty"`
	ActionResult *ActionResult     `json:"action_result,omitempty"`
	Model        string            `json:"model,omitempty"`
	Usage        *agent.TokenUsage `json:"usage,omitempty"`
}

// toolNameSeparator joins window and action ids into the tool names
// advertised to providers. Window ids must not contain it.
const toolNameSeparator = "__"

// EncodeToolName builds the provider-facing tool name for an action.
func EncodeToolName(windowID, actionID string) string {
	return windowID + toolNameSeparator + actionID
}

// DecodeToolName splits a provider tool name back into window and action
// ids, failing explicitly on malformed input.
func DecodeToolName(name string) (windowID, actionID string, err error) {
	windowID, actionID, ok := strings.Cut(name, toolNameSeparator)
	if !ok || windowID == "" || actionID == "" {
		return "", "", fmt.Errorf("malformed action name %q", name)
	}
	return windowID, actionID, nil
}

// parseReply converts a provider response into the tagged ModelReply form.
// Responses with no tool calls are plain replies; the first tool call
// becomes the action. A malformed tool name is a parse failure, not a
// best-effort guess.
func parseReply(resp *agent.LLMResponse) (ModelReply, error) {
	reply := ModelReply{Text: resp.Content}
	if len(resp.ToolCalls) == 0 {
		return reply, nil
	}

	tc := resp.ToolCalls[0]
	windowID, actionID, err := DecodeToolName(tc.Name)
	if err != nil {
		return ModelReply{}, err
	}
	reply.Action = &ActionCall{
		WindowID: windowID,
		ActionID: actionID,
		RawArgs:  tc.Arguments,
	}
	return reply, nil
}
