package window

import "github.com/lunarc/sash/pkg/schema"

// ActionDefinition is a named, schema-described operation a window exposes
// for the model to invoke.
type ActionDefinition struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Params      schema.ParamSchema `json:"params"`
}

// Window is a registered application surface: a description, content to
// render into the model's context, and the actions it exposes.
type Window struct {
	ID          string             `json:"id"`
	App         string             `json:"app"`
	Description string             `json:"description"`
	Content     string             `json:"content,omitempty"`
	Actions     []ActionDefinition `json:"actions,omitempty"`
}

// FindAction returns the action with the given id, if declared.
func (w Window) FindAction(actionID string) (ActionDefinition, bool) {
	for _, a := range w.Actions {
		if a.ID == actionID {
			return a, true
		}
	}
	return ActionDefinition{}, false
}
