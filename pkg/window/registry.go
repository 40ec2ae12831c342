package window

import (
	"fmt"
	"sync"
)

// ErrWindowNotFound is returned when a window id is not registered.
var ErrWindowNotFound = fmt.Errorf("window not found")

// ErrActionNotFound is returned when a window does not declare an action id.
var ErrActionNotFound = fmt.Errorf("action not found")

// Registry holds the set of currently open windows for one session.
// Window ids are unique; opening a duplicate id replaces the prior entry
// (last-write-wins) while keeping its original position in the listing.
type Registry struct {
	mu      sync.RWMutex
	windows map[string]Window
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{windows: make(map[string]Window)}
}

// Open inserts or replaces a window by id. It reports whether an existing
// window was replaced.
func (r *Registry) Open(w Window) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, replaced := r.windows[w.ID]
	r.windows[w.ID] = w
	if !replaced {
		r.order = append(r.order, w.ID)
	}
	return replaced
}

// Close removes a window by id. Closing an absent id is a no-op; the
// return value reports whether anything was removed.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.windows[id]; !ok {
		return false
	}
	delete(r.windows, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the window with the given id.
func (r *Registry) Get(id string) (Window, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.windows[id]
	return w, ok
}

// List returns a snapshot of the open windows in opening order.
func (r *Registry) List() []Window {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Window, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.windows[id])
	}
	return out
}

// Len returns the number of open windows.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.windows)
}

// FindAction resolves an action declared by an open window.
func (r *Registry) FindAction(windowID, actionID string) (ActionDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.windows[windowID]
	if !ok {
		return ActionDefinition{}, fmt.Errorf("%w: %s", ErrWindowNotFound, windowID)
	}
	action, ok := w.FindAction(actionID)
	if !ok {
		return ActionDefinition{}, fmt.Errorf("%w: %s/%s", ErrActionNotFound, windowID, actionID)
	}
	return action, nil
}
