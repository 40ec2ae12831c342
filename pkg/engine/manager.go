package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lunarc/sash/internal/metrics"
	"github.com/lunarc/sash/pkg/agent"
	"github.com/lunarc/sash/pkg/archive"
	"github.com/lunarc/sash/pkg/conversation"
	"github.com/lunarc/sash/pkg/eventbus"
	"github.com/lunarc/sash/pkg/render"
	"github.com/lunarc/sash/pkg/window"
)

// Config holds the per-turn parameters of the manager. It is swapped
// atomically on reload, so an in-flight turn keeps the values it started
// with.
type Config struct {
	Budget          render.Budget
	MaxItems        int
	MaxLogs         int
	Model           string
	SystemPrompt    string
	Temperature     float64
	MaxOutputTokens int
}

// Manager owns the session map and drives turns through the state machine
// Idle -> AwaitingModel -> DispatchingAction -> Idle. All session mutation
// goes through it so events and sequence numbers stay consistent.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cfgMu sync.RWMutex
	cfg   Config

	provider agent.LLMProvider
	handlers *HandlerRegistry
	renderer *render.Renderer
	bus      *eventbus.Bus
	archive  *archive.Store
	logger   zerolog.Logger
}

// NewManager creates a manager. The handler registry and bus may be shared
// with other components; the manager never closes them.
func NewManager(cfg Config, provider agent.LLMProvider, handlers *HandlerRegistry, bus *eventbus.Bus, logger zerolog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		provider: provider,
		handlers: handlers,
		renderer: render.New(),
		bus:      bus,
		logger:   logger.With().Str("component", "engine").Logger(),
	}
}

// SetArchive wires the transcript archive used on eviction. Optional.
func (m *Manager) SetArchive(store *archive.Store) {
	m.archive = store
}

// UpdateConfig swaps the turn parameters. Existing sessions keep their
// conversation bounds; new sessions pick up the new limits.
func (m *Manager) UpdateConfig(cfg Config) {
	m.cfgMu.Lock()
	m.cfg = cfg
	m.cfgMu.Unlock()
	m.logger.Info().Int("max_tokens", cfg.Budget.MaxTokens).Msg("Engine configuration updated")
}

func (m *Manager) config() Config {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.cfg
}

// Session returns the session with the given id, if it exists.
func (m *Manager) Session(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// SessionIDs returns the ids of all live sessions.
func (m *Manager) SessionIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// SessionCount returns the number of live sessions.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) getOrCreate(id string) *Session {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s
	}

	cfg := m.config()

	m.mu.Lock()
	if s, ok = m.sessions[id]; ok {
		m.mu.Unlock()
		return s
	}
	s = newSession(id, cfg.MaxItems, cfg.MaxLogs)
	m.sessions[id] = s
	count := len(m.sessions)
	m.mu.Unlock()

	metrics.RecordSessionCreated()
	metrics.SetActiveSessions(count)
	m.logger.Info().Str("session_id", id).Msg("Session created")
	m.publish(s, eventbus.KindSessionCreated, nil)
	return s
}

func (m *Manager) publish(s *Session, kind eventbus.Kind, payload any) {
	ev := eventbus.NewEvent(kind, s.id, s.clock.Next(), payload)
	metrics.RecordEventPublished(string(kind))
	m.bus.Publish(ev)
}

func (m *Manager) recordActivity(s *Session, message string) {
	s.mu.Lock()
	s.activity.Append(message)
	s.mu.Unlock()
	m.publish(s, eventbus.KindActivityLogged, ActivityPayload{Message: message})
}

// OpenWindow opens (or replaces) a window in the session, creating the
// session if needed.
func (m *Manager) OpenWindow(sessionID string, w window.Window) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if w.ID == "" {
		return fmt.Errorf("window id is required")
	}
	if strings.Contains(w.ID, toolNameSeparator) {
		return fmt.Errorf("window id %q must not contain %q", w.ID, toolNameSeparator)
	}

	s := m.getOrCreate(sessionID)
	s.mu.Lock()
	replaced := s.windows.Open(w)
	s.mu.Unlock()
	s.touch()

	m.logger.Debug().
		Str("session_id", sessionID).
		Str("window_id", w.ID).
		Bool("replaced", replaced).
		Msg("Window opened")
	m.publish(s, eventbus.KindWindowOpened, WindowPayload{WindowID: w.ID, App: w.App, Replaced: replaced})
	m.recordActivity(s, fmt.Sprintf("opened window %s", w.ID))
	return nil
}

// CloseWindow closes a window. Closing an absent window or an unknown
// session is a quiet no-op.
func (m *Manager) CloseWindow(sessionID, windowID string) {
	s, ok := m.Session(sessionID)
	if !ok {
		return
	}

	s.mu.Lock()
	removed := s.windows.Close(windowID)
	s.mu.Unlock()
	if !removed {
		return
	}
	s.touch()

	m.logger.Debug().
		Str("session_id", sessionID).
		Str("window_id", windowID).
		Msg("Window closed")
	m.publish(s, eventbus.KindWindowClosed, WindowPayload{WindowID: windowID})
	m.recordActivity(s, fmt.Sprintf("closed window %s", windowID))
}

// HandleMessage runs one full turn: append the user message, render the
// budgeted context, call the provider, and either record the plain reply or
// validate and dispatch the proposed action. Turns for the same session
// serialize; a cancelled provider call rolls the appended user message back
// so the session looks untouched by the aborted turn.
func (m *Manager) HandleMessage(ctx context.Context, sessionID, text string) (*InteractionResponse, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("message text is required")
	}

	start := time.Now()
	cfg := m.config()
	s := m.getOrCreate(sessionID)

	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	s.setState(StateAwaitingModel)
	defer s.setState(StateIdle)
	s.touch()

	s.mu.Lock()
	s.store.Append(conversation.NewItem(conversation.RoleUser, text))
	windows := s.windows.List()
	items := s.store.Snapshot()
	s.mu.Unlock()
	m.publish(s, eventbus.KindMessageAppended, MessagePayload{Role: string(conversation.RoleUser), Content: text})

	doc := m.renderer.Render(windows, items, cfg.Budget)
	metrics.RecordRender(doc.EstimatedTokens, doc.DroppedItems)
	if doc.DroppedItems > 0 {
		m.logger.Debug().
			Str("session_id", sessionID).
			Int("dropped", doc.DroppedItems).
			Int("estimated_tokens", doc.EstimatedTokens).
			Msg("Context trimmed")
	}

	req := agent.LLMRequest{
		Model:        cfg.Model,
		Messages:     toProviderMessages(doc.Items),
		Tools:        toolSpecs(windows),
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxOutputTokens,
		SystemPrompt: joinSystem(cfg.SystemPrompt, doc.System),
	}

	resp, err := m.provider.Call(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			// Aborted mid-flight: undo the user append so the turn leaves no
			// partial trace.
			s.mu.Lock()
			s.store.RemoveLast()
			s.mu.Unlock()
			metrics.RecordTurnError("cancelled")
			m.logger.Debug().Str("session_id", sessionID).Msg("Turn cancelled, rolled back")
			return nil, ctx.Err()
		}

		metrics.RecordTurnError("upstream")
		metrics.RecordTurn("failure", time.Since(start))
		m.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Provider call failed")
		m.recordActivity(s, "model call failed")
		return &InteractionResponse{
			SessionID: sessionID,
			Success:   false,
			Error:     fmt.Sprintf("model call failed: %v", err),
		}, nil
	}

	reply, perr := parseReply(resp)
	if perr != nil {
		metrics.RecordTurnError("malformed_reply")
		metrics.RecordTurn("failure", time.Since(start))
		m.recordActivity(s, fmt.Sprintf("rejected reply: %v", perr))
		return &InteractionResponse{
			SessionID: sessionID,
			Success:   false,
			Error:     perr.Error(),
			Model:     resp.Model,
			Usage:     resp.Usage,
		}, nil
	}

	if reply.Action == nil {
		s.mu.Lock()
		s.store.Append(conversation.NewItem(conversation.RoleAssistant, reply.Text))
		s.mu.Unlock()
		m.publish(s, eventbus.KindMessageAppended, MessagePayload{Role: string(conversation.RoleAssistant), Content: reply.Text})
		metrics.RecordTurn("success", time.Since(start))
		return &InteractionResponse{
			SessionID: sessionID,
			Success:   true,
			Message:   reply.Text,
			Model:     resp.Model,
			Usage:     resp.Usage,
		}, nil
	}

	return m.dispatchAction(ctx, s, cfg, resp, reply, start)
}

// dispatchAction validates and executes the action proposed by the model.
// Validation failures fail the turn without touching any handler. A handler
// failure is a recorded outcome, so the turn itself still succeeds.
func (m *Manager) dispatchAction(ctx context.Context, s *Session, cfg Config, resp *agent.LLMResponse, reply ModelReply, start time.Time) (*InteractionResponse, error) {
	call := reply.Action

	fail := func(class, errMsg string) *InteractionResponse {
		metrics.RecordTurnError(class)
		metrics.RecordTurn("failure", time.Since(start))
		m.recordActivity(s, fmt.Sprintf("rejected action %s/%s: %s", call.WindowID, call.ActionID, errMsg))
		return &InteractionResponse{
			SessionID: s.id,
			Success:   false,
			Message:   reply.Text,
			Error:     errMsg,
			Action:    call,
			Model:     resp.Model,
			Usage:     resp.Usage,
		}
	}

	action, err := s.windows.FindAction(call.WindowID, call.ActionID)
	if err != nil {
		return fail("unknown_action", err.Error()), nil
	}

	args, err := action.Params.Validate(call.RawArgs)
	if err != nil {
		return fail("validation", err.Error()), nil
	}

	handler, ok := m.handlers.Resolve(call.WindowID, call.ActionID)
	if !ok {
		return fail("no_handler", fmt.Sprintf("no handler registered for %s/%s", call.WindowID, call.ActionID)), nil
	}

	s.setState(StateDispatchingAction)
	m.publish(s, eventbus.KindActionInvoked, ActionInvokedPayload{
		WindowID: call.WindowID,
		ActionID: call.ActionID,
		Args:     args,
	})

	dispatchStart := time.Now()
	result, herr := handler.Execute(ctx, ActionContext{
		SessionID: s.id,
		WindowID:  call.WindowID,
		ActionID:  call.ActionID,
		Args:      args,
	})
	if herr != nil {
		result = Fail(herr.Error())
	}
	metrics.RecordActionDispatch(call.ActionID, resultLabel(result), time.Since(dispatchStart))

	if reply.Text != "" {
		s.mu.Lock()
		s.store.Append(conversation.NewItem(conversation.RoleAssistant, reply.Text))
		s.mu.Unlock()
		m.publish(s, eventbus.KindMessageAppended, MessagePayload{Role: string(conversation.RoleAssistant), Content: reply.Text})
	}

	note := actionNote(call, result)
	s.mu.Lock()
	s.store.Append(conversation.NewItem(conversation.RoleNote, note))
	s.mu.Unlock()

	m.recordActivity(s, note)
	m.publish(s, eventbus.KindActionCompleted, ActionCompletedPayload{
		WindowID: call.WindowID,
		ActionID: call.ActionID,
		Result:   result,
	})

	m.logger.Info().
		Str("session_id", s.id).
		Str("window_id", call.WindowID).
		Str("action_id", call.ActionID).
		Bool("action_success", result.Success).
		Msg("Action dispatched")

	metrics.RecordTurn("success", time.Since(start))
	return &InteractionResponse{
		SessionID:    s.id,
		Success:      true,
		Message:      reply.Text,
		Action:       call,
		ActionResult: &result,
		Model:        resp.Model,
		Usage:        resp.Usage,
	}, nil
}

// EvictSession removes a session, archiving its transcript when an archive
// is wired. Evicting an unknown session is a no-op.
func (m *Manager) EvictSession(ctx context.Context, sessionID string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	count := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return
	}

	if m.archive != nil {
		if err := m.archive.SaveTranscript(ctx, sessionID, s.Conversation()); err != nil {
			m.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to archive transcript")
		}
	}

	metrics.RecordSessionEvicted()
	metrics.SetActiveSessions(count)
	m.logger.Info().Str("session_id", sessionID).Msg("Session evicted")
	m.publish(s, eventbus.KindSessionEvicted, nil)
}

// EvictIdle evicts sessions that have been idle longer than the timeout.
// Sessions with a turn in flight are skipped regardless of age. Returns the
// number of evicted sessions.
func (m *Manager) EvictIdle(ctx context.Context, olderThan time.Duration) int {
	cutoff := time.Now().UTC().Add(-olderThan)

	m.mu.RLock()
	candidates := make([]*Session, 0)
	for _, s := range m.sessions {
		if s.State() == StateIdle && s.LastActive().Before(cutoff) {
			candidates = append(candidates, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range candidates {
		m.EvictSession(ctx, s.id)
	}
	return len(candidates)
}

func resultLabel(r ActionResult) string {
	if r.Success {
		return "success"
	}
	return "failure"
}

// actionNote is the bookkeeping entry recorded after every dispatch. Notes
// survive conversation eviction, so later renders keep the action history.
func actionNote(call *ActionCall, r ActionResult) string {
	if r.Success {
		if r.Summary != "" {
			return fmt.Sprintf("action %s/%s: %s", call.WindowID, call.ActionID, r.Summary)
		}
		return fmt.Sprintf("action %s/%s: ok", call.WindowID, call.ActionID)
	}
	if r.Message != "" {
		return fmt.Sprintf("action %s/%s failed: %s", call.WindowID, call.ActionID, r.Message)
	}
	return fmt.Sprintf("action %s/%s failed", call.WindowID, call.ActionID)
}

// toProviderMessages converts surviving conversation items to provider
// messages. Bookkeeping notes are presented as assistant text so the model
// sees its own action history.
func toProviderMessages(items []conversation.Item) []agent.Message {
	out := make([]agent.Message, 0, len(items))
	for _, it := range items {
		role := string(it.Role)
		if it.Role == conversation.RoleNote {
			role = string(conversation.RoleAssistant)
		}
		out = append(out, agent.Message{Role: role, Content: it.Content})
	}
	return out
}

// toolSpecs advertises every action of every open window as a callable
// tool, named windowID__actionID.
func toolSpecs(windows []window.Window) []agent.ToolSpec {
	var specs []agent.ToolSpec
	for _, w := range windows {
		for _, a := range w.Actions {
			desc := a.Title
			if a.Description != "" {
				desc += " - " + a.Description
			}
			specs = append(specs, agent.ToolSpec{
				Name:        EncodeToolName(w.ID, a.ID),
				Description: desc,
				InputSchema: a.Params.Compile(),
			})
		}
	}
	return specs
}

func joinSystem(base, windows string) string {
	switch {
	case base == "":
		return windows
	case windows == "":
		return base
	default:
		return base + "\n\n" + windows
	}
}
