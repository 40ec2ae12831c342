package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunarc/sash/pkg/agent"
	"github.com/lunarc/sash/pkg/archive"
	"github.com/lunarc/sash/pkg/conversation"
	"github.com/lunarc/sash/pkg/eventbus"
	"github.com/lunarc/sash/pkg/render"
	"github.com/lunarc/sash/pkg/schema"
	"github.com/lunarc/sash/pkg/window"
)

type stubProvider struct {
	mu       sync.Mutex
	resp     *agent.LLMResponse
	err      error
	callFn   func(ctx context.Context, req agent.LLMRequest) (*agent.LLMResponse, error)
	requests []agent.LLMRequest
}

func (p *stubProvider) Call(ctx context.Context, req agent.LLMRequest) (*agent.LLMResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	if p.callFn != nil {
		return p.callFn(ctx, req)
	}
	return p.resp, p.err
}

func (p *stubProvider) Provider() string { return "stub" }

func (p *stubProvider) lastRequest() agent.LLMRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[len(p.requests)-1]
}

type eventRecorder struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (r *eventRecorder) record(ev eventbus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) all() []eventbus.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]eventbus.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *eventRecorder) kinds() []eventbus.Kind {
	var out []eventbus.Kind
	for _, ev := range r.all() {
		out = append(out, ev.Kind)
	}
	return out
}

func testConfig() Config {
	return Config{
		Budget:          render.Budget{MaxTokens: 8000, MinConversationTokens: 500},
		MaxItems:        50,
		MaxLogs:         20,
		Model:           "test-model",
		SystemPrompt:    "You are a desktop assistant.",
		Temperature:     0.2,
		MaxOutputTokens: 1024,
	}
}

func newTestManager(t *testing.T, provider agent.LLMProvider) (*Manager, *HandlerRegistry, *eventRecorder) {
	t.Helper()
	rec := &eventRecorder{}
	bus := eventbus.New(zerolog.Nop())
	bus.Subscribe(eventbus.KindAny, rec.record)
	handlers := NewHandlerRegistry()
	m := NewManager(testConfig(), provider, handlers, bus, zerolog.Nop())
	return m, handlers, rec
}

func filesWindow() window.Window {
	return window.Window{
		ID:          "files",
		App:         "filemanager",
		Description: "The user's home directory",
		Content:     "notes.txt  report.pdf",
		Actions: []window.ActionDefinition{
			{
				ID:    "open",
				Title: "Open file",
				Params: schema.Object(map[string]schema.Property{
					"path":    {Schema: schema.String(), Required: true},
					"preview": {Schema: schema.Boolean(), Default: false},
				}),
			},
		},
	}
}

func replyWith(content string, calls ...agent.ToolCall) *agent.LLMResponse {
	return &agent.LLMResponse{
		Content:   content,
		Model:     "test-model",
		ToolCalls: calls,
		Usage:     &agent.TokenUsage{InputTokens: 10, OutputTokens: 5},
	}
}

func TestHandleMessage_PlainReply(t *testing.T) {
	provider := &stubProvider{resp: replyWith("hello there")}
	m, _, rec := newTestManager(t, provider)

	resp, err := m.HandleMessage(context.Background(), "s1", "hi")
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "hello there", resp.Message)
	assert.Nil(t, resp.Action)
	assert.Equal(t, "test-model", resp.Model)

	s, ok := m.Session("s1")
	require.True(t, ok)
	items := s.Conversation()
	require.Len(t, items, 2)
	assert.Equal(t, conversation.RoleUser, items[0].Role)
	assert.Equal(t, conversation.RoleAssistant, items[1].Role)
	assert.Equal(t, StateIdle, s.State())

	kinds := rec.kinds()
	assert.Contains(t, kinds, eventbus.KindSessionCreated)
	assert.Contains(t, kinds, eventbus.KindMessageAppended)
}

func TestHandleMessage_ActionDispatch(t *testing.T) {
	provider := &stubProvider{resp: replyWith("opening it",
		agent.ToolCall{ID: "t1", Name: "files__open", Arguments: map[string]any{"path": "X"}},
	)}
	m, handlers, rec := newTestManager(t, provider)

	var got ActionContext
	handlers.Register("files", "open", HandlerFunc(func(ctx context.Context, call ActionContext) (ActionResult, error) {
		got = call
		return Ok("opened " + call.Args["path"].(string)), nil
	}))

	require.NoError(t, m.OpenWindow("s1", filesWindow()))

	resp, err := m.HandleMessage(context.Background(), "s1", "open file X")
	require.NoError(t, err)

	assert.True(t, resp.Success)
	require.NotNil(t, resp.Action)
	assert.Equal(t, "files", resp.Action.WindowID)
	assert.Equal(t, "open", resp.Action.ActionID)
	require.NotNil(t, resp.ActionResult)
	assert.True(t, resp.ActionResult.Success)
	assert.Equal(t, "opened X", resp.ActionResult.Summary)

	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "X", got.Args["path"])
	// Declared default for the optional property is substituted.
	assert.Equal(t, false, got.Args["preview"])

	s, _ := m.Session("s1")
	items := s.Conversation()
	last := items[len(items)-1]
	assert.Equal(t, conversation.RoleNote, last.Role)
	assert.Contains(t, last.Content, "opened X")

	kinds := rec.kinds()
	invoked, completed := -1, -1
	for i, k := range kinds {
		switch k {
		case eventbus.KindActionInvoked:
			invoked = i
		case eventbus.KindActionCompleted:
			completed = i
		}
	}
	require.GreaterOrEqual(t, invoked, 0)
	require.Greater(t, completed, invoked)
}

func TestHandleMessage_ValidationFailureSkipsHandler(t *testing.T) {
	provider := &stubProvider{resp: replyWith("",
		agent.ToolCall{ID: "t1", Name: "files__open", Arguments: map[string]any{}},
	)}
	m, handlers, rec := newTestManager(t, provider)

	called := false
	handlers.Register("files", "open", HandlerFunc(func(ctx context.Context, call ActionContext) (ActionResult, error) {
		called = true
		return Ok(""), nil
	}))
	require.NoError(t, m.OpenWindow("s1", filesWindow()))

	resp, err := m.HandleMessage(context.Background(), "s1", "open something")
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "path")
	assert.Nil(t, resp.ActionResult)
	assert.False(t, called)
	assert.NotContains(t, rec.kinds(), eventbus.KindActionInvoked)

	// No bookkeeping note is recorded for a rejected invocation.
	s, _ := m.Session("s1")
	for _, it := range s.Conversation() {
		assert.NotEqual(t, conversation.RoleNote, it.Role)
	}
}

func TestHandleMessage_UnknownWindowRejected(t *testing.T) {
	provider := &stubProvider{resp: replyWith("",
		agent.ToolCall{ID: "t1", Name: "ghost__open", Arguments: map[string]any{"path": "X"}},
	)}
	m, _, _ := newTestManager(t, provider)
	require.NoError(t, m.OpenWindow("s1", filesWindow()))

	resp, err := m.HandleMessage(context.Background(), "s1", "open")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "ghost")
}

func TestHandleMessage_UnknownActionRejected(t *testing.T) {
	provider := &stubProvider{resp: replyWith("",
		agent.ToolCall{ID: "t1", Name: "files__delete", Arguments: map[string]any{}},
	)}
	m, _, _ := newTestManager(t, provider)
	require.NoError(t, m.OpenWindow("s1", filesWindow()))

	resp, err := m.HandleMessage(context.Background(), "s1", "delete")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "files/delete")
}

func TestHandleMessage_MalformedToolNameRejected(t *testing.T) {
	provider := &stubProvider{resp: replyWith("",
		agent.ToolCall{ID: "t1", Name: "noseparator", Arguments: map[string]any{}},
	)}
	m, _, _ := newTestManager(t, provider)

	resp, err := m.HandleMessage(context.Background(), "s1", "do it")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "malformed")
}

func TestHandleMessage_HandlerFailureIsRecordedOutcome(t *testing.T) {
	provider := &stubProvider{resp: replyWith("",
		agent.ToolCall{ID: "t1", Name: "files__open", Arguments: map[string]any{"path": "locked.txt"}},
	)}
	m, handlers, _ := newTestManager(t, provider)

	handlers.Register("files", "open", HandlerFunc(func(ctx context.Context, call ActionContext) (ActionResult, error) {
		return ActionResult{}, fmt.Errorf("permission denied")
	}))
	require.NoError(t, m.OpenWindow("s1", filesWindow()))

	resp, err := m.HandleMessage(context.Background(), "s1", "open it")
	require.NoError(t, err)

	// The turn itself succeeds; the failure lives in the action result.
	assert.True(t, resp.Success)
	require.NotNil(t, resp.ActionResult)
	assert.False(t, resp.ActionResult.Success)
	assert.Contains(t, resp.ActionResult.Message, "permission denied")

	s, _ := m.Session("s1")
	items := s.Conversation()
	last := items[len(items)-1]
	assert.Equal(t, conversation.RoleNote, last.Role)
	assert.Contains(t, last.Content, "failed")
}

func TestHandleMessage_ProviderFailure(t *testing.T) {
	provider := &stubProvider{err: fmt.Errorf("503 upstream unavailable")}
	m, _, _ := newTestManager(t, provider)

	resp, err := m.HandleMessage(context.Background(), "s1", "hi")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "model call failed")

	// The user message stays; only cancellation rolls back.
	s, _ := m.Session("s1")
	assert.Len(t, s.Conversation(), 1)
	assert.Equal(t, StateIdle, s.State())
}

func TestHandleMessage_CancellationRollsBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	provider := &stubProvider{callFn: func(ctx context.Context, req agent.LLMRequest) (*agent.LLMResponse, error) {
		cancel()
		return nil, ctx.Err()
	}}
	m, _, _ := newTestManager(t, provider)

	_, err := m.HandleMessage(ctx, "s1", "hi")
	require.ErrorIs(t, err, context.Canceled)

	s, _ := m.Session("s1")
	assert.Empty(t, s.Conversation())
	assert.Equal(t, StateIdle, s.State())
}

func TestHandleMessage_InvalidInput(t *testing.T) {
	m, _, _ := newTestManager(t, &stubProvider{resp: replyWith("ok")})

	_, err := m.HandleMessage(context.Background(), "", "hi")
	assert.Error(t, err)

	_, err = m.HandleMessage(context.Background(), "s1", "   ")
	assert.Error(t, err)
	assert.Equal(t, 0, m.SessionCount())
}

func TestHandleMessage_AdvertisesWindowActions(t *testing.T) {
	provider := &stubProvider{resp: replyWith("sure")}
	m, _, _ := newTestManager(t, provider)
	require.NoError(t, m.OpenWindow("s1", filesWindow()))

	_, err := m.HandleMessage(context.Background(), "s1", "what can you do")
	require.NoError(t, err)

	req := provider.lastRequest()
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "files__open", req.Tools[0].Name)
	assert.Equal(t, []string{"path"}, req.Tools[0].InputSchema["required"])

	assert.Contains(t, req.SystemPrompt, "You are a desktop assistant.")
	assert.Contains(t, req.SystemPrompt, "The user's home directory")
	require.NotEmpty(t, req.Messages)
	assert.Equal(t, "user", req.Messages[len(req.Messages)-1].Role)
}

func TestHandleMessage_SameSessionTurnsSerialize(t *testing.T) {
	provider := &stubProvider{callFn: func(ctx context.Context, req agent.LLMRequest) (*agent.LLMResponse, error) {
		time.Sleep(20 * time.Millisecond)
		return replyWith("done"), nil
	}}
	m, _, _ := newTestManager(t, provider)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.HandleMessage(context.Background(), "s1", "go")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, _ := m.Session("s1")
	items := s.Conversation()
	require.Len(t, items, 4)
	// Serialized turns keep user and assistant strictly paired.
	assert.Equal(t, conversation.RoleUser, items[0].Role)
	assert.Equal(t, conversation.RoleAssistant, items[1].Role)
	assert.Equal(t, conversation.RoleUser, items[2].Role)
	assert.Equal(t, conversation.RoleAssistant, items[3].Role)
}

func TestEventSequenceIsStrictlyIncreasing(t *testing.T) {
	provider := &stubProvider{resp: replyWith("ok")}
	m, _, rec := newTestManager(t, provider)
	require.NoError(t, m.OpenWindow("s1", filesWindow()))
	_, err := m.HandleMessage(context.Background(), "s1", "hello")
	require.NoError(t, err)
	m.CloseWindow("s1", "files")

	var prev int64
	for _, ev := range rec.all() {
		require.Equal(t, "s1", ev.SessionID)
		assert.Greater(t, ev.Seq, prev)
		prev = ev.Seq
	}
}

func TestOpenCloseWindow(t *testing.T) {
	m, _, rec := newTestManager(t, &stubProvider{resp: replyWith("ok")})

	require.NoError(t, m.OpenWindow("s1", filesWindow()))
	s, ok := m.Session("s1")
	require.True(t, ok)
	require.Len(t, s.Windows(), 1)

	// Closing an absent window emits nothing.
	before := len(rec.all())
	m.CloseWindow("s1", "ghost")
	assert.Len(t, rec.all(), before)

	m.CloseWindow("s1", "files")
	assert.Empty(t, s.Windows())
	assert.Contains(t, rec.kinds(), eventbus.KindWindowClosed)
}

func TestOpenWindow_RejectsReservedID(t *testing.T) {
	m, _, _ := newTestManager(t, &stubProvider{resp: replyWith("ok")})
	err := m.OpenWindow("s1", window.Window{ID: "bad__id", App: "x"})
	assert.Error(t, err)
}

func TestEvictIdle(t *testing.T) {
	m, _, rec := newTestManager(t, &stubProvider{resp: replyWith("ok")})
	store, err := archive.Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	m.SetArchive(store)

	_, err = m.HandleMessage(context.Background(), "s1", "remember this")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	n := m.EvictIdle(context.Background(), time.Millisecond)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, m.SessionCount())
	assert.Contains(t, rec.kinds(), eventbus.KindSessionEvicted)

	items, err := store.LoadTranscript(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "remember this", items[0].Content)
}

func TestEvictIdle_KeepsFreshSessions(t *testing.T) {
	m, _, _ := newTestManager(t, &stubProvider{resp: replyWith("ok")})
	_, err := m.HandleMessage(context.Background(), "s1", "hi")
	require.NoError(t, err)

	n := m.EvictIdle(context.Background(), time.Hour)
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, m.SessionCount())
}

func TestDecodeToolName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		windowID string
		actionID string
		wantErr  bool
	}{
		{"valid", "files__open", "files", "open", false},
		{"action with underscore", "files__open_all", "files", "open_all", false},
		{"no separator", "filesopen", "", "", true},
		{"empty window", "__open", "", "", true},
		{"empty action", "files__", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, a, err := DecodeToolName(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.windowID, w)
			assert.Equal(t, tt.actionID, a)
		})
	}
}

func TestHandlerRegistry_WildcardFallback(t *testing.T) {
	r := NewHandlerRegistry()
	r.Register(AnyWindow, "open", HandlerFunc(func(ctx context.Context, call ActionContext) (ActionResult, error) {
		return Ok("any"), nil
	}))
	r.Register("files", "open", HandlerFunc(func(ctx context.Context, call ActionContext) (ActionResult, error) {
		return Ok("exact"), nil
	}))

	h, ok := r.Resolve("files", "open")
	require.True(t, ok)
	res, _ := h.Execute(context.Background(), ActionContext{})
	assert.Equal(t, "exact", res.Summary)

	h, ok = r.Resolve("other", "open")
	require.True(t, ok)
	res, _ = h.Execute(context.Background(), ActionContext{})
	assert.Equal(t, "any", res.Summary)

	_, ok = r.Resolve("other", "close")
	assert.False(t, ok)
}
