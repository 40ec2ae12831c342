package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lunarc/sash/pkg/window"
)

// registerBuiltinMethods wires the RPC surface to the engine.
func (s *Server) registerBuiltinMethods() {
	_ = s.router.RegisterMethod("session.message", s.methodSessionMessage)
	_ = s.router.RegisterMethod("session.list", s.methodSessionList)
	_ = s.router.RegisterMethod("session.get", s.methodSessionGet)
	_ = s.router.RegisterMethod("session.evict", s.methodSessionEvict)
	_ = s.router.RegisterMethod("window.open", s.methodWindowOpen)
	_ = s.router.RegisterMethod("window.close", s.methodWindowClose)
	_ = s.router.RegisterMethod("gateway.clients", s.methodGatewayClients)

	if s.archive != nil {
		_ = s.router.RegisterMethod("archive.sessions", s.methodArchiveSessions)
		_ = s.router.RegisterMethod("archive.transcript", s.methodArchiveTranscript)
	}
}

func (s *Server) methodSessionMessage(ctx context.Context, params map[string]any) (any, error) {
	sessionID, err := stringParam(params, "session_id")
	if err != nil {
		return nil, err
	}
	text, err := stringParam(params, "text")
	if err != nil {
		return nil, err
	}
	return s.engine.HandleMessage(ctx, sessionID, text)
}

func (s *Server) methodSessionList(_ context.Context, _ map[string]any) (any, error) {
	return map[string]any{"sessions": s.engine.SessionIDs()}, nil
}

func (s *Server) methodSessionGet(_ context.Context, params map[string]any) (any, error) {
	sessionID, err := stringParam(params, "session_id")
	if err != nil {
		return nil, err
	}
	sess, ok := s.engine.Session(sessionID)
	if !ok {
		return nil, &RPCError{Code: InvalidParams, Message: fmt.Sprintf("unknown session: %s", sessionID)}
	}
	return map[string]any{
		"session_id":   sess.ID(),
		"state":        sess.State().String(),
		"created_at":   sess.CreatedAt(),
		"last_active":  sess.LastActive(),
		"seq":          sess.CurrentSeq(),
		"windows":      sess.Windows(),
		"conversation": sess.Conversation(),
		"activity":     sess.Activity(),
	}, nil
}

func (s *Server) methodSessionEvict(ctx context.Context, params map[string]any) (any, error) {
	sessionID, err := stringParam(params, "session_id")
	if err != nil {
		return nil, err
	}
	s.engine.EvictSession(ctx, sessionID)
	return map[string]any{"evicted": sessionID}, nil
}

func (s *Server) methodWindowOpen(_ context.Context, params map[string]any) (any, error) {
	sessionID, err := stringParam(params, "session_id")
	if err != nil {
		return nil, err
	}
	raw, ok := params["window"]
	if !ok {
		return nil, &RPCError{Code: InvalidParams, Message: "missing param: window"}
	}

	w, err := decodeWindow(raw)
	if err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: err.Error()}
	}
	if err := s.engine.OpenWindow(sessionID, w); err != nil {
		return nil, &RPCError{Code: InvalidParams, Message: err.Error()}
	}
	return map[string]any{"window_id": w.ID}, nil
}

func (s *Server) methodWindowClose(_ context.Context, params map[string]any) (any, error) {
	sessionID, err := stringParam(params, "session_id")
	if err != nil {
		return nil, err
	}
	windowID, err := stringParam(params, "window_id")
	if err != nil {
		return nil, err
	}
	s.engine.CloseWindow(sessionID, windowID)
	return map[string]any{"window_id": windowID}, nil
}

func (s *Server) methodGatewayClients(_ context.Context, _ map[string]any) (any, error) {
	return map[string]any{"clients": s.clients.GetConnectedClients()}, nil
}

func (s *Server) methodArchiveSessions(ctx context.Context, _ map[string]any) (any, error) {
	ids, err := s.archive.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"sessions": ids}, nil
}

func (s *Server) methodArchiveTranscript(ctx context.Context, params map[string]any) (any, error) {
	sessionID, err := stringParam(params, "session_id")
	if err != nil {
		return nil, err
	}
	items, err := s.archive.LoadTranscript(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"session_id": sessionID, "items": items}, nil
}

func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", &RPCError{Code: InvalidParams, Message: "missing param: " + key}
	}
	str, ok := v.(string)
	if !ok || str == "" {
		return "", &RPCError{Code: InvalidParams, Message: "param must be a non-empty string: " + key}
	}
	return str, nil
}

// decodeWindow converts the raw JSON params value into a window definition
// via a marshal round trip, so nested action schemas decode uniformly.
func decodeWindow(raw any) (window.Window, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return window.Window{}, fmt.Errorf("invalid window definition: %w", err)
	}
	var w window.Window
	if err := json.Unmarshal(data, &w); err != nil {
		return window.Window{}, fmt.Errorf("invalid window definition: %w", err)
	}
	if w.ID == "" {
		return window.Window{}, fmt.Errorf("window id is required")
	}
	return w, nil
}
