package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// RPCRequest represents a JSON-RPC 2.0 request
type RPCRequest struct {
	ID             string         `json:"id"`
	Method         string         `json:"method"`
	Params         map[string]any `json:"params,omitempty"`
	JSONRPC        string         `json:"jsonrpc"`
	IdempotencyKey string         `json:"idempotencyKey,omitempty"`
}

// RPCResponse represents a JSON-RPC 2.0 response
type RPCResponse struct {
	ID      string    `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
	JSONRPC string    `json:"jsonrpc"`
}

// RPCError represents a JSON-RPC 2.0 error
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface
func (e *RPCError) Error() string {
	return e.Message
}

// EventMessage is the wire form of one bus event pushed to clients.
type EventMessage struct {
	Type      string `json:"type"`
	Event     string `json:"event"`
	SessionID string `json:"session_id,omitempty"`
	Seq       int64  `json:"seq,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ClientInfo represents information about a connected client
type ClientInfo struct {
	ID           string    `json:"id"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastActivity time.Time `json:"lastActivity"`
	IPAddress    string    `json:"ipAddress"`
	Watching     string    `json:"watching,omitempty"`
	Idle         bool      `json:"idle"`
}

// RequestHandler is a function that handles RPC requests
type RequestHandler func(ctx context.Context, params map[string]any) (any, error)

// RPC error codes
const (
	ParseError        = -32700
	InvalidRequest    = -32600
	MethodNotFound    = -32601
	InvalidParams     = -32602
	InternalError     = -32603
	RateLimitExceeded = -32005
	TooManyConcurrent = -32006
)

// Client represents a connected WebSocket client. Gorilla connections
// allow one concurrent writer, so every write goes through writeMu.
type Client struct {
	ID           string
	Conn         *websocket.Conn
	ConnectedAt  time.Time
	LastActivity time.Time
	IPAddress    string
	RateLimiter  *ClientRateLimiter

	writeMu sync.Mutex

	// watch narrows the event stream to one session id; empty means all.
	watchMu sync.RWMutex
	watch   string
}

// WriteJSON serializes v to the connection, one writer at a time.
func (c *Client) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(v)
}

// WriteMessage writes a raw frame, one writer at a time.
func (c *Client) WriteMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// Watch narrows the client's event stream to one session.
func (c *Client) Watch(sessionID string) {
	c.watchMu.Lock()
	c.watch = sessionID
	c.watchMu.Unlock()
}

// Watching returns the session filter, empty for all sessions.
func (c *Client) Watching() string {
	c.watchMu.RLock()
	defer c.watchMu.RUnlock()
	return c.watch
}

// WantsSession reports whether the client should receive events for the
// given session.
func (c *Client) WantsSession(sessionID string) bool {
	w := c.Watching()
	return w == "" || w == sessionID
}
