package gateway

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_ParseRequest(t *testing.T) {
	router := NewRPCRouter()

	tests := []struct {
		name    string
		input   string
		wantErr int
	}{
		{"valid", `{"id":"1","method":"x","jsonrpc":"2.0"}`, 0},
		{"not json", `{{{`, ParseError},
		{"missing id", `{"method":"x"}`, InvalidRequest},
		{"missing method", `{"id":"1"}`, InvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := router.ParseRequest([]byte(tt.input))
			if tt.wantErr == 0 {
				require.NoError(t, err)
				assert.Equal(t, "2.0", req.JSONRPC)
				return
			}
			require.Error(t, err)
			rpcErr, ok := err.(*RPCError)
			require.True(t, ok)
			assert.Equal(t, tt.wantErr, rpcErr.Code)
		})
	}
}

func TestRouter_RouteRequest(t *testing.T) {
	router := NewRPCRouter()
	require.NoError(t, router.RegisterMethod("echo", func(ctx context.Context, params map[string]any) (any, error) {
		return params["value"], nil
	}))
	require.NoError(t, router.RegisterMethod("boom", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, fmt.Errorf("it broke")
	}))

	resp := router.RouteRequest(context.Background(), &RPCRequest{ID: "1", Method: "echo", Params: map[string]any{"value": 42}})
	require.Nil(t, resp.Error)
	assert.Equal(t, 42, resp.Result)

	resp = router.RouteRequest(context.Background(), &RPCRequest{ID: "2", Method: "boom"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, InternalError, resp.Error.Code)
	assert.Equal(t, "it broke", resp.Error.Message)

	resp = router.RouteRequest(context.Background(), &RPCRequest{ID: "3", Method: "missing"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, MethodNotFound, resp.Error.Code)
}

func TestRouter_RPCErrorCodePreserved(t *testing.T) {
	router := NewRPCRouter()
	require.NoError(t, router.RegisterMethod("bad", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, &RPCError{Code: InvalidParams, Message: "missing param: x"}
	}))

	resp := router.RouteRequest(context.Background(), &RPCRequest{ID: "1", Method: "bad"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, InvalidParams, resp.Error.Code)
}

func TestRouter_IdempotencyCache(t *testing.T) {
	router := NewRPCRouter()
	calls := 0
	require.NoError(t, router.RegisterMethod("inc", func(ctx context.Context, params map[string]any) (any, error) {
		calls++
		return calls, nil
	}))

	first := router.RouteRequest(context.Background(), &RPCRequest{ID: "1", Method: "inc", IdempotencyKey: "k"})
	second := router.RouteRequest(context.Background(), &RPCRequest{ID: "2", Method: "inc", IdempotencyKey: "k"})

	assert.Equal(t, 1, calls)
	assert.Equal(t, first.Result, second.Result)
	// The redelivered response carries the new request id.
	assert.Equal(t, "2", second.ID)

	third := router.RouteRequest(context.Background(), &RPCRequest{ID: "3", Method: "inc", IdempotencyKey: "other"})
	assert.Equal(t, 2, third.Result)
}

func TestRouter_RegisterNilHandlerRejected(t *testing.T) {
	router := NewRPCRouter()
	assert.Error(t, router.RegisterMethod("x", nil))
	assert.False(t, router.HasMethod("x"))
}
