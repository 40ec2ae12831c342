package agent

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider  string
		wantErr   bool
		wantName  string
	}{
		{"anthropic", false, "anthropic"},
		{"openai", false, "openai"},
		{"llama", true, ""},
		{"", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewProvider(ProviderConfig{Provider: tt.provider, APIKey: "test-key"})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Provider())
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", fmt.Errorf("429 rate limit exceeded"), true},
		{"server error", fmt.Errorf("upstream returned 503"), true},
		{"connection reset", fmt.Errorf("read tcp: ECONNRESET"), true},
		{"bad request", fmt.Errorf("400 invalid request"), false},
		{"auth failure", fmt.Errorf("401 unauthorized"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
}
