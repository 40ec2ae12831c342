package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersWithoutPanic(t *testing.T) {
	require.NotPanics(t, func() {
		m := New()
		require.NotNil(t, m)
	})
}

func TestDefault_Singleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func TestRecorders(t *testing.T) {
	require.NotPanics(t, func() {
		RecordTurn("success", 50*time.Millisecond)
		RecordTurnError("upstream")
		RecordActionDispatch("open", "success", 10*time.Millisecond)
		RecordRender(1024, 3)
		RecordEventPublished("message.appended")
		SetActiveSessions(2)
		RecordSessionCreated()
		RecordSessionEvicted()
	})
}

func TestHandler_ServesMetrics(t *testing.T) {
	m := New()
	m.SessionsTotal.Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sash_sessions_total")
}
