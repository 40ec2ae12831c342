package daemon

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunarc/sash/internal/config"
	"github.com/lunarc/sash/internal/logger"
)

func createTestDaemon(t *testing.T) (*Daemon, *logger.Logger) {
	t.Helper()
	tmpDir := t.TempDir()

	cfg := config.Default()
	cfg.Server.Port = 38614
	cfg.Model.APIKey = "sk-test-key"
	cfg.Engine.ArchivePath = filepath.Join(tmpDir, "archive.db")

	log, err := logger.New(logger.Config{Level: "info", Console: false})
	require.NoError(t, err)

	d, err := New(cfg, log)
	require.NoError(t, err)

	return d, log
}

func TestNew(t *testing.T) {
	d, log := createTestDaemon(t)
	defer log.Close()

	assert.NotNil(t, d)
	assert.NotNil(t, d.Manager())
	assert.NotNil(t, d.Handlers())
	assert.NotNil(t, d.Bus())
	assert.NotNil(t, d.sweeper)
	assert.NotNil(t, d.gateway)
	assert.NotNil(t, d.archive)
}

func TestNew_UnknownProviderRejected(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Provider = "llama"

	log, err := logger.New(logger.Config{Level: "info", Console: false})
	require.NoError(t, err)
	defer log.Close()

	_, err = New(cfg, log)
	assert.Error(t, err)
}

func TestDaemonStartStop(t *testing.T) {
	d, log := createTestDaemon(t)
	defer log.Close()

	require.NoError(t, d.Start())

	status := d.Status()
	assert.True(t, status.Running)

	time.Sleep(100 * time.Millisecond)

	require.NoError(t, d.Stop())

	status = d.Status()
	assert.False(t, status.Running)
}

func TestDaemonStatus(t *testing.T) {
	d, log := createTestDaemon(t)
	defer log.Close()

	status := d.Status()
	assert.False(t, status.Running)
	assert.Equal(t, time.Duration(0), status.Uptime)

	require.NoError(t, d.Start())
	defer d.Stop()

	status = d.Status()
	assert.True(t, status.Running)
	assert.Equal(t, 0, status.Sessions)
}

func TestDaemonDoubleStartRejected(t *testing.T) {
	d, log := createTestDaemon(t)
	defer log.Close()

	require.NoError(t, d.Start())
	defer d.Stop()

	assert.Error(t, d.Start())
}
