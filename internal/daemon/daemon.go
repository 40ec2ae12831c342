package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lunarc/sash/internal/config"
	"github.com/lunarc/sash/internal/logger"
	"github.com/lunarc/sash/pkg/agent"
	"github.com/lunarc/sash/pkg/archive"
	"github.com/lunarc/sash/pkg/engine"
	"github.com/lunarc/sash/pkg/eventbus"
	"github.com/lunarc/sash/pkg/gateway"
	"github.com/lunarc/sash/pkg/render"
)

// Daemon wires the engine, event bus, sweeper and gateway into one
// long-running service.
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	bus      *eventbus.Bus
	handlers *engine.HandlerRegistry
	manager  *engine.Manager
	sweeper  *engine.Sweeper
	archive  *archive.Store
	gateway  *gateway.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime time.Time
	running   bool
	mu        sync.RWMutex
}

// Status describes the daemon's current condition.
type Status struct {
	Running  bool          `json:"running"`
	Uptime   time.Duration `json:"uptime"`
	Sessions int           `json:"sessions"`
	Clients  int           `json:"clients"`
}

// New creates a daemon instance from validated configuration.
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config: cfg,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := d.initialize(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize daemon: %w", err)
	}
	return d, nil
}

func (d *Daemon) initialize() error {
	zl := d.logger.Zerolog()

	d.bus = eventbus.New(zl)
	d.handlers = engine.NewHandlerRegistry()

	provider, err := agent.NewProvider(agent.ProviderConfig{
		Provider: d.config.Model.Provider,
		APIKey:   d.config.Model.APIKey,
	})
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	d.manager = engine.NewManager(engineConfig(d.config), provider, d.handlers, d.bus, zl)
	d.logger.Info().Str("provider", provider.Provider()).Msg("Engine initialized")

	if d.config.Engine.ArchivePath != "" {
		store, err := archive.Open(d.config.Engine.ArchivePath)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		d.archive = store
		d.manager.SetArchive(store)
		d.logger.Info().Str("path", d.config.Engine.ArchivePath).Msg("Transcript archive enabled")
	}

	d.sweeper = engine.NewSweeper(d.manager, d.config.Engine.SweepSchedule, d.config.Engine.IdleTimeout, zl)

	gw, err := gateway.NewServer(gateway.Config{
		Host:         d.config.Server.Host,
		Port:         d.config.Server.Port,
		SharedSecret: d.config.Server.SharedSecret,
		Engine:       d.manager,
		Bus:          d.bus,
		Archive:      d.archive,
		Logger:       zl,
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}
	d.gateway = gw

	return nil
}

// engineConfig maps the file configuration to engine turn parameters.
func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		Budget: render.Budget{
			MaxTokens:             cfg.Engine.MaxTokens,
			MinConversationTokens: cfg.Engine.MinConversationTokens,
			TrimToTokens:          cfg.Engine.TrimToTokens,
		},
		MaxItems:        cfg.Engine.MaxItems,
		MaxLogs:         cfg.Engine.MaxLogs,
		Model:           cfg.Model.Name,
		SystemPrompt:    cfg.Model.SystemPrompt,
		Temperature:     cfg.Model.Temperature,
		MaxOutputTokens: cfg.Model.MaxOutputTokens,
	}
}

// Start brings up the sweeper and gateway.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	if err := d.sweeper.Start(); err != nil {
		return err
	}
	if err := d.gateway.Start(); err != nil {
		d.sweeper.Stop()
		return err
	}

	d.logger.Info().
		Str("host", d.config.Server.Host).
		Int("port", d.config.Server.Port).
		Msg("Daemon started")
	return nil
}

// WatchConfig reloads engine parameters when the config file changes. The
// watcher runs until Stop. Structural settings (listener, provider,
// archive) keep their startup values.
func (d *Daemon) WatchConfig(loader *config.Loader) error {
	watcher, err := config.NewWatcher(loader, func(cfg *config.Config) {
		d.manager.UpdateConfig(engineConfig(cfg))
	}, d.logger.Zerolog())
	if err != nil {
		return err
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := watcher.Run(d.ctx); err != nil {
			d.logger.Warn().Err(err).Msg("Config watcher stopped")
		}
	}()
	return nil
}

// Stop shuts everything down in reverse startup order.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info().Msg("Stopping daemon")

	d.sweeper.Stop()
	if err := d.gateway.Stop(); err != nil {
		d.logger.Warn().Err(err).Msg("Gateway shutdown failed")
	}

	d.cancel()
	d.wg.Wait()

	if d.archive != nil {
		if err := d.archive.Close(); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to close archive")
		}
	}

	d.logger.Info().Msg("Daemon stopped")
	return nil
}

// Status reports the daemon's current condition.
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	st := Status{Running: d.running}
	if d.running {
		st.Uptime = time.Since(d.startTime)
		st.Sessions = d.manager.SessionCount()
		st.Clients = len(d.gateway.GetConnectedClients())
	}
	return st
}

// Manager exposes the session engine, for embedding and tests.
func (d *Daemon) Manager() *engine.Manager {
	return d.manager
}

// Handlers exposes the action handler registry so hosts can wire their
// application actions before Start.
func (d *Daemon) Handlers() *engine.HandlerRegistry {
	return d.handlers
}

// Bus exposes the event bus for additional subscribers.
func (d *Daemon) Bus() *eventbus.Bus {
	return d.bus
}
