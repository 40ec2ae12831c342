package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper evicts idle sessions on a cron schedule. Evicted transcripts go
// to the manager's archive when one is wired.
type Sweeper struct {
	manager     *Manager
	schedule    string
	idleTimeout time.Duration
	cron        *cron.Cron
	logger      zerolog.Logger
}

// NewSweeper creates a sweeper. The schedule uses cron syntax, including
// the @every form.
func NewSweeper(m *Manager, schedule string, idleTimeout time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		manager:     m,
		schedule:    schedule,
		idleTimeout: idleTimeout,
		logger:      logger.With().Str("component", "sweeper").Logger(),
	}
}

// Start schedules the sweep and begins running it.
func (s *Sweeper) Start() error {
	c := cron.New()
	_, err := c.AddFunc(s.schedule, s.sweep)
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}
	s.cron = c
	c.Start()
	s.logger.Info().
		Str("schedule", s.schedule).
		Dur("idle_timeout", s.idleTimeout).
		Msg("Session sweeper started")
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Session sweeper stopped")
}

func (s *Sweeper) sweep() {
	n := s.manager.EvictIdle(context.Background(), s.idleTimeout)
	if n > 0 {
		s.logger.Info().Int("evicted", n).Msg("Idle sessions evicted")
	}
}
