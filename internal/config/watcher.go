package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ReloadFunc receives the freshly loaded configuration after a change.
type ReloadFunc func(*Config)

// Watcher reloads the configuration file when it changes on disk.
// Editors often replace files instead of writing in place, so the watch is
// on the containing directory with a short debounce.
type Watcher struct {
	loader   *Loader
	onReload ReloadFunc
	logger   zerolog.Logger
	debounce time.Duration
}

// NewWatcher creates a watcher for the loader's config file.
func NewWatcher(loader *Loader, onReload ReloadFunc, logger zerolog.Logger) (*Watcher, error) {
	if loader.Path() == "" {
		return nil, fmt.Errorf("config watcher requires an explicit config path")
	}
	return &Watcher{
		loader:   loader,
		onReload: onReload,
		logger:   logger,
		debounce: 250 * time.Millisecond,
	}, nil
}

// Run watches until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fs watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.loader.Path())
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(w.loader.Path())
	var timer *time.Timer
	pending := make(chan struct{}, 1)

	w.logger.Info().Str("path", target).Msg("Config watcher started")

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})

		case <-pending:
			cfg, err := w.loader.Load()
			if err != nil {
				w.logger.Warn().Err(err).Msg("Config reload failed, keeping previous configuration")
				continue
			}
			w.logger.Info().Msg("Config reloaded")
			w.onReload(cfg)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("Config watcher error")
		}
	}
}
