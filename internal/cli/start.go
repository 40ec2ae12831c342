package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lunarc/sash/internal/config"
	"github.com/lunarc/sash/internal/daemon"
	"github.com/lunarc/sash/internal/logger"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sashd daemon",
	Long: `Start the sashd daemon in the foreground. The daemon serves the session
engine over WebSocket and HTTP JSON-RPC until interrupted.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Close()

	d, err := daemon.New(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.Start(); err != nil {
		return err
	}

	// Hot reload only works with an explicit config file; the fallback
	// search path has nothing stable to watch.
	if cfgFile != "" {
		if err := d.WatchConfig(loader); err != nil {
			log.Warn().Err(err).Msg("Config watching disabled")
		}
	}

	<-ctx.Done()
	return d.Stop()
}
