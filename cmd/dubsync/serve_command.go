package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dubsync/internal/daemon"
	"dubsync/internal/logging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon and its HTTP status surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			runName := time.Now().UTC().Format("20060102T150405.000Z")
			logger, engine, closeStore, err := openRuntime(cfg, runName)
			if err != nil {
				return err
			}
			defer closeStore()

			d, err := daemon.New(cfg, engine, logger)
			if err != nil {
				return fmt.Errorf("create daemon: %w", err)
			}
			if err := d.Start(signalCtx); err != nil {
				return err
			}
			logger.Info("dubsync ready",
				logging.String("api", d.Addr()),
				logging.String("output_dir", cfg.Paths.OutputDir),
			)

			<-signalCtx.Done()
			logger.Info("dubsync daemon shutting down")
			d.Stop()
			return nil
		},
	}
}
