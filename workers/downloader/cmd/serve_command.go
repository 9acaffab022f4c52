package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mangadownloader/workers/downloader/internal/app"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var seedFiles []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Consume download jobs until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			seeds := make([][]byte, 0, len(seedFiles))
			for _, path := range seedFiles {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read seed job: %w", err)
				}
				seeds = append(seeds, data)
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			obs, err := ctx.observability(runCtx)
			if err != nil {
				return err
			}
			logger, metrics, err := obs.ComponentsScoped("main")
			if err != nil {
				return err
			}

			logger.Info("Starting application",
				"service", cfg.ServiceName,
				"version", cfg.Version,
				"environment", cfg.Environment,
				"runtime", cfg.Adapters.Runtime)
			metrics.IncrementCounter("application.starts", nil)

			worker, err := app.New(runCtx, cfg, obs)
			if err != nil {
				logger.Error("Failed to initialize worker", "error", err)
				return err
			}
			defer func() {
				if err := worker.Close(); err != nil {
					logger.Error("Failed to release resources", "error", err)
				}
			}()

			rt, err := worker.Runtime(runCtx, seeds...)
			if err != nil {
				return err
			}

			runErr := rt.Start(runCtx)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := rt.Stop(shutdownCtx); err != nil {
				logger.Error("Failed to stop runtime", "error", err)
			}

			if runErr != nil {
				logger.Error("Runtime stopped with error", "error", runErr)
				return runErr
			}
			logger.Info("Shutdown complete")
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&seedFiles, "seed", nil, "Job JSON files to queue before consuming (memory runtime only)")
	return cmd
}
