package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mangadownloader/shared/application/ports"
	"mangadownloader/shared/infrastructure/queue"
	"mangadownloader/shared/infrastructure/runtime"
	"mangadownloader/workers/downloader/internal/domain"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <job.json>",
		Short: "Publish a download job to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			body, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read job: %w", err)
			}

			var job domain.Job
			if err := json.Unmarshal(body, &job); err != nil {
				return fmt.Errorf("invalid job file: %w", err)
			}

			obs, err := ctx.observability(cmd.Context())
			if err != nil {
				return err
			}

			broker, err := queue.CreateBroker(cfg, obs)
			if err != nil {
				return err
			}
			defer broker.Close()

			if err := broker.Connect(cmd.Context()); err != nil {
				return err
			}
			if err := broker.DeclareQueue(cmd.Context(), ports.QueueSpec{
				Name:     cfg.Queue.Name,
				Durable:  true,
				Prefetch: runtime.ConsumerPrefetch,
			}); err != nil {
				return err
			}
			if err := broker.Publish(cmd.Context(), cfg.Queue.Name, body); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Queued %s (%d pages) on %s\n", job.Label(), len(job.Images), cfg.Queue.Name)
			return nil
		},
	}
}
