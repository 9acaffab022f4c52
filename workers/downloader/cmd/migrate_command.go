package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mangadownloader/shared/infrastructure/database"
	"mangadownloader/shared/infrastructure/repository"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the bookkeeping tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			obs, err := ctx.observability(cmd.Context())
			if err != nil {
				return err
			}
			logger, err := obs.LoggerScoped("migrate")
			if err != nil {
				return err
			}

			db, err := database.CreateDatabase(cfg, obs)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := repository.Migrate(cmd.Context(), db, logger); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema ready on %s\n", db.DriverName())
			return nil
		},
	}
}
