package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mangadownloader/shared/infrastructure/database"
	"mangadownloader/shared/infrastructure/repository"
)

func newExcludeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "exclude <title> <chapter>",
		Short: "Stop a chapter from being downloaded",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			obs, err := ctx.observability(cmd.Context())
			if err != nil {
				return err
			}

			db, err := database.CreateDatabase(cfg, obs)
			if err != nil {
				return err
			}
			defer db.Close()

			repos, err := repository.NewRepositories(db, obs)
			if err != nil {
				return err
			}
			if err := repos.Metadata().AddExcludedChapter(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Excluded %s chapter %s\n", args[0], args[1])
			return nil
		},
	}
}
