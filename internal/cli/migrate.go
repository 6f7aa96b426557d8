package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sparkcampus/doubts/backend/internal/database"
)

func newMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			db, err := opts.openDatabase(cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.Migrate(db.DB()); err != nil {
				return wrapExit(ExitCommandError, "migrate", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}
