package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meetsmatch/matchqueue/internal/config"
	"github.com/meetsmatch/matchqueue/internal/database"
	apperrors "github.com/meetsmatch/matchqueue/internal/errors"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or revert the database schema",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(database.MigrateUp), string(database.MigrateDown)},
	RunE: func(cmd *cobra.Command, args []string) error {
		direction := database.MigrateUp
		if len(args) == 1 {
			direction = database.MigrationDirection(args[0])
		}

		ctx := cmd.Context()
		rt, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		if rt.cfg.Matching.StorageDriver != config.StorageDriverPostgres {
			return apperrors.NewConfigurationError("matching.storage_driver", "migrate requires the postgres storage driver")
		}

		db, err := database.NewConnection(ctx, rt.cfg.Database)
		if err != nil {
			return apperrors.NewDatabaseError("connect", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx, direction); err != nil {
			return fmt.Errorf("migrate %s: %w", direction, err)
		}
		return nil
	},
}
