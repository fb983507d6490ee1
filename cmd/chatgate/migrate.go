package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"chatgate/internal/config"
	"chatgate/internal/store"
)

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	var dryRun bool
	var inspect bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run or inspect attachment registry migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if inspect || dryRun {
				db, err := openRawDB(cfg.Backend.DBPath)
				if err != nil {
					return err
				}
				defer db.Close()

				plan, err := store.MigrationPlan(db)
				if err != nil {
					return fmt.Errorf("inspect migrations: %w", err)
				}
				return writeStructured(plan)
			}

			st, err := store.Open(cfg.Backend.DBPath)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer st.Close()

			plan, err := st.MigrationPlan()
			if err != nil {
				return err
			}
			return writeStructured(plan)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show pending migrations without applying")
	cmd.Flags().BoolVar(&inspect, "inspect", false, "show migration status")

	return cmd
}

func openRawDB(path string) (*sql.DB, error) {
	return store.OpenRaw(path)
}
