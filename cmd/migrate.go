package main

import (
	"github.com/spf13/cobra"
	"github.com/yakoovad/squad-roster/internal/config"
	"github.com/yakoovad/squad-roster/internal/db"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, l, err := bootstrap()
			if err != nil {
				return err
			}
			defer l.Sync()

			if cfg.Database.URL == "" {
				return config.ErrMissingDatabaseURL
			}

			pool, err := openPool(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err = db.Migrate(cmd.Context(), pool); err != nil {
				return err
			}

			l.Info("schema applied")
			return nil
		},
	}
}
