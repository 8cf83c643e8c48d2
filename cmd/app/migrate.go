package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wichananm65/checkout-backend/internal/config"
	"github.com/wichananm65/checkout-backend/internal/database"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "migrate",
		Short:        "Apply the embedded database migrations",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.Open(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
