package main

import (
	"github.com/spf13/cobra"

	"backend/internal/config"
	"backend/internal/database"
	"backend/internal/logger"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the outreach site tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Environment)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			pool, err := database.Connect(cmd.Context(), cfg.DB, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			return database.RunMigrations(cmd.Context(), pool, log)
		},
	}
}
