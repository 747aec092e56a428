package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yukikurage/unica-api/internal/config"
	"github.com/yukikurage/unica-api/internal/database"
	"github.com/yukikurage/unica-api/internal/logger"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			log, err := logger.New(cfg.Server.LogLevel)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			if err := database.Connect(cfg, log); err != nil {
				return err
			}
			return database.Migrate(log)
		},
	}
}
