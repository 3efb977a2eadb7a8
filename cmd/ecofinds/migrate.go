package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/ecofinds/marketplace/internal/config"
	"github.com/ecofinds/marketplace/internal/logger"
	"github.com/ecofinds/marketplace/internal/repository"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create Mongo indexes and apply audit store migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			log := logger.New(os.Stdout, cfg.LogLevel)
			ctx := cmd.Context()

			deps, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer deps.Close(context.Background())

			if err := repository.CreateIndexes(ctx, deps.db); err != nil {
				return err
			}
			log.Info("mongo indexes created", "db", cfg.MongoDBName)

			if err := deps.audit.RunMigrations(cfg.MigrationsPath); err != nil {
				return err
			}
			log.Info("audit migrations applied", "driver", cfg.AuditDriver, "path", cfg.MigrationsPath)
			return nil
		},
	}
}
