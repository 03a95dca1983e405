package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"budgetly/internal/backend"
	"budgetly/internal/cli"
	"budgetly/internal/config"
	"budgetly/internal/log"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the configured SQL backend",
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := cli.Bootstrap()
	if err != nil {
		return err
	}
	if cfg.DataBackend == config.BackendMemory {
		logger.Info("Memory backend has no schema, nothing to migrate")
		return nil
	}

	logger.Info("Running database migrations", log.FieldBackend, cfg.DataBackend, log.FieldOperation, log.OpMigrate)
	// Opening a SQL store applies every pending migration.
	store, err := backend.NewStore(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	logger.Info("Database migrations completed")
	return nil
}
