package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mnhsh/time-capsule/internal/config"
	"github.com/mnhsh/time-capsule/internal/database"
)

func runMigrate(cmd *cobra.Command, _ []string) error {
	if cfg.Store.Backend != config.BackendPostgres {
		return fmt.Errorf("migrate needs the %s backend, got %q", config.BackendPostgres, cfg.Store.Backend)
	}
	db, err := database.Open(cmd.Context(), cfg.Store.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(cmd.Context(), db); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	slog.Info("schema applied")
	return nil
}
