package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mnhsh/time-capsule/internal/config"
)

var (
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:           "time-capsule",
		Short:         "Time capsule API server and maintenance commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: cfg.Log.Level,
			})))
			return nil
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the expiration sweeper",
		RunE:  runServe,
	}

	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Run one expiration sweep and exit",
		RunE:  runSweep,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply the PostgreSQL schema",
		RunE:  runMigrate,
	}
)

func init() {
	rootCmd.AddCommand(serveCmd, sweepCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
