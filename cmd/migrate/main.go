package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"zenfocus/backend/internal/config"
	"zenfocus/backend/internal/db"
	"zenfocus/backend/internal/logging"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "zenfocus-migrate",
		Short:        "Apply pending database migrations and exit",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			database, err := db.OpenSQLite(cfg.DBPath)
			if err != nil {
				logger.Error("open database", zap.Error(err))
				return err
			}
			defer database.Close()

			applied, err := db.RunMigrations(database, cfg.MigrationsDir, logger)
			if err != nil {
				logger.Error("run migrations", zap.Error(err))
				return err
			}

			logger.Info("migrations applied successfully", zap.Int("applied", applied))
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	return cmd
}
