package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AttuneLearning/cadencelms-report-engine/internal/config"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/log"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		logger := log.InitLog(log.Level(cfg.Service.LogLevel))
		defer func() { _ = logger.Sync() }()
		undo := zap.ReplaceGlobals(logger)
		defer undo()

		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalf("initializing data store: %v", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		if cfg.Database.Type == "pgsql" {
			if err := migrations.MigrateStore(db, cfg.Service.MigrationFolder); err != nil {
				zap.S().Fatalf("running migrations: %v", err)
			}
		} else {
			if err := s.AutoMigrate(); err != nil {
				zap.S().Fatalf("running migrations: %v", err)
			}
		}

		zap.S().Info("database migrated")
		return nil
	},
}
