package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apiserver "github.com/AttuneLearning/cadencelms-report-engine/internal/api_server"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/config"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/engine"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/events"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/report"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/storage"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/log"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/migrations"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the report engine: API server, dispatcher, trigger and reconciler",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		logger := log.InitLog(log.Level(cfg.Service.LogLevel))
		defer func() { _ = logger.Sync() }()
		undo := zap.ReplaceGlobals(logger)
		defer undo()

		zap.S().Info("Starting report engine")
		defer zap.S().Info("Report engine stopped")

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

		provider, err := storage.NewProvider(cfg)
		if err != nil {
			zap.S().Fatalf("initializing artifact storage: %v", err)
		}

		producer := events.NewEventProducer(&events.StdoutWriter{})
		defer producer.Close()

		registry := report.DefaultRegistry()
		renderers := report.DefaultRenderers()
		source := report.NewStaticSource(registry, 40)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.Address)
			if err != nil {
				zap.S().Fatalf("creating listener: %v", err)
			}

			server := apiserver.New(cfg, s, registry, provider, producer, listener)
			if err := server.Run(ctx); err != nil {
				zap.S().Fatalf("running api server: %v", err)
			}
		}()

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				zap.S().Fatalf("creating metrics listener: %v", err)
			}

			metricsServer := apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener)
			if err := metricsServer.Run(ctx); err != nil {
				zap.S().Fatalf("running metrics server: %v", err)
			}
		}()

		eng := engine.New(cfg, s, registry, source, renderers, provider, producer)
		if err := eng.Run(ctx); err != nil {
			zap.S().Fatalf("running engine: %v", err)
		}

		return nil
	},
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
