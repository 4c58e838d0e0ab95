package apiserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/AttuneLearning/cadencelms-report-engine/internal/config"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/events"
	handlers "github.com/AttuneLearning/cadencelms-report-engine/internal/handlers/v1alpha1"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/report"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/service"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/storage"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/log"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/metrics"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/middleware"
)

const gracefulShutdownTimeout = 5 * time.Second

type Server struct {
	cfg      *config.Config
	store    store.Store
	registry *report.Registry
	provider storage.Provider
	producer *events.EventProducer
	listener net.Listener
}

// New returns a new instance of the report engine API server.
func New(
	cfg *config.Config,
	store store.Store,
	registry *report.Registry,
	provider storage.Provider,
	producer *events.EventProducer,
	listener net.Listener,
) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		registry: registry,
		provider: provider,
		producer: producer,
		listener: listener,
	}
}

func (s *Server) Run(ctx context.Context) error {
	zap.S().Named("api_server").Info("Initializing API server")

	router := chi.NewRouter()

	metricMiddleware := metrics.NewMiddleware("api_server")
	metricMiddleware.MustRegisterDefault()

	router.Use(
		metricMiddleware.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.Service.CorsOrigins,
			AllowedMethods:   []string{"GET", "PUT", "PATCH", "POST", "DELETE", "HEAD", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		middleware.RequestID,
		log.Logger(zap.L(), "router"),
		chiMiddleware.Recoverer,
	)

	h := handlers.NewServiceHandler(
		service.NewJobService(s.store, s.registry, s.provider, s.producer),
		service.NewScheduleService(s.store, s.registry),
		service.NewTemplateService(s.store, s.registry),
	)
	h.Routes(router)

	srv := http.Server{Addr: s.cfg.Service.Address, Handler: router}

	go func() {
		<-ctx.Done()
		zap.S().Named("api_server").Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		zap.S().Named("api_server").Info("api server terminated")
	}()

	zap.S().Named("api_server").Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
