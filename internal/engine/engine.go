// Package engine drives report jobs from queued to a terminal state. The
// dispatcher claims work by compare-and-set, the executor generates and
// uploads artifacts under a heartbeat lease, the trigger fires schedules
// idempotently and the reconciler reclaims leases of dead workers. All
// coordination happens through the job store, so multiple engine
// instances can share one database.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AttuneLearning/cadencelms-report-engine/internal/config"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/events"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/report"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/report/types"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/storage"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store/model"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/metrics"
)

const statusCountInterval = 15 * time.Second

type Engine struct {
	store      store.Store
	dispatcher *Dispatcher
	trigger    *Trigger
	reconciler *Reconciler
	log        *zap.SugaredLogger
}

// New wires an engine instance. The generated owner id identifies this
// instance's leases in the database.
func New(
	cfg *config.Config,
	s store.Store,
	registry *report.Registry,
	source types.DataSource,
	renderers *report.Renderers,
	provider storage.Provider,
	producer *events.EventProducer,
) *Engine {
	owner := uuid.NewString()
	retry := NewRetryManager(s, registry, producer, cfg)
	executor := NewExecutor(s, source, renderers, provider, retry, producer, owner, cfg)

	return &Engine{
		store:      s,
		dispatcher: NewDispatcher(s, executor, owner, cfg),
		trigger:    NewTrigger(s, producer, cfg),
		reconciler: NewReconciler(s, retry, cfg),
		log:        zap.S().Named("engine").With("owner", owner),
	}
}

// Run blocks until ctx is cancelled, then drains in-flight jobs.
func (e *Engine) Run(ctx context.Context) error {
	// leases orphaned by a previous crash are reclaimed before new work starts
	e.reconciler.ReconcileOnce(ctx, time.Now())
	e.log.Info("engine started")

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return e.dispatcher.Run(ctx) })
	group.Go(func() error { return e.trigger.Run(ctx) })
	group.Go(func() error { return e.reconciler.Run(ctx) })
	group.Go(func() error { return e.publishStatusCounts(ctx) })
	err := group.Wait()
	e.log.Info("engine stopped")
	return err
}

func (e *Engine) publishStatusCounts(ctx context.Context) error {
	ticker := time.NewTicker(statusCountInterval)
	defer ticker.Stop()

	statuses := []model.JobStatus{
		model.JobStatusQueued,
		model.JobStatusRunning,
		model.JobStatusCompleted,
		model.JobStatusFailed,
		model.JobStatusCancelled,
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			counts, err := e.store.Job().StatusCounts(ctx)
			if err != nil {
				continue
			}
			for _, s := range statuses {
				metrics.SetJobStatusCount(string(s), int(counts[s]))
			}
		}
	}
}
