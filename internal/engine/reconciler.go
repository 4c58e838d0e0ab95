package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AttuneLearning/cadencelms-report-engine/internal/config"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/metrics"
)

const reclaimBatch = 50

// Reconciler reclaims jobs whose worker stopped heartbeating: a crashed
// process, a partitioned node, a kill -9. Reclaimed jobs go back through
// the retry policy, so a repeatedly dying job still exhausts its budget.
type Reconciler struct {
	store    store.Store
	retry    *RetryManager
	interval time.Duration
	log      *zap.SugaredLogger
}

func NewReconciler(s store.Store, retry *RetryManager, cfg *config.Config) *Reconciler {
	return &Reconciler{
		store:    s,
		retry:    retry,
		interval: cfg.Engine.ReconcileInterval,
		log:      zap.S().Named("reconciler"),
	}
}

func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.ReconcileOnce(ctx, time.Now())
		}
	}
}

// ReconcileOnce requeues or terminally fails every running job with an
// expired lease. The transitions are guarded by the same status checks
// workers use, so a worker that is merely slow and still finishes loses
// the race cleanly on one side or the other.
func (r *Reconciler) ReconcileOnce(ctx context.Context, now time.Time) {
	expired, err := r.store.Job().ExpiredLeases(ctx, now, reclaimBatch)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.log.Errorw("failed to list expired leases", "error", err)
		}
		return
	}

	for i := range expired {
		job := &expired[i]
		cause := Retryable(CodeWorkerLost, fmt.Errorf("lease held by %s expired", job.LeaseOwner))
		if _, err := r.retry.HandleFailure(ctx, job, cause); err != nil {
			if errors.Is(err, store.ErrStaleTransition) {
				// the worker came back and moved the job first
				continue
			}
			r.log.Errorw("failed to reclaim job", "job", job.ID, "error", err)
			continue
		}
		metrics.IncStaleLeaseReclaimed()
		r.log.Warnw("reclaimed stale lease", "job", job.ID, "owner", job.LeaseOwner)
	}
}
