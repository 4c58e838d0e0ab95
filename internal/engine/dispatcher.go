package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"

	"github.com/AttuneLearning/cadencelms-report-engine/internal/config"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store/model"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/metrics"
)

// claimBatch bounds how many eligible candidates one claim pass inspects.
// Large enough to skip over department-capped jobs, small enough to keep
// the poll query cheap.
const claimBatch = 10

// Dispatcher polls the queue and claims eligible jobs into worker slots.
// Claiming is a compare-and-set on the job row, so any number of
// dispatcher replicas can poll the same database and each job still runs
// exactly once.
type Dispatcher struct {
	store           store.Store
	executor        *Executor
	owner           string
	interval        time.Duration
	leaseTTL        time.Duration
	departmentSlots int
	slots           chan struct{}
	wg              sync.WaitGroup
	log             *zap.SugaredLogger
}

func NewDispatcher(s store.Store, executor *Executor, owner string, cfg *config.Config) *Dispatcher {
	return &Dispatcher{
		store:           s,
		executor:        executor,
		owner:           owner,
		interval:        cfg.Engine.DispatchInterval,
		leaseTTL:        cfg.Engine.LeaseTTL,
		departmentSlots: cfg.Engine.DepartmentSlots,
		slots:           make(chan struct{}, cfg.Engine.WorkerSlots),
		log:             zap.S().Named("dispatcher"),
	}
}

// Run polls for work until ctx is cancelled, then waits for in-flight
// jobs to finish. Workers run on a detached context: shutdown drains them
// rather than aborting mid-render, and a hard crash is covered by lease
// expiry.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := jitterbug.New(d.interval, &jitterbug.Norm{Stdev: d.interval / 10})
	defer ticker.Stop()

	for {
		d.DispatchOnce(ctx)
		select {
		case <-ctx.Done():
			d.log.Info("draining in-flight jobs")
			d.wg.Wait()
			return nil
		case <-ticker.C:
		}
	}
}

// DispatchOnce claims and starts as many eligible jobs as free slots
// allow.
func (d *Dispatcher) DispatchOnce(ctx context.Context) {
	for {
		select {
		case d.slots <- struct{}{}:
		default:
			return
		}

		job := d.claimNext(ctx)
		if job == nil {
			<-d.slots
			return
		}

		d.wg.Add(1)
		go func() {
			defer func() {
				<-d.slots
				d.wg.Done()
			}()
			d.executor.Execute(context.WithoutCancel(ctx), job)
		}()
	}
}

// claimNext walks the eligible jobs in dispatch order (priority, then
// submission time) and returns the first one it wins. Candidates whose
// department is at its running cap are passed over; they stay queued.
func (d *Dispatcher) claimNext(ctx context.Context) *model.Job {
	candidates, err := d.store.Job().NextEligible(ctx, time.Now(), claimBatch)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			d.log.Errorw("failed to list eligible jobs", "error", err)
		}
		return nil
	}

	for i := range candidates {
		candidate := &candidates[i]
		if d.departmentCapped(ctx, candidate) {
			continue
		}

		claimed, err := d.store.Job().Claim(ctx, candidate.ID, d.owner, time.Now(), d.leaseTTL)
		switch {
		case err == nil:
			metrics.IncDispatchClaim("claimed")
			return claimed
		case errors.Is(err, store.ErrStaleTransition):
			// another dispatcher won this row, try the next candidate
			metrics.IncDispatchClaim("lost")
		default:
			metrics.IncDispatchClaim("error")
			d.log.Errorw("failed to claim job", "job", candidate.ID, "error", err)
			return nil
		}
	}
	return nil
}

func (d *Dispatcher) departmentCapped(ctx context.Context, job *model.Job) bool {
	if d.departmentSlots <= 0 || job.DepartmentID.IsNil() {
		return false
	}
	running, err := d.store.Job().CountRunningByDepartment(ctx, job.DepartmentID)
	if err != nil {
		d.log.Errorw("failed to count department jobs", "department", job.DepartmentID, "error", err)
		return true
	}
	return running >= int64(d.departmentSlots)
}
