package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"

	"github.com/AttuneLearning/cadencelms-report-engine/internal/config"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/events"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/occurrence"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store/model"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/metrics"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
)

// Trigger fires due schedules by enqueueing report jobs. The unique
// (schedule, occurrence) index on jobs makes firing idempotent: when
// several trigger replicas see the same due schedule, one insert wins and
// the rest observe a duplicate and only advance.
type Trigger struct {
	store    store.Store
	producer *events.EventProducer
	interval time.Duration
	log      *zap.SugaredLogger
}

func NewTrigger(s store.Store, producer *events.EventProducer, cfg *config.Config) *Trigger {
	return &Trigger{
		store:    s,
		producer: producer,
		interval: cfg.Engine.TriggerInterval,
		log:      zap.S().Named("trigger"),
	}
}

func (t *Trigger) Run(ctx context.Context) error {
	ticker := jitterbug.New(t.interval, &jitterbug.Norm{Stdev: t.interval / 10})
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.TickOnce(ctx, time.Now())
		}
	}
}

// TickOnce fires every schedule due at now. Schedules fail independently;
// one broken schedule never blocks the rest of the tick.
func (t *Trigger) TickOnce(ctx context.Context, now time.Time) {
	due, err := t.store.Schedule().Due(ctx, now)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			t.log.Errorw("failed to list due schedules", "error", err)
		}
		return
	}

	for i := range due {
		if err := t.fire(ctx, &due[i], now); err != nil {
			metrics.IncScheduleFiring("error")
			t.log.Errorw("failed to fire schedule", "schedule", due[i].ID, "error", err)
		}
	}
}

func (t *Trigger) fire(ctx context.Context, schedule *model.Schedule, now time.Time) error {
	if schedule.NextRunAt == nil {
		return fmt.Errorf("schedule %s is active without a next run time", schedule.ID)
	}
	runAt := *schedule.NextRunAt

	job := model.Job{
		ID:             oid.New(),
		ReportType:     schedule.ReportType,
		Name:           fmt.Sprintf("%s (%s)", schedule.Name, runAt.UTC().Format("2006-01-02 15:04")),
		Parameters:     schedule.Parameters,
		OutputFormat:   schedule.OutputFormat,
		OutputFilename: schedule.OutputFilename,
		Priority:       schedule.Priority,
		Status:         model.JobStatusQueued,
		RequestedBy:    schedule.CreatedBy,
		DepartmentID:   schedule.DepartmentID,
		TemplateID:     schedule.TemplateID,
		ScheduleID:     schedule.ID,
		ScheduledFor:   &runAt,
	}

	created, err := t.store.Job().Create(ctx, job)
	switch {
	case err == nil:
		metrics.IncScheduleFiring("created")
		t.log.Infow("schedule fired",
			"schedule", schedule.ID, "job", created.ID, "occurrence", runAt.Format(time.RFC3339))
		if t.producer != nil {
			_ = t.producer.Emit(events.ScheduleMessageKind, events.ScheduleEvent{
				ScheduleID: schedule.ID,
				JobID:      created.ID,
				FiredFor:   runAt,
				Delivery:   schedule.Delivery,
			})
		}
	case errors.Is(err, store.ErrDuplicateKey):
		// another replica enqueued this occurrence, advance only
		metrics.IncScheduleFiring("deduplicated")
	default:
		return err
	}

	next, err := occurrence.Advance(schedule.Frequency, runAt, schedule.Timezone, schedule.TimeOfDay)
	if err != nil {
		return err
	}
	// After downtime a single job fires for the schedule; the other
	// missed occurrences are skipped, never backfilled.
	for next != nil && !next.After(now) {
		next, err = occurrence.Advance(schedule.Frequency, *next, schedule.Timezone, schedule.TimeOfDay)
		if err != nil {
			return err
		}
	}

	active := next != nil
	return t.store.Schedule().Advance(ctx, schedule.ID, now, next, active)
}
