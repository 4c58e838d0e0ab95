package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/AttuneLearning/cadencelms-report-engine/internal/config"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/events"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/report"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store/model"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/metrics"
)

// RetryManager decides what happens to a failed attempt: requeue with
// backoff while the report type's retry budget lasts, terminal failure
// otherwise. It never sleeps; delay is recorded as next_attempt_at and
// enforced by dispatch eligibility, so pending retries survive restarts.
type RetryManager struct {
	store             store.Store
	registry          *report.Registry
	producer          *events.EventProducer
	baseDelay         time.Duration
	maxDelay          time.Duration
	defaultMaxRetries int
	log               *zap.SugaredLogger
}

func NewRetryManager(s store.Store, registry *report.Registry, producer *events.EventProducer, cfg *config.Config) *RetryManager {
	return &RetryManager{
		store:             s,
		registry:          registry,
		producer:          producer,
		baseDelay:         cfg.Engine.RetryBaseDelay,
		maxDelay:          cfg.Engine.RetryMaxDelay,
		defaultMaxRetries: cfg.Engine.DefaultMaxRetries,
		log:               zap.S().Named("retry"),
	}
}

// Backoff returns the delay before the attempt after retryCount failures:
// baseDelay doubled per prior retry, capped at maxDelay.
func (m *RetryManager) Backoff(retryCount int) time.Duration {
	d := m.baseDelay
	for i := 0; i < retryCount; i++ {
		d *= 2
		if d >= m.maxDelay || d <= 0 {
			return m.maxDelay
		}
	}
	if d > m.maxDelay {
		return m.maxDelay
	}
	return d
}

// HandleFailure applies the retry policy to a running job whose attempt
// failed with cause. Returns the job in its new state. A stale transition
// error means another actor moved the job first; callers treat that as
// losing the race, not as a failure.
func (m *RetryManager) HandleFailure(ctx context.Context, job *model.Job, cause error) (*model.Job, error) {
	code, retryable := classify(cause)
	budget := m.registry.MaxRetries(job.ReportType, m.defaultMaxRetries)
	now := time.Now()

	if !retryable || job.RetryCount >= budget {
		failed, err := m.store.Job().FailTerminal(ctx, job.ID, model.JobStatusRunning, code, cause.Error(), now)
		if err != nil {
			return nil, err
		}
		m.log.Warnw("job failed terminally",
			"job", job.ID, "type", job.ReportType, "code", code, "retryCount", failed.RetryCount)
		m.emit(failed)
		return failed, nil
	}

	next := now.Add(m.Backoff(job.RetryCount))
	requeued, err := m.store.Job().Requeue(ctx, job.ID, model.JobStatusRunning, job.RetryCount+1, now, &next)
	if err != nil {
		return nil, err
	}
	metrics.IncJobRetry(job.ReportType)
	m.log.Infow("job requeued for retry",
		"job", job.ID, "type", job.ReportType, "code", code,
		"retryCount", requeued.RetryCount, "nextAttemptAt", next.Format(time.RFC3339))
	m.emit(requeued)
	return requeued, nil
}

func (m *RetryManager) emit(job *model.Job) {
	if m.producer == nil {
		return
	}
	_ = m.producer.Emit(events.JobMessageKind, events.JobEvent{
		JobID:        job.ID,
		ReportType:   job.ReportType,
		Status:       string(job.Status),
		RetryCount:   job.RetryCount,
		ErrorCode:    job.ErrorCode,
		DepartmentID: job.DepartmentID,
	})
}
