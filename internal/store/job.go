package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	api "github.com/AttuneLearning/cadencelms-report-engine/api/v1alpha1"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store/model"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
)

// Progress is a worker-reported progress snapshot.
type Progress struct {
	Percent   int
	Step      string
	Processed *int64
	Total     *int64
}

// Job is the durable job store. Every status transition is expressed as a
// compare-and-set guarded by the expected current status (and, for
// worker-held jobs, the lease owner), so racing actors resolve to exactly
// one winner.
type Job interface {
	Create(ctx context.Context, job model.Job) (*model.Job, error)
	Get(ctx context.Context, id oid.ID) (*model.Job, error)
	List(ctx context.Context, filter *JobQueryFilter, opts *JobQueryOptions) (model.JobList, error)
	Count(ctx context.Context, filter *JobQueryFilter) (int64, error)

	NextEligible(ctx context.Context, now time.Time, limit int) (model.JobList, error)
	Claim(ctx context.Context, id oid.ID, owner string, now time.Time, leaseTTL time.Duration) (*model.Job, error)
	Heartbeat(ctx context.Context, id oid.ID, owner string, p Progress, now time.Time, leaseTTL time.Duration) (*model.Job, error)
	Complete(ctx context.Context, id oid.ID, owner string, storage api.StorageDescriptor, expiresAt, now time.Time) (*model.Job, error)
	MarkCancelled(ctx context.Context, id oid.ID, owner string, now time.Time) (*model.Job, error)
	RequestCancel(ctx context.Context, id oid.ID, reason string, now time.Time) (*model.Job, error)
	FailTerminal(ctx context.Context, id oid.ID, expect model.JobStatus, code, message string, now time.Time) (*model.Job, error)
	Requeue(ctx context.Context, id oid.ID, expect model.JobStatus, retryCount int, lastRetryAt time.Time, nextAttemptAt *time.Time) (*model.Job, error)

	CountQueuedAhead(ctx context.Context, priority model.Priority, createdAt, now time.Time) (int64, error)
	AverageDuration(ctx context.Context, reportType string) (time.Duration, error)
	CountRunning(ctx context.Context) (int64, error)
	CountRunningByDepartment(ctx context.Context, departmentID oid.ID) (int64, error)
	ExpiredLeases(ctx context.Context, now time.Time, limit int) (model.JobList, error)
	StatusCounts(ctx context.Context) (map[model.JobStatus]int64, error)
}

type JobStore struct {
	db *gorm.DB
}

// Make sure we conform to Job interface
var _ Job = (*JobStore)(nil)

func NewJobStore(db *gorm.DB) Job {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, job model.Job) (*model.Job, error) {
	result := s.getDB(ctx).Clauses(clause.Returning{}).Create(&job)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating job: %w", result.Error)
	}
	return &job, nil
}

func (s *JobStore) Get(ctx context.Context, id oid.ID) (*model.Job, error) {
	var job model.Job
	result := s.getDB(ctx).First(&job, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying job: %w", result.Error)
	}
	return &job, nil
}

func (s *JobStore) List(ctx context.Context, filter *JobQueryFilter, opts *JobQueryOptions) (model.JobList, error) {
	var jobs model.JobList
	tx := s.getDB(ctx).Model(&model.Job{})

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}
	if opts != nil {
		for _, fn := range opts.QueryFn {
			tx = fn(tx)
		}
	}

	if result := tx.Find(&jobs); result.Error != nil {
		return nil, result.Error
	}
	return jobs, nil
}

func (s *JobStore) Count(ctx context.Context, filter *JobQueryFilter) (int64, error) {
	var count int64
	tx := s.getDB(ctx).Model(&model.Job{})
	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}
	if result := tx.Count(&count); result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}

// eligible scopes a query to queued jobs the dispatcher may claim now:
// not deferred into the future and not waiting out a retry delay.
func eligible(tx *gorm.DB, now time.Time) *gorm.DB {
	return tx.
		Where("status = ?", model.JobStatusQueued).
		Where("scheduled_for IS NULL OR scheduled_for <= ?", now).
		Where("next_attempt_at IS NULL OR next_attempt_at <= ?", now)
}

func (s *JobStore) NextEligible(ctx context.Context, now time.Time, limit int) (model.JobList, error) {
	var jobs model.JobList
	tx := eligible(s.getDB(ctx).Model(&model.Job{}), now).
		Order("priority DESC").
		Order("created_at ASC").
		Limit(limit)

	if result := tx.Find(&jobs); result.Error != nil {
		return nil, result.Error
	}
	return jobs, nil
}

// Claim atomically transitions queued -> running. A cancel request or a
// competing dispatcher landing first makes the guarded update match no
// rows, which surfaces as ErrStaleTransition.
func (s *JobStore) Claim(ctx context.Context, id oid.ID, owner string, now time.Time, leaseTTL time.Duration) (*model.Job, error) {
	tx := eligible(s.getDB(ctx).Model(&model.Job{}).Where("id = ?", id), now).
		Updates(map[string]any{
			"status":           model.JobStatusRunning,
			"started_at":       now,
			"lease_owner":      owner,
			"lease_expires_at": now.Add(leaseTTL),
			"updated_at":       now,
		})
	if tx.Error != nil {
		return nil, fmt.Errorf("claiming job: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil, ErrStaleTransition
	}
	return s.Get(ctx, id)
}

// Heartbeat renews the worker's lease and records progress. The percentage
// guard in the WHERE clause keeps progress monotonic: a regressing update
// only renews the lease. The returned row carries the cooperative
// cancellation flag for the executor to check.
func (s *JobStore) Heartbeat(ctx context.Context, id oid.ID, owner string, p Progress, now time.Time, leaseTTL time.Duration) (*model.Job, error) {
	held := func() *gorm.DB {
		return s.getDB(ctx).Model(&model.Job{}).
			Where("id = ? AND status = ? AND lease_owner = ?", id, model.JobStatusRunning, owner)
	}

	tx := held().
		Where("progress_percent <= ?", p.Percent).
		Updates(map[string]any{
			"progress_percent":  p.Percent,
			"progress_step":     p.Step,
			"processed_records": p.Processed,
			"total_records":     p.Total,
			"lease_expires_at":  now.Add(leaseTTL),
			"updated_at":        now,
		})
	if tx.Error != nil {
		return nil, fmt.Errorf("recording progress: %w", tx.Error)
	}

	if tx.RowsAffected == 0 {
		// regressed percentage, or the job is no longer ours
		renew := held().Updates(map[string]any{
			"lease_expires_at": now.Add(leaseTTL),
			"updated_at":       now,
		})
		if renew.Error != nil {
			return nil, fmt.Errorf("renewing lease: %w", renew.Error)
		}
		if renew.RowsAffected == 0 {
			return nil, ErrStaleTransition
		}
	}

	return s.Get(ctx, id)
}

func (s *JobStore) Complete(ctx context.Context, id oid.ID, owner string, storage api.StorageDescriptor, expiresAt, now time.Time) (*model.Job, error) {
	tx := s.getDB(ctx).Model(&model.Job{}).
		Where("id = ? AND status = ? AND lease_owner = ?", id, model.JobStatusRunning, owner).
		Updates(map[string]any{
			"status":            model.JobStatusCompleted,
			"completed_at":      now,
			"progress_percent":  100,
			"progress_step":     "done",
			"output_storage":    model.MakeJSONField(storage),
			"output_expires_at": expiresAt,
			"lease_owner":       "",
			"lease_expires_at":  nil,
			"updated_at":        now,
		})
	if tx.Error != nil {
		return nil, fmt.Errorf("completing job: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil, ErrStaleTransition
	}
	return s.Get(ctx, id)
}

// MarkCancelled is the executor acknowledging a cooperative cancel from
// the running state. Partial output is never recorded.
func (s *JobStore) MarkCancelled(ctx context.Context, id oid.ID, owner string, now time.Time) (*model.Job, error) {
	tx := s.getDB(ctx).Model(&model.Job{}).
		Where("id = ? AND status = ? AND lease_owner = ?", id, model.JobStatusRunning, owner).
		Updates(map[string]any{
			"status":           model.JobStatusCancelled,
			"cancelled_at":     now,
			"lease_owner":      "",
			"lease_expires_at": nil,
			"updated_at":       now,
		})
	if tx.Error != nil {
		return nil, fmt.Errorf("cancelling job: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil, ErrStaleTransition
	}
	return s.Get(ctx, id)
}

// RequestCancel cancels a queued job immediately, or raises the
// cooperative flag on a running one. Terminal jobs yield
// ErrStaleTransition.
func (s *JobStore) RequestCancel(ctx context.Context, id oid.ID, reason string, now time.Time) (*model.Job, error) {
	tx := s.getDB(ctx).Model(&model.Job{}).
		Where("id = ? AND status = ?", id, model.JobStatusQueued).
		Updates(map[string]any{
			"status":        model.JobStatusCancelled,
			"cancelled_at":  now,
			"cancel_reason": reason,
			"updated_at":    now,
		})
	if tx.Error != nil {
		return nil, fmt.Errorf("cancelling job: %w", tx.Error)
	}
	if tx.RowsAffected > 0 {
		return s.Get(ctx, id)
	}

	tx = s.getDB(ctx).Model(&model.Job{}).
		Where("id = ? AND status = ?", id, model.JobStatusRunning).
		Updates(map[string]any{
			"cancel_requested": true,
			"cancel_reason":    reason,
			"updated_at":       now,
		})
	if tx.Error != nil {
		return nil, fmt.Errorf("requesting job cancellation: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil, ErrStaleTransition
	}
	return s.Get(ctx, id)
}

func (s *JobStore) FailTerminal(ctx context.Context, id oid.ID, expect model.JobStatus, code, message string, now time.Time) (*model.Job, error) {
	tx := s.getDB(ctx).Model(&model.Job{}).
		Where("id = ? AND status = ?", id, expect).
		Updates(map[string]any{
			"status":           model.JobStatusFailed,
			"error_code":       code,
			"error_message":    message,
			"lease_owner":      "",
			"lease_expires_at": nil,
			"updated_at":       now,
		})
	if tx.Error != nil {
		return nil, fmt.Errorf("failing job: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil, ErrStaleTransition
	}
	return s.Get(ctx, id)
}

// Requeue re-enters a job into the queue after a retryable failure or a
// manual retry. nextAttemptAt keeps the job invisible to the dispatcher
// until the backoff delay elapses.
func (s *JobStore) Requeue(ctx context.Context, id oid.ID, expect model.JobStatus, retryCount int, lastRetryAt time.Time, nextAttemptAt *time.Time) (*model.Job, error) {
	tx := s.getDB(ctx).Model(&model.Job{}).
		Where("id = ? AND status = ?", id, expect).
		Updates(map[string]any{
			"status":           model.JobStatusQueued,
			"retry_count":      retryCount,
			"last_retry_at":    lastRetryAt,
			"next_attempt_at":  nextAttemptAt,
			"progress_percent": 0,
			"progress_step":    "",
			"started_at":       nil,
			"cancel_requested": false,
			"lease_owner":      "",
			"lease_expires_at": nil,
			"updated_at":       lastRetryAt,
		})
	if tx.Error != nil {
		return nil, fmt.Errorf("requeueing job: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return nil, ErrStaleTransition
	}
	return s.Get(ctx, id)
}

func (s *JobStore) CountQueuedAhead(ctx context.Context, priority model.Priority, createdAt, now time.Time) (int64, error) {
	var count int64
	tx := eligible(s.getDB(ctx).Model(&model.Job{}), now).
		Where("priority > ? OR (priority = ? AND created_at < ?)", priority, priority, createdAt)

	if result := tx.Count(&count); result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}

const durationSampleSize = 50

// AverageDuration returns the mean wall time of recently completed jobs of
// the given report type, 0 when no history exists. The mean is computed in
// Go over a bounded sample so the query stays portable across dialects.
func (s *JobStore) AverageDuration(ctx context.Context, reportType string) (time.Duration, error) {
	var rows []struct {
		StartedAt   *time.Time
		CompletedAt *time.Time
	}

	tx := s.getDB(ctx).Model(&model.Job{}).
		Select("started_at", "completed_at").
		Where("report_type = ? AND status = ?", reportType, model.JobStatusCompleted).
		Where("started_at IS NOT NULL AND completed_at IS NOT NULL").
		Order("completed_at DESC").
		Limit(durationSampleSize)

	if result := tx.Find(&rows); result.Error != nil {
		return 0, result.Error
	}
	if len(rows) == 0 {
		return 0, nil
	}

	var total time.Duration
	for _, r := range rows {
		total += r.CompletedAt.Sub(*r.StartedAt)
	}
	return total / time.Duration(len(rows)), nil
}

func (s *JobStore) CountRunning(ctx context.Context) (int64, error) {
	var count int64
	result := s.getDB(ctx).Model(&model.Job{}).
		Where("status = ?", model.JobStatusRunning).
		Count(&count)
	return count, result.Error
}

func (s *JobStore) CountRunningByDepartment(ctx context.Context, departmentID oid.ID) (int64, error) {
	var count int64
	result := s.getDB(ctx).Model(&model.Job{}).
		Where("status = ? AND department_id = ?", model.JobStatusRunning, departmentID).
		Count(&count)
	return count, result.Error
}

func (s *JobStore) ExpiredLeases(ctx context.Context, now time.Time, limit int) (model.JobList, error) {
	var jobs model.JobList
	result := s.getDB(ctx).Model(&model.Job{}).
		Where("status = ? AND lease_expires_at IS NOT NULL AND lease_expires_at < ?", model.JobStatusRunning, now).
		Limit(limit).
		Find(&jobs)
	if result.Error != nil {
		return nil, result.Error
	}
	return jobs, nil
}

func (s *JobStore) StatusCounts(ctx context.Context) (map[model.JobStatus]int64, error) {
	var rows []struct {
		Status model.JobStatus
		N      int64
	}
	result := s.getDB(ctx).Model(&model.Job{}).
		Select("status, count(*) as n").
		Group("status").
		Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}

	counts := make(map[model.JobStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

func (s *JobStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
