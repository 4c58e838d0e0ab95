package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	api "github.com/AttuneLearning/cadencelms-report-engine/api/v1alpha1"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/events"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/report"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/report/types"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/service/mappers"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/storage"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store/model"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
)

// JobFilter narrows and pages job listings.
type JobFilter struct {
	Status        string
	ReportType    string
	RequestedBy   oid.ID
	DepartmentID  oid.ID
	ScheduleID    oid.ID
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Page          int
	Limit         int
	SortBy        string
	SortOrder     store.SortOrder
}

type JobService struct {
	store     store.Store
	registry  *report.Registry
	provider  storage.Provider
	producer  *events.EventProducer
	validator *validator.Validate
	log       *zap.SugaredLogger
}

func NewJobService(s store.Store, registry *report.Registry, provider storage.Provider, producer *events.EventProducer) *JobService {
	return &JobService{
		store:     s,
		registry:  registry,
		provider:  provider,
		producer:  producer,
		validator: validator.New(),
		log:       zap.S().Named("service"),
	}
}

// CreateJob validates and enqueues an ad-hoc report job. The response
// carries the job's queue position and a wait estimate derived from
// recent run times of the same report type, when history exists.
func (s *JobService) CreateJob(ctx context.Context, resource *api.CreateJobRequest) (*api.JobCreated, error) {
	if err := s.validator.Struct(resource); err != nil {
		return nil, NewErrValidation("invalid job request: %s", err)
	}
	if !resource.RequestedBy.Valid() {
		return nil, NewErrValidation("invalid requestedBy reference %q", resource.RequestedBy)
	}
	if resource.DepartmentID != nil && !resource.DepartmentID.Valid() {
		return nil, NewErrValidation("invalid departmentId reference %q", *resource.DepartmentID)
	}
	if resource.TemplateID != nil && !resource.TemplateID.Valid() {
		return nil, NewErrValidation("invalid templateId reference %q", *resource.TemplateID)
	}
	priority, ok := model.ParsePriority(resource.Priority)
	if !ok {
		return nil, NewErrValidation("unknown priority %q", resource.Priority)
	}
	if _, ok := s.registry.Lookup(resource.ReportType); !ok {
		return nil, NewErrValidation("unknown report type %q", resource.ReportType)
	}
	if !s.registry.SupportsFormat(resource.ReportType, resource.Output.Format) {
		return nil, NewErrValidation("report type %q cannot produce %q output", resource.ReportType, resource.Output.Format)
	}
	if err := s.registry.ValidateParameters(resource.ReportType, resource.Parameters); err != nil {
		return nil, NewErrValidation("%s", err)
	}
	if resource.TemplateID != nil {
		template, err := s.store.Template().Get(ctx, *resource.TemplateID)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return nil, NewErrTemplateNotFound(*resource.TemplateID)
			}
			return nil, err
		}
		if template.ReportType != resource.ReportType {
			return nil, NewErrValidation("template %s produces %q reports, not %q", template.ID, template.ReportType, resource.ReportType)
		}
	}

	created, err := s.store.Job().Create(ctx, mappers.JobFromApi(oid.New(), resource, priority))
	if err != nil {
		return nil, err
	}
	s.log.Infow("job created", "job", created.ID, "type", created.ReportType, "priority", created.Priority.String())
	s.emitJob(created)

	response := &api.JobCreated{Id: created.ID, Status: string(created.Status)}
	if ahead, err := s.store.Job().CountQueuedAhead(ctx, created.Priority, created.CreatedAt, time.Now()); err == nil {
		position := int(ahead)
		response.QueuePosition = &position
		if avg, err := s.store.Job().AverageDuration(ctx, created.ReportType); err == nil && avg > 0 {
			wait := int64((avg * time.Duration(position)).Seconds())
			response.EstimatedWaitTime = &wait
		}
	}
	return response, nil
}

func (s *JobService) ListJobs(ctx context.Context, filter JobFilter) (*api.JobList, error) {
	storeFilter := store.NewJobQueryFilter()
	if filter.Status != "" {
		storeFilter = storeFilter.ByStatus(model.JobStatus(filter.Status))
	}
	if filter.ReportType != "" {
		storeFilter = storeFilter.ByReportType(filter.ReportType)
	}
	if !filter.RequestedBy.IsNil() {
		storeFilter = storeFilter.ByRequestedBy(filter.RequestedBy)
	}
	if !filter.DepartmentID.IsNil() {
		storeFilter = storeFilter.ByDepartmentID(filter.DepartmentID)
	}
	if !filter.ScheduleID.IsNil() {
		storeFilter = storeFilter.ByScheduleID(filter.ScheduleID)
	}
	if filter.CreatedAfter != nil {
		storeFilter = storeFilter.CreatedAfter(*filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		storeFilter = storeFilter.CreatedBefore(*filter.CreatedBefore)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	total, err := s.store.Job().Count(ctx, storeFilter)
	if err != nil {
		return nil, err
	}
	jobs, err := s.store.Job().List(ctx, storeFilter,
		store.NewJobQueryOptions().WithSort(filter.SortBy, filter.SortOrder).WithPagination(page, limit))
	if err != nil {
		return nil, err
	}

	list := mappers.JobListToApi(jobs, page, limit, total)
	return &list, nil
}

func (s *JobService) GetJob(ctx context.Context, id oid.ID) (*api.Job, error) {
	job, err := s.store.Job().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(id)
		}
		return nil, err
	}
	result := mappers.JobToApi(job)
	return &result, nil
}

// CancelJob cancels a queued job immediately. For a running job it only
// requests cancellation; the worker honors it at its next checkpoint.
func (s *JobService) CancelJob(ctx context.Context, id oid.ID, reason string) (*api.JobCancelled, error) {
	job, err := s.store.Job().RequestCancel(ctx, id, reason, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrRecordNotFound):
			return nil, NewErrJobNotFound(id)
		case errors.Is(err, store.ErrStaleTransition):
			current, gerr := s.store.Job().Get(ctx, id)
			if gerr != nil {
				return nil, gerr
			}
			return nil, NewErrConflict("job %s is %s and can no longer be cancelled", id, current.Status)
		default:
			return nil, err
		}
	}
	s.log.Infow("job cancellation", "job", id, "status", job.Status)
	s.emitJob(job)
	return &api.JobCancelled{Id: job.ID, Status: string(job.Status), CancelledAt: job.CancelledAt}, nil
}

// RetryJob requeues a terminally failed job for an immediate attempt. The
// retry count keeps growing across manual retries.
func (s *JobService) RetryJob(ctx context.Context, id oid.ID) (*api.JobRetried, error) {
	job, err := s.store.Job().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(id)
		}
		return nil, err
	}
	if job.Status != model.JobStatusFailed {
		return nil, NewErrConflict("job %s is %s, only failed jobs can be retried", id, job.Status)
	}

	requeued, err := s.store.Job().Requeue(ctx, id, model.JobStatusFailed, job.RetryCount+1, time.Now(), nil)
	if err != nil {
		if errors.Is(err, store.ErrStaleTransition) {
			return nil, NewErrConflict("job %s changed state, only failed jobs can be retried", id)
		}
		return nil, err
	}
	s.log.Infow("job retried manually", "job", id, "retryCount", requeued.RetryCount)
	s.emitJob(requeued)
	return &api.JobRetried{Id: requeued.ID, Status: string(requeued.Status), RetryCount: requeued.RetryCount}, nil
}

// JobDownload is a stream over a completed job's artifact.
type JobDownload struct {
	Content     io.ReadCloser
	Filename    string
	ContentType string
}

// DownloadJobOutput opens the stored artifact of a completed job. Expired
// outputs are refused even when the backing object still exists.
func (s *JobService) DownloadJobOutput(ctx context.Context, id oid.ID) (*JobDownload, error) {
	job, err := s.store.Job().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(id)
		}
		return nil, err
	}
	if job.Status != model.JobStatusCompleted || job.OutputStorage == nil {
		return nil, NewErrOutputNotReady(id, string(job.Status))
	}
	if job.OutputExpiresAt != nil && job.OutputExpiresAt.Before(time.Now()) {
		return nil, NewErrOutputExpired(id, *job.OutputExpiresAt)
	}

	content, err := s.provider.Open(ctx, job.OutputStorage.Data)
	if err != nil {
		return nil, err
	}

	filename := job.OutputFilename
	if filename == "" {
		filename = string(job.ID) + "." + job.OutputFormat
	}
	return &JobDownload{
		Content:     content,
		Filename:    filename,
		ContentType: types.ReportFormat(job.OutputFormat).ContentType(),
	}, nil
}

func (s *JobService) emitJob(job *model.Job) {
	if s.producer == nil {
		return
	}
	_ = s.producer.Emit(events.JobMessageKind, events.JobEvent{
		JobID:        job.ID,
		ReportType:   job.ReportType,
		Status:       string(job.Status),
		RetryCount:   job.RetryCount,
		DepartmentID: job.DepartmentID,
	})
}
