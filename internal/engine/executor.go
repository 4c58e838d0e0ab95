package engine

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	api "github.com/AttuneLearning/cadencelms-report-engine/api/v1alpha1"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/config"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/events"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/report"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/report/types"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/storage"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store/model"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/metrics"
)

var errCancelled = errors.New("cancelled at checkpoint")

// Executor runs one claimed job through its phases: parameter resolution,
// data fetch, rendering and artifact upload. Each phase boundary is a
// checkpoint that renews the lease, records progress and honors a pending
// cancellation request.
type Executor struct {
	store     store.Store
	source    types.DataSource
	renderers *report.Renderers
	provider  storage.Provider
	retry     *RetryManager
	producer  *events.EventProducer
	owner     string
	leaseTTL  time.Duration
	retention time.Duration
	log       *zap.SugaredLogger
}

func NewExecutor(
	s store.Store,
	source types.DataSource,
	renderers *report.Renderers,
	provider storage.Provider,
	retry *RetryManager,
	producer *events.EventProducer,
	owner string,
	cfg *config.Config,
) *Executor {
	return &Executor{
		store:     s,
		source:    source,
		renderers: renderers,
		provider:  provider,
		retry:     retry,
		producer:  producer,
		owner:     owner,
		leaseTTL:  cfg.Engine.LeaseTTL,
		retention: cfg.Storage.Retention,
		log:       zap.S().Named("executor"),
	}
}

// Execute drives a job the dispatcher claimed under the executor's owner
// id to completion, cancellation, requeue or terminal failure.
func (e *Executor) Execute(ctx context.Context, job *model.Job) {
	start := time.Now()
	err := e.run(ctx, job)
	switch {
	case err == nil:
		metrics.ObserveJobDuration(job.ReportType, time.Since(start))
	case errors.Is(err, errCancelled):
		e.log.Infow("job cancelled", "job", job.ID)
	case errors.Is(err, store.ErrStaleTransition):
		// the reconciler reclaimed the lease; whoever holds it now owns the job
		e.log.Warnw("lost lease mid-run", "job", job.ID)
	default:
		if _, ferr := e.retry.HandleFailure(context.WithoutCancel(ctx), job, err); ferr != nil {
			if errors.Is(ferr, store.ErrStaleTransition) {
				e.log.Warnw("lost lease while recording failure", "job", job.ID)
				return
			}
			e.log.Errorw("failed to record job failure", "job", job.ID, "error", ferr)
		}
	}
}

func (e *Executor) run(ctx context.Context, job *model.Job) error {
	params, err := e.resolveParameters(ctx, job)
	if err != nil {
		return Terminal(CodeBadParameters, err)
	}
	if err := e.checkpoint(ctx, job, store.Progress{Percent: 5, Step: "resolving"}); err != nil {
		return err
	}

	dataset, err := e.source.Fetch(ctx, job.ReportType, params)
	if err != nil {
		return Retryable(CodeDataSource, err)
	}
	total := dataset.RecordCount()
	if err := e.checkpoint(ctx, job, store.Progress{Percent: 45, Step: "fetching", Total: &total}); err != nil {
		return err
	}

	renderer, err := e.renderers.For(job.OutputFormat)
	if err != nil {
		return Terminal(CodeBadFormat, err)
	}
	doc, err := renderer.Render(dataset)
	if err != nil {
		return Terminal(CodeRenderFailed, err)
	}
	if err := e.checkpoint(ctx, job, store.Progress{Percent: 75, Step: "rendering", Processed: &total, Total: &total}); err != nil {
		return err
	}

	descriptor, err := e.provider.Put(ctx, artifactKey(job, doc.Extension), doc.Content, doc.ContentType)
	if err != nil {
		return Retryable(CodeStorage, err)
	}
	metrics.IncArtifactUploaded(e.provider.Kind())
	if err := e.checkpoint(ctx, job, store.Progress{Percent: 95, Step: "uploading", Processed: &total, Total: &total}); err != nil {
		return err
	}

	expiresAt := time.Now().Add(e.retention)
	completed, err := e.store.Job().Complete(ctx, job.ID, e.owner, descriptor, expiresAt, time.Now())
	if err != nil {
		return err
	}
	e.emit(completed, descriptor.Url, &expiresAt)
	e.log.Infow("job completed",
		"job", job.ID, "type", job.ReportType, "format", job.OutputFormat, "records", total)
	return nil
}

// checkpoint renews the lease with a progress snapshot and cooperatively
// cancels when a cancellation was requested since the last checkpoint.
func (e *Executor) checkpoint(ctx context.Context, job *model.Job, p store.Progress) error {
	hb, err := e.store.Job().Heartbeat(ctx, job.ID, e.owner, p, time.Now(), e.leaseTTL)
	if err != nil {
		return err
	}
	if !hb.CancelRequested {
		return nil
	}
	cancelled, err := e.store.Job().MarkCancelled(ctx, job.ID, e.owner, time.Now())
	if err != nil {
		return err
	}
	e.emit(cancelled, "", nil)
	return errCancelled
}

// resolveParameters layers template defaults, schedule overrides and the
// job's own bundle, in that order.
func (e *Executor) resolveParameters(ctx context.Context, job *model.Job) (api.ReportParameters, error) {
	var layers []*api.ReportParameters
	if !job.TemplateID.IsNil() {
		template, err := e.store.Template().Get(ctx, job.TemplateID)
		if err != nil {
			return api.ReportParameters{}, fmt.Errorf("resolving template %s: %w", job.TemplateID, err)
		}
		if template.Parameters != nil {
			layers = append(layers, &template.Parameters.Data)
		}
	}
	if !job.ScheduleID.IsNil() {
		schedule, err := e.store.Schedule().Get(ctx, job.ScheduleID)
		if err != nil {
			return api.ReportParameters{}, fmt.Errorf("resolving schedule %s: %w", job.ScheduleID, err)
		}
		if schedule.Parameters != nil {
			layers = append(layers, &schedule.Parameters.Data)
		}
	}
	if job.Parameters != nil {
		layers = append(layers, &job.Parameters.Data)
	}
	return report.MergeParameters(api.ReportParameters{}, layers...), nil
}

func (e *Executor) emit(job *model.Job, downloadURL string, expiresAt *time.Time) {
	if e.producer == nil {
		return
	}
	_ = e.producer.Emit(events.JobMessageKind, events.JobEvent{
		JobID:        job.ID,
		ReportType:   job.ReportType,
		Status:       string(job.Status),
		RetryCount:   job.RetryCount,
		DepartmentID: job.DepartmentID,
		DownloadURL:  downloadURL,
		ExpiresAt:    expiresAt,
	})
}

func artifactKey(job *model.Job, extension string) string {
	name := job.OutputFilename
	if name == "" {
		name = string(job.ID)
	}
	if !strings.HasSuffix(name, "."+extension) {
		name += "." + extension
	}
	return path.Join("jobs", string(job.ID), name)
}
