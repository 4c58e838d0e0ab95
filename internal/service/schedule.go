package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	api "github.com/AttuneLearning/cadencelms-report-engine/api/v1alpha1"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/occurrence"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/report"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/service/mappers"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store/model"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
)

type ScheduleFilter struct {
	Active       *bool
	ReportType   string
	CreatedBy    oid.ID
	DepartmentID oid.ID
}

type ScheduleService struct {
	store     store.Store
	registry  *report.Registry
	validator *validator.Validate
	log       *zap.SugaredLogger
}

func NewScheduleService(s store.Store, registry *report.Registry) *ScheduleService {
	return &ScheduleService{
		store:     s,
		registry:  registry,
		validator: validator.New(),
		log:       zap.S().Named("service"),
	}
}

// CreateSchedule registers a recurring report. The first occurrence is
// the next time-of-day slot strictly after now in the schedule's
// timezone.
func (s *ScheduleService) CreateSchedule(ctx context.Context, resource *api.CreateScheduleRequest) (*api.Schedule, error) {
	if err := s.validator.Struct(resource); err != nil {
		return nil, NewErrValidation("invalid schedule request: %s", err)
	}
	if !resource.CreatedBy.Valid() {
		return nil, NewErrValidation("invalid createdBy reference %q", resource.CreatedBy)
	}
	if resource.DepartmentID != nil && !resource.DepartmentID.Valid() {
		return nil, NewErrValidation("invalid departmentId reference %q", *resource.DepartmentID)
	}
	if resource.TemplateID != nil && !resource.TemplateID.Valid() {
		return nil, NewErrValidation("invalid templateId reference %q", *resource.TemplateID)
	}
	if !occurrence.ValidFrequency(resource.Frequency) {
		return nil, NewErrValidation("unknown frequency %q", resource.Frequency)
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
	if resource.Parameters != nil {
		if err := s.registry.ValidateParameters(resource.ReportType, *resource.Parameters); err != nil {
			return nil, NewErrValidation("%s", err)
		}
	}
	if resource.TemplateID != nil {
		if _, err := s.store.Template().Get(ctx, *resource.TemplateID); err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return nil, NewErrTemplateNotFound(*resource.TemplateID)
			}
			return nil, err
		}
	}

	nextRunAt, err := occurrence.Next(resource.Frequency, time.Now(), resource.Timezone, resource.TimeOfDay)
	if err != nil {
		return nil, NewErrValidation("%s", err)
	}

	created, err := s.store.Schedule().Create(ctx, mappers.ScheduleFromApi(oid.New(), resource, priority, nextRunAt))
	if err != nil {
		return nil, err
	}
	s.log.Infow("schedule created",
		"schedule", created.ID, "frequency", created.Frequency, "nextRunAt", created.NextRunAt)
	result := mappers.ScheduleToApi(created)
	return &result, nil
}

func (s *ScheduleService) ListSchedules(ctx context.Context, filter ScheduleFilter) ([]api.Schedule, error) {
	storeFilter := store.NewScheduleQueryFilter()
	if filter.Active != nil {
		storeFilter = storeFilter.ByActive(*filter.Active)
	}
	if filter.ReportType != "" {
		storeFilter = storeFilter.ByReportType(filter.ReportType)
	}
	if !filter.CreatedBy.IsNil() {
		storeFilter = storeFilter.ByCreatedBy(filter.CreatedBy)
	}
	if !filter.DepartmentID.IsNil() {
		storeFilter = storeFilter.ByDepartmentID(filter.DepartmentID)
	}

	schedules, err := s.store.Schedule().List(ctx, storeFilter)
	if err != nil {
		return nil, err
	}
	return mappers.ScheduleListToApi(schedules), nil
}

func (s *ScheduleService) GetSchedule(ctx context.Context, id oid.ID) (*api.Schedule, error) {
	schedule, err := s.store.Schedule().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrScheduleNotFound(id)
		}
		return nil, err
	}
	result := mappers.ScheduleToApi(schedule)
	return &result, nil
}

// UpdateSchedule applies a partial update. Changing the cadence fields
// recomputes the next occurrence for active schedules; a paused schedule
// keeps its frozen state until resumed.
func (s *ScheduleService) UpdateSchedule(ctx context.Context, id oid.ID, resource *api.UpdateScheduleRequest) (*api.Schedule, error) {
	schedule, err := s.store.Schedule().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrScheduleNotFound(id)
		}
		return nil, err
	}

	cadenceChanged := false
	if resource.Name != nil {
		schedule.Name = *resource.Name
	}
	if resource.Frequency != nil {
		if !occurrence.ValidFrequency(*resource.Frequency) {
			return nil, NewErrValidation("unknown frequency %q", *resource.Frequency)
		}
		schedule.Frequency = *resource.Frequency
		cadenceChanged = true
	}
	if resource.Timezone != nil {
		schedule.Timezone = *resource.Timezone
		cadenceChanged = true
	}
	if resource.TimeOfDay != nil {
		schedule.TimeOfDay = *resource.TimeOfDay
		cadenceChanged = true
	}
	if resource.TemplateID != nil {
		if !resource.TemplateID.Valid() {
			return nil, NewErrValidation("invalid templateId reference %q", *resource.TemplateID)
		}
		if _, err := s.store.Template().Get(ctx, *resource.TemplateID); err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return nil, NewErrTemplateNotFound(*resource.TemplateID)
			}
			return nil, err
		}
		schedule.TemplateID = *resource.TemplateID
	}
	if resource.Parameters != nil {
		if err := s.registry.ValidateParameters(schedule.ReportType, *resource.Parameters); err != nil {
			return nil, NewErrValidation("%s", err)
		}
		schedule.Parameters = model.MakeJSONField(*resource.Parameters)
	}
	if resource.Output != nil {
		if !s.registry.SupportsFormat(schedule.ReportType, resource.Output.Format) {
			return nil, NewErrValidation("report type %q cannot produce %q output", schedule.ReportType, resource.Output.Format)
		}
		schedule.OutputFormat = resource.Output.Format
		schedule.OutputFilename = resource.Output.Filename
	}
	if resource.Delivery != nil {
		schedule.Delivery = *resource.Delivery
	}
	if resource.Priority != nil {
		priority, ok := model.ParsePriority(*resource.Priority)
		if !ok {
			return nil, NewErrValidation("unknown priority %q", *resource.Priority)
		}
		schedule.Priority = priority
	}

	if cadenceChanged && schedule.IsActive {
		nextRunAt, err := occurrence.Next(schedule.Frequency, time.Now(), schedule.Timezone, schedule.TimeOfDay)
		if err != nil {
			return nil, NewErrValidation("%s", err)
		}
		schedule.NextRunAt = nextRunAt
	}

	updated, err := s.store.Schedule().Update(ctx, schedule)
	if err != nil {
		return nil, err
	}
	result := mappers.ScheduleToApi(updated)
	return &result, nil
}

func (s *ScheduleService) DeleteSchedule(ctx context.Context, id oid.ID) error {
	if _, err := s.store.Schedule().Get(ctx, id); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrScheduleNotFound(id)
		}
		return err
	}
	return s.store.Schedule().Delete(ctx, id)
}

// PauseSchedule stops future firings without touching jobs already
// queued or running.
func (s *ScheduleService) PauseSchedule(ctx context.Context, id oid.ID, reason string) (*api.Schedule, error) {
	schedule, err := s.store.Schedule().SetActive(ctx, id, false, reason, nil)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrScheduleNotFound(id)
		}
		return nil, err
	}
	s.log.Infow("schedule paused", "schedule", id, "reason", reason)
	result := mappers.ScheduleToApi(schedule)
	return &result, nil
}

// ResumeSchedule reactivates a paused schedule at its next future
// occurrence. Occurrences missed while paused never fire.
func (s *ScheduleService) ResumeSchedule(ctx context.Context, id oid.ID) (*api.Schedule, error) {
	schedule, err := s.store.Schedule().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrScheduleNotFound(id)
		}
		return nil, err
	}
	if schedule.IsActive {
		result := mappers.ScheduleToApi(schedule)
		return &result, nil
	}

	nextRunAt, err := occurrence.Next(schedule.Frequency, time.Now(), schedule.Timezone, schedule.TimeOfDay)
	if err != nil {
		return nil, NewErrValidation("%s", err)
	}
	resumed, err := s.store.Schedule().SetActive(ctx, id, true, "", nextRunAt)
	if err != nil {
		return nil, err
	}
	s.log.Infow("schedule resumed", "schedule", id, "nextRunAt", nextRunAt)
	result := mappers.ScheduleToApi(resumed)
	return &result, nil
}
