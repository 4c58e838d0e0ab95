package mappers

import (
	api "github.com/AttuneLearning/cadencelms-report-engine/api/v1alpha1"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store/model"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
)

func JobToApi(j *model.Job) api.Job {
	job := api.Job{
		Id:           j.ID,
		ReportType:   j.ReportType,
		Name:         j.Name,
		Description:  j.Description,
		Output: api.JobOutput{
			Format:    j.OutputFormat,
			Filename:  j.OutputFilename,
			ExpiresAt: j.OutputExpiresAt,
		},
		Priority:   j.Priority.String(),
		Visibility: j.Visibility,
		Status:     string(j.Status),
		Progress: api.JobProgress{
			Percentage:       j.ProgressPercent,
			CurrentStep:      j.ProgressStep,
			ProcessedRecords: j.ProcessedRecords,
			TotalRecords:     j.TotalRecords,
		},
		RequestedBy:  j.RequestedBy,
		DepartmentID: optionalID(j.DepartmentID),
		TemplateID:   optionalID(j.TemplateID),
		ScheduleID:   optionalID(j.ScheduleID),
		ScheduledFor: j.ScheduledFor,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
		CancelledAt:  j.CancelledAt,
	}
	if j.Parameters != nil {
		job.Parameters = j.Parameters.Data
	}
	if j.OutputStorage != nil {
		storage := j.OutputStorage.Data
		job.Output.Storage = &storage
	}
	if j.ErrorCode != "" || j.ErrorMessage != "" {
		job.Error = &api.JobError{
			Code:        j.ErrorCode,
			Message:     j.ErrorMessage,
			RetryCount:  j.RetryCount,
			LastRetryAt: j.LastRetryAt,
		}
	}
	return job
}

func JobToSummary(j model.Job) api.JobSummary {
	return api.JobSummary{
		Id:           j.ID,
		ReportType:   j.ReportType,
		Name:         j.Name,
		Status:       string(j.Status),
		Priority:     j.Priority.String(),
		Progress:     j.ProgressPercent,
		RequestedBy:  j.RequestedBy,
		DepartmentID: optionalID(j.DepartmentID),
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		CompletedAt:  j.CompletedAt,
	}
}

func JobListToApi(jobs model.JobList, page, limit int, total int64) api.JobList {
	items := make([]api.JobSummary, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, JobToSummary(j))
	}
	return api.JobList{Items: items, Page: page, Limit: limit, Total: total}
}

func ScheduleToApi(s *model.Schedule) api.Schedule {
	schedule := api.Schedule{
		Id:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		ReportType:  s.ReportType,
		Frequency:   s.Frequency,
		Timezone:    s.Timezone,
		TimeOfDay:   s.TimeOfDay,
		Output: api.OutputRequest{
			Format:   s.OutputFormat,
			Filename: s.OutputFilename,
		},
		Delivery:     s.Delivery,
		Priority:     s.Priority.String(),
		IsActive:     s.IsActive,
		PausedReason: s.PausedReason,
		NextRunAt:    s.NextRunAt,
		LastRunAt:    s.LastRunAt,
		CreatedBy:    s.CreatedBy,
		DepartmentID: optionalID(s.DepartmentID),
		TemplateID:   optionalID(s.TemplateID),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	if s.Parameters != nil {
		params := s.Parameters.Data
		schedule.Parameters = &params
	}
	return schedule
}

func ScheduleListToApi(schedules model.ScheduleList) []api.Schedule {
	out := make([]api.Schedule, 0, len(schedules))
	for i := range schedules {
		out = append(out, ScheduleToApi(&schedules[i]))
	}
	return out
}

func TemplateToApi(t *model.Template) api.Template {
	template := api.Template{
		Id:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		ReportType:  t.ReportType,
		Output: api.OutputRequest{
			Format:   t.OutputFormat,
			Filename: t.OutputFilename,
		},
		OwnerID:      t.OwnerID,
		DepartmentID: optionalID(t.DepartmentID),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
	if t.Parameters != nil {
		template.Parameters = t.Parameters.Data
	}
	if t.Sharing != nil {
		sharing := t.Sharing.Data
		template.Sharing = &sharing
	}
	return template
}

func TemplateListToApi(templates model.TemplateList) []api.Template {
	out := make([]api.Template, 0, len(templates))
	for i := range templates {
		out = append(out, TemplateToApi(&templates[i]))
	}
	return out
}

func optionalID(id oid.ID) *oid.ID {
	if id.IsNil() {
		return nil
	}
	return &id
}
