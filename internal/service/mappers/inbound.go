package mappers

import (
	"time"

	api "github.com/AttuneLearning/cadencelms-report-engine/api/v1alpha1"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store/model"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
)

func JobFromApi(id oid.ID, resource *api.CreateJobRequest, priority model.Priority) model.Job {
	job := model.Job{
		ID:             id,
		ReportType:     resource.ReportType,
		Name:           resource.Name,
		Description:    resource.Description,
		Parameters:     model.MakeJSONField(resource.Parameters),
		OutputFormat:   resource.Output.Format,
		OutputFilename: resource.Output.Filename,
		Priority:       priority,
		Visibility:     resource.Visibility,
		Status:         model.JobStatusQueued,
		RequestedBy:    resource.RequestedBy,
		ScheduledFor:   resource.ScheduledFor,
	}
	if resource.DepartmentID != nil {
		job.DepartmentID = *resource.DepartmentID
	}
	if resource.TemplateID != nil {
		job.TemplateID = *resource.TemplateID
	}
	return job
}

func ScheduleFromApi(id oid.ID, resource *api.CreateScheduleRequest, priority model.Priority, nextRunAt *time.Time) model.Schedule {
	timezone := resource.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	timeOfDay := resource.TimeOfDay
	if timeOfDay == "" {
		timeOfDay = "00:00"
	}

	schedule := model.Schedule{
		ID:             id,
		Name:           resource.Name,
		Description:    resource.Description,
		ReportType:     resource.ReportType,
		Frequency:      resource.Frequency,
		Timezone:       timezone,
		TimeOfDay:      timeOfDay,
		OutputFormat:   resource.Output.Format,
		OutputFilename: resource.Output.Filename,
		Delivery:       resource.Delivery,
		Priority:       priority,
		IsActive:       true,
		NextRunAt:      nextRunAt,
		CreatedBy:      resource.CreatedBy,
	}
	if resource.Parameters != nil {
		schedule.Parameters = model.MakeJSONField(*resource.Parameters)
	}
	if resource.TemplateID != nil {
		schedule.TemplateID = *resource.TemplateID
	}
	if resource.DepartmentID != nil {
		schedule.DepartmentID = *resource.DepartmentID
	}
	return schedule
}

func TemplateFromApi(id oid.ID, resource *api.CreateTemplateRequest) model.Template {
	template := model.Template{
		ID:             id,
		Name:           resource.Name,
		Description:    resource.Description,
		ReportType:     resource.ReportType,
		Parameters:     model.MakeJSONField(resource.Parameters),
		OutputFormat:   resource.Output.Format,
		OutputFilename: resource.Output.Filename,
		OwnerID:        resource.OwnerID,
	}
	if resource.Sharing != nil {
		template.Sharing = model.MakeJSONField(*resource.Sharing)
	}
	if resource.DepartmentID != nil {
		template.DepartmentID = *resource.DepartmentID
	}
	return template
}
