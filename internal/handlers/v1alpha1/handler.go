// Package v1alpha1 exposes the report engine over REST. Handlers decode
// and route; all domain rules live in the service layer.
package v1alpha1

import (
	"github.com/go-chi/chi/v5"

	"github.com/AttuneLearning/cadencelms-report-engine/internal/service"
)

type ServiceHandler struct {
	jobSrv      *service.JobService
	scheduleSrv *service.ScheduleService
	templateSrv *service.TemplateService
}

func NewServiceHandler(jobService *service.JobService, scheduleService *service.ScheduleService, templateService *service.TemplateService) *ServiceHandler {
	return &ServiceHandler{
		jobSrv:      jobService,
		scheduleSrv: scheduleService,
		templateSrv: templateService,
	}
}

func (s *ServiceHandler) Routes(router chi.Router) {
	router.Route("/api/v1/reports", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.CreateJob)
			r.Get("/", s.ListJobs)
			r.Get("/{id}", s.GetJob)
			r.Post("/{id}/cancel", s.CancelJob)
			r.Post("/{id}/retry", s.RetryJob)
			r.Get("/{id}/download", s.DownloadJobOutput)
		})
		r.Route("/schedules", func(r chi.Router) {
			r.Post("/", s.CreateSchedule)
			r.Get("/", s.ListSchedules)
			r.Get("/{id}", s.GetSchedule)
			r.Patch("/{id}", s.UpdateSchedule)
			r.Delete("/{id}", s.DeleteSchedule)
			r.Post("/{id}/pause", s.PauseSchedule)
			r.Post("/{id}/resume", s.ResumeSchedule)
		})
		r.Route("/templates", func(r chi.Router) {
			r.Post("/", s.CreateTemplate)
			r.Get("/", s.ListTemplates)
			r.Get("/{id}", s.GetTemplate)
			r.Patch("/{id}", s.UpdateTemplate)
			r.Delete("/{id}", s.DeleteTemplate)
			r.Post("/{id}/clone", s.CloneTemplate)
		})
	})
	router.Get("/health", s.Health)
}
