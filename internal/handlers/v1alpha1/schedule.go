package v1alpha1

import (
	"net/http"
	"strconv"

	api "github.com/AttuneLearning/cadencelms-report-engine/api/v1alpha1"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/service"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
)

// (POST /api/v1/reports/schedules)
func (s *ServiceHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var request api.CreateScheduleRequest
	if !decode(w, r, &request) {
		return
	}

	created, err := s.scheduleSrv.CreateSchedule(r.Context(), &request)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, created)
}

// (GET /api/v1/reports/schedules)
func (s *ServiceHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := service.ScheduleFilter{
		ReportType: query.Get("reportType"),
	}
	if v := query.Get("active"); v != "" {
		if active, err := strconv.ParseBool(v); err == nil {
			filter.Active = &active
		}
	}
	if v := query.Get("createdBy"); v != "" {
		filter.CreatedBy = oid.ID(v)
	}
	if v := query.Get("departmentId"); v != "" {
		filter.DepartmentID = oid.ID(v)
	}

	schedules, err := s.scheduleSrv.ListSchedules(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, schedules)
}

// (GET /api/v1/reports/schedules/{id})
func (s *ServiceHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	schedule, err := s.scheduleSrv.GetSchedule(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, schedule)
}

// (PATCH /api/v1/reports/schedules/{id})
func (s *ServiceHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var request api.UpdateScheduleRequest
	if !decode(w, r, &request) {
		return
	}

	updated, err := s.scheduleSrv.UpdateSchedule(r.Context(), id, &request)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, updated)
}

// (DELETE /api/v1/reports/schedules/{id})
func (s *ServiceHandler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.scheduleSrv.DeleteSchedule(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// (POST /api/v1/reports/schedules/{id}/pause)
func (s *ServiceHandler) PauseSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var request api.PauseScheduleRequest
	if r.ContentLength > 0 && !decode(w, r, &request) {
		return
	}

	paused, err := s.scheduleSrv.PauseSchedule(r.Context(), id, request.Reason)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, paused)
}

// (POST /api/v1/reports/schedules/{id}/resume)
func (s *ServiceHandler) ResumeSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	resumed, err := s.scheduleSrv.ResumeSchedule(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, resumed)
}
