package v1alpha1

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	api "github.com/AttuneLearning/cadencelms-report-engine/api/v1alpha1"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/service"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
)

// (POST /api/v1/reports/jobs)
func (s *ServiceHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var request api.CreateJobRequest
	if !decode(w, r, &request) {
		return
	}

	created, err := s.jobSrv.CreateJob(r.Context(), &request)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusAccepted, created)
}

// (GET /api/v1/reports/jobs)
func (s *ServiceHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := service.JobFilter{
		Status:     query.Get("status"),
		ReportType: query.Get("reportType"),
		SortBy:     query.Get("sortBy"),
		SortOrder:  store.SortOrder(query.Get("sortOrder")),
	}
	filter.Page, _ = strconv.Atoi(query.Get("page"))
	filter.Limit, _ = strconv.Atoi(query.Get("limit"))
	if v := query.Get("requestedBy"); v != "" {
		filter.RequestedBy = oid.ID(v)
	}
	if v := query.Get("departmentId"); v != "" {
		filter.DepartmentID = oid.ID(v)
	}
	if v := query.Get("scheduleId"); v != "" {
		filter.ScheduleID = oid.ID(v)
	}
	if v := query.Get("createdAfter"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, r, service.NewErrValidation("invalid createdAfter %q: expected RFC 3339", v))
			return
		}
		filter.CreatedAfter = &t
	}
	if v := query.Get("createdBefore"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, r, service.NewErrValidation("invalid createdBefore %q: expected RFC 3339", v))
			return
		}
		filter.CreatedBefore = &t
	}

	jobs, err := s.jobSrv.ListJobs(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jobs)
}

// (GET /api/v1/reports/jobs/{id})
func (s *ServiceHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	job, err := s.jobSrv.GetJob(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, job)
}

// (POST /api/v1/reports/jobs/{id}/cancel)
func (s *ServiceHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var request api.CancelJobRequest
	if r.ContentLength > 0 && !decode(w, r, &request) {
		return
	}

	cancelled, err := s.jobSrv.CancelJob(r.Context(), id, request.Reason)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusAccepted, cancelled)
}

// (POST /api/v1/reports/jobs/{id}/retry)
func (s *ServiceHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	retried, err := s.jobSrv.RetryJob(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusAccepted, retried)
}

// (GET /api/v1/reports/jobs/{id}/download)
func (s *ServiceHandler) DownloadJobOutput(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	download, err := s.jobSrv.DownloadJobOutput(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer download.Content.Close()

	w.Header().Set("Content-Type", download.ContentType)
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": download.Filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, download.Content)
}
