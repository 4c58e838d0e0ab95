package v1alpha1

import (
	"net/http"

	api "github.com/AttuneLearning/cadencelms-report-engine/api/v1alpha1"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/service"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
)

// (POST /api/v1/reports/templates)
func (s *ServiceHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var request api.CreateTemplateRequest
	if !decode(w, r, &request) {
		return
	}

	created, err := s.templateSrv.CreateTemplate(r.Context(), &request)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, created)
}

// (GET /api/v1/reports/templates)
func (s *ServiceHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := service.TemplateFilter{
		ReportType: query.Get("reportType"),
	}
	if v := query.Get("ownerId"); v != "" {
		filter.OwnerID = oid.ID(v)
	}
	if v := query.Get("departmentId"); v != "" {
		filter.DepartmentID = oid.ID(v)
	}

	templates, err := s.templateSrv.ListTemplates(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, templates)
}

// (GET /api/v1/reports/templates/{id})
func (s *ServiceHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	template, err := s.templateSrv.GetTemplate(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, template)
}

// (PATCH /api/v1/reports/templates/{id})
func (s *ServiceHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var request api.UpdateTemplateRequest
	if !decode(w, r, &request) {
		return
	}

	updated, err := s.templateSrv.UpdateTemplate(r.Context(), id, &request)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, updated)
}

// (DELETE /api/v1/reports/templates/{id})
func (s *ServiceHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.templateSrv.DeleteTemplate(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// (POST /api/v1/reports/templates/{id}/clone)
func (s *ServiceHandler) CloneTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var request api.CloneTemplateRequest
	if r.ContentLength > 0 && !decode(w, r, &request) {
		return
	}

	clone, err := s.templateSrv.CloneTemplate(r.Context(), id, request.Name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, clone)
}
