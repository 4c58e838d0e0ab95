package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	api "github.com/AttuneLearning/cadencelms-report-engine/api/v1alpha1"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/report"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/service/mappers"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/store/model"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
)

type TemplateFilter struct {
	ReportType   string
	OwnerID      oid.ID
	DepartmentID oid.ID
}

type TemplateService struct {
	store     store.Store
	registry  *report.Registry
	validator *validator.Validate
	log       *zap.SugaredLogger
}

func NewTemplateService(s store.Store, registry *report.Registry) *TemplateService {
	return &TemplateService{
		store:     s,
		registry:  registry,
		validator: validator.New(),
		log:       zap.S().Named("service"),
	}
}

func (s *TemplateService) CreateTemplate(ctx context.Context, resource *api.CreateTemplateRequest) (*api.Template, error) {
	if err := s.validator.Struct(resource); err != nil {
		return nil, NewErrValidation("invalid template request: %s", err)
	}
	if !resource.OwnerID.Valid() {
		return nil, NewErrValidation("invalid ownerId reference %q", resource.OwnerID)
	}
	if resource.DepartmentID != nil && !resource.DepartmentID.Valid() {
		return nil, NewErrValidation("invalid departmentId reference %q", *resource.DepartmentID)
	}
	if _, ok := s.registry.Lookup(resource.ReportType); !ok {
		return nil, NewErrValidation("unknown report type %q", resource.ReportType)
	}
	if resource.Output.Format != "" && !s.registry.SupportsFormat(resource.ReportType, resource.Output.Format) {
		return nil, NewErrValidation("report type %q cannot produce %q output", resource.ReportType, resource.Output.Format)
	}
	if err := s.registry.ValidateParameters(resource.ReportType, resource.Parameters); err != nil {
		return nil, NewErrValidation("%s", err)
	}

	created, err := s.store.Template().Create(ctx, mappers.TemplateFromApi(oid.New(), resource))
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, NewErrConflict("owner %s already has a template named %q", resource.OwnerID, resource.Name)
		}
		return nil, err
	}
	s.log.Infow("template created", "template", created.ID, "type", created.ReportType)
	result := mappers.TemplateToApi(created)
	return &result, nil
}

func (s *TemplateService) ListTemplates(ctx context.Context, filter TemplateFilter) ([]api.Template, error) {
	storeFilter := store.NewTemplateQueryFilter()
	if filter.ReportType != "" {
		storeFilter = storeFilter.ByReportType(filter.ReportType)
	}
	if !filter.OwnerID.IsNil() {
		storeFilter = storeFilter.ByOwnerID(filter.OwnerID)
	}
	if !filter.DepartmentID.IsNil() {
		storeFilter = storeFilter.ByDepartmentID(filter.DepartmentID)
	}

	templates, err := s.store.Template().List(ctx, storeFilter)
	if err != nil {
		return nil, err
	}
	return mappers.TemplateListToApi(templates), nil
}

func (s *TemplateService) GetTemplate(ctx context.Context, id oid.ID) (*api.Template, error) {
	template, err := s.store.Template().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrTemplateNotFound(id)
		}
		return nil, err
	}
	result := mappers.TemplateToApi(template)
	return &result, nil
}

func (s *TemplateService) UpdateTemplate(ctx context.Context, id oid.ID, resource *api.UpdateTemplateRequest) (*api.Template, error) {
	template, err := s.store.Template().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrTemplateNotFound(id)
		}
		return nil, err
	}

	if resource.Name != nil {
		template.Name = *resource.Name
	}
	if resource.Description != nil {
		template.Description = *resource.Description
	}
	if resource.Parameters != nil {
		if err := s.registry.ValidateParameters(template.ReportType, *resource.Parameters); err != nil {
			return nil, NewErrValidation("%s", err)
		}
		template.Parameters = model.MakeJSONField(*resource.Parameters)
	}
	if resource.Output != nil {
		if resource.Output.Format != "" && !s.registry.SupportsFormat(template.ReportType, resource.Output.Format) {
			return nil, NewErrValidation("report type %q cannot produce %q output", template.ReportType, resource.Output.Format)
		}
		template.OutputFormat = resource.Output.Format
		template.OutputFilename = resource.Output.Filename
	}
	if resource.Sharing != nil {
		template.Sharing = model.MakeJSONField(*resource.Sharing)
	}

	updated, err := s.store.Template().Update(ctx, template)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, NewErrConflict("owner %s already has a template named %q", template.OwnerID, template.Name)
		}
		return nil, err
	}
	result := mappers.TemplateToApi(updated)
	return &result, nil
}

func (s *TemplateService) DeleteTemplate(ctx context.Context, id oid.ID) error {
	if _, err := s.store.Template().Get(ctx, id); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return NewErrTemplateNotFound(id)
		}
		return err
	}
	return s.store.Template().Delete(ctx, id)
}

// CloneTemplate copies an existing template under a new id and name. The
// clone keeps the source's owner and parameters but not its sharing
// scope.
func (s *TemplateService) CloneTemplate(ctx context.Context, id oid.ID, name string) (*api.Template, error) {
	source, err := s.store.Template().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrTemplateNotFound(id)
		}
		return nil, err
	}

	clone := *source
	clone.ID = oid.New()
	clone.CreatedAt = time.Time{}
	clone.UpdatedAt = time.Time{}
	clone.Sharing = nil
	clone.Name = name
	if clone.Name == "" {
		clone.Name = fmt.Sprintf("%s (copy)", source.Name)
	}

	created, err := s.store.Template().Create(ctx, clone)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, NewErrConflict("owner %s already has a template named %q", clone.OwnerID, clone.Name)
		}
		return nil, err
	}
	s.log.Infow("template cloned", "source", id, "template", created.ID)
	result := mappers.TemplateToApi(created)
	return &result, nil
}
