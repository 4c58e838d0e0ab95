package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AttuneLearning/cadencelms-report-engine/internal/store/model"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
)

type Template interface {
	Create(ctx context.Context, template model.Template) (*model.Template, error)
	Get(ctx context.Context, id oid.ID) (*model.Template, error)
	List(ctx context.Context, filter *TemplateQueryFilter) (model.TemplateList, error)
	Update(ctx context.Context, template *model.Template) (*model.Template, error)
	Delete(ctx context.Context, id oid.ID) error
}

type TemplateStore struct {
	db *gorm.DB
}

// Make sure we conform to Template interface
var _ Template = (*TemplateStore)(nil)

func NewTemplateStore(db *gorm.DB) Template {
	return &TemplateStore{db: db}
}

func (s *TemplateStore) Create(ctx context.Context, template model.Template) (*model.Template, error) {
	result := s.getDB(ctx).Clauses(clause.Returning{}).Create(&template)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating template: %w", result.Error)
	}
	return &template, nil
}

func (s *TemplateStore) Get(ctx context.Context, id oid.ID) (*model.Template, error) {
	var template model.Template
	result := s.getDB(ctx).First(&template, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying template: %w", result.Error)
	}
	return &template, nil
}

func (s *TemplateStore) List(ctx context.Context, filter *TemplateQueryFilter) (model.TemplateList, error) {
	var templates model.TemplateList
	tx := s.getDB(ctx).Model(&model.Template{}).Order("created_at DESC")

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if result := tx.Find(&templates); result.Error != nil {
		return nil, result.Error
	}
	return templates, nil
}

func (s *TemplateStore) Update(ctx context.Context, template *model.Template) (*model.Template, error) {
	template.UpdatedAt = time.Now().UTC()
	if err := s.getDB(ctx).Model(template).Updates(template).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("updating template: %w", err)
	}
	return s.Get(ctx, template.ID)
}

func (s *TemplateStore) Delete(ctx context.Context, id oid.ID) error {
	result := s.getDB(ctx).Unscoped().Delete(&model.Template{}, "id = ?", id)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}
	return nil
}

func (s *TemplateStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
