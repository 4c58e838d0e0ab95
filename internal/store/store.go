package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/AttuneLearning/cadencelms-report-engine/internal/store/model"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Job() Job
	Schedule() Schedule
	Template() Template
	AutoMigrate() error
	Close() error
}

type DataStore struct {
	db       *gorm.DB
	job      Job
	schedule Schedule
	template Template
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		db:       db,
		job:      NewJobStore(db),
		schedule: NewScheduleStore(db),
		template: NewTemplateStore(db),
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Job() Job {
	return s.job
}

func (s *DataStore) Schedule() Schedule {
	return s.schedule
}

func (s *DataStore) Template() Template {
	return s.template
}

// AutoMigrate creates the schema from the models. Used for the sqlite
// dev/test path; postgres deployments run goose migrations instead.
func (s *DataStore) AutoMigrate() error {
	return s.db.AutoMigrate(&model.Job{}, &model.Schedule{}, &model.Template{})
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
