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

type Schedule interface {
	Create(ctx context.Context, schedule model.Schedule) (*model.Schedule, error)
	Get(ctx context.Context, id oid.ID) (*model.Schedule, error)
	List(ctx context.Context, filter *ScheduleQueryFilter) (model.ScheduleList, error)
	Update(ctx context.Context, schedule *model.Schedule) (*model.Schedule, error)
	Delete(ctx context.Context, id oid.ID) error

	// Due returns active schedules whose next run time has arrived.
	Due(ctx context.Context, now time.Time) (model.ScheduleList, error)
	// Advance records a firing: last run, the freshly computed next run,
	// and whether the schedule stays active ("once" deactivates).
	Advance(ctx context.Context, id oid.ID, lastRunAt time.Time, nextRunAt *time.Time, active bool) error
	SetActive(ctx context.Context, id oid.ID, active bool, reason string, nextRunAt *time.Time) (*model.Schedule, error)
}

type ScheduleStore struct {
	db *gorm.DB
}

// Make sure we conform to Schedule interface
var _ Schedule = (*ScheduleStore)(nil)

func NewScheduleStore(db *gorm.DB) Schedule {
	return &ScheduleStore{db: db}
}

func (s *ScheduleStore) Create(ctx context.Context, schedule model.Schedule) (*model.Schedule, error) {
	result := s.getDB(ctx).Clauses(clause.Returning{}).Create(&schedule)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating schedule: %w", result.Error)
	}
	return &schedule, nil
}

func (s *ScheduleStore) Get(ctx context.Context, id oid.ID) (*model.Schedule, error) {
	var schedule model.Schedule
	result := s.getDB(ctx).First(&schedule, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying schedule: %w", result.Error)
	}
	return &schedule, nil
}

func (s *ScheduleStore) List(ctx context.Context, filter *ScheduleQueryFilter) (model.ScheduleList, error) {
	var schedules model.ScheduleList
	tx := s.getDB(ctx).Model(&model.Schedule{}).Order("created_at DESC")

	if filter != nil {
		for _, fn := range filter.QueryFn {
			tx = fn(tx)
		}
	}

	if result := tx.Find(&schedules); result.Error != nil {
		return nil, result.Error
	}
	return schedules, nil
}

func (s *ScheduleStore) Update(ctx context.Context, schedule *model.Schedule) (*model.Schedule, error) {
	schedule.UpdatedAt = time.Now().UTC()
	if err := s.getDB(ctx).Model(schedule).Updates(schedule).Error; err != nil {
		return nil, fmt.Errorf("updating schedule: %w", err)
	}
	return s.Get(ctx, schedule.ID)
}

func (s *ScheduleStore) Delete(ctx context.Context, id oid.ID) error {
	result := s.getDB(ctx).Unscoped().Delete(&model.Schedule{}, "id = ?", id)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}
	return nil
}

func (s *ScheduleStore) Due(ctx context.Context, now time.Time) (model.ScheduleList, error) {
	var schedules model.ScheduleList
	result := s.getDB(ctx).Model(&model.Schedule{}).
		Where("is_active = ? AND next_run_at IS NOT NULL AND next_run_at <= ?", true, now).
		Order("next_run_at ASC").
		Find(&schedules)
	if result.Error != nil {
		return nil, result.Error
	}
	return schedules, nil
}

func (s *ScheduleStore) Advance(ctx context.Context, id oid.ID, lastRunAt time.Time, nextRunAt *time.Time, active bool) error {
	result := s.getDB(ctx).Model(&model.Schedule{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_run_at": lastRunAt,
			"next_run_at": nextRunAt,
			"is_active":   active,
			"updated_at":  lastRunAt,
		})
	if result.Error != nil {
		return fmt.Errorf("advancing schedule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *ScheduleStore) SetActive(ctx context.Context, id oid.ID, active bool, reason string, nextRunAt *time.Time) (*model.Schedule, error) {
	updates := map[string]any{
		"is_active":     active,
		"paused_reason": reason,
		"updated_at":    time.Now().UTC(),
	}
	if active {
		// resuming recomputes the next occurrence; pausing freezes it
		updates["next_run_at"] = nextRunAt
	}

	result := s.getDB(ctx).Model(&model.Schedule{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("updating schedule state: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrRecordNotFound
	}
	return s.Get(ctx, id)
}

func (s *ScheduleStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
