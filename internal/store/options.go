package store

import (
	"time"

	"gorm.io/gorm"

	"github.com/AttuneLearning/cadencelms-report-engine/internal/store/model"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
)

type BaseQuerier struct {
	QueryFn []func(tx *gorm.DB) *gorm.DB
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

type JobQueryFilter BaseQuerier

func NewJobQueryFilter() *JobQueryFilter {
	return &JobQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (f *JobQueryFilter) ByStatus(status model.JobStatus) *JobQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("status = ?", status)
	})
	return f
}

func (f *JobQueryFilter) ByReportType(reportType string) *JobQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("report_type = ?", reportType)
	})
	return f
}

func (f *JobQueryFilter) ByRequestedBy(userID oid.ID) *JobQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("requested_by = ?", userID)
	})
	return f
}

func (f *JobQueryFilter) ByDepartmentID(departmentID oid.ID) *JobQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("department_id = ?", departmentID)
	})
	return f
}

func (f *JobQueryFilter) ByScheduleID(scheduleID oid.ID) *JobQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("schedule_id = ?", scheduleID)
	})
	return f
}

func (f *JobQueryFilter) CreatedAfter(t time.Time) *JobQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("created_at >= ?", t)
	})
	return f
}

func (f *JobQueryFilter) CreatedBefore(t time.Time) *JobQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("created_at <= ?", t)
	})
	return f
}

type JobQueryOptions BaseQuerier

func NewJobQueryOptions() *JobQueryOptions {
	return &JobQueryOptions{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (o *JobQueryOptions) WithPagination(page, limit int) *JobQueryOptions {
	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		if limit <= 0 {
			limit = 20
		}
		if page < 1 {
			page = 1
		}
		return tx.Offset((page - 1) * limit).Limit(limit)
	})
	return o
}

// WithSort accepts the API sort fields: createdAt, updatedAt, status, priority.
func (o *JobQueryOptions) WithSort(sortBy string, order SortOrder) *JobQueryOptions {
	column := map[string]string{
		"createdAt": "created_at",
		"updatedAt": "updated_at",
		"status":    "status",
		"priority":  "priority",
	}[sortBy]

	o.QueryFn = append(o.QueryFn, func(tx *gorm.DB) *gorm.DB {
		if column == "" {
			return tx.Order("created_at DESC")
		}
		if order == SortAsc {
			return tx.Order(column + " ASC")
		}
		return tx.Order(column + " DESC")
	})
	return o
}

type ScheduleQueryFilter BaseQuerier

func NewScheduleQueryFilter() *ScheduleQueryFilter {
	return &ScheduleQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (f *ScheduleQueryFilter) ByActive(active bool) *ScheduleQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("is_active = ?", active)
	})
	return f
}

func (f *ScheduleQueryFilter) ByReportType(reportType string) *ScheduleQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("report_type = ?", reportType)
	})
	return f
}

func (f *ScheduleQueryFilter) ByCreatedBy(userID oid.ID) *ScheduleQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("created_by = ?", userID)
	})
	return f
}

func (f *ScheduleQueryFilter) ByDepartmentID(departmentID oid.ID) *ScheduleQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("department_id = ?", departmentID)
	})
	return f
}

type TemplateQueryFilter BaseQuerier

func NewTemplateQueryFilter() *TemplateQueryFilter {
	return &TemplateQueryFilter{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

func (f *TemplateQueryFilter) ByReportType(reportType string) *TemplateQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("report_type = ?", reportType)
	})
	return f
}

func (f *TemplateQueryFilter) ByOwnerID(ownerID oid.ID) *TemplateQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("owner_id = ?", ownerID)
	})
	return f
}

func (f *TemplateQueryFilter) ByDepartmentID(departmentID oid.ID) *TemplateQueryFilter {
	f.QueryFn = append(f.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("department_id = ?", departmentID)
	})
	return f
}
