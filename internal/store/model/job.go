package model

import (
	"encoding/json"
	"time"

	api "github.com/AttuneLearning/cadencelms-report-engine/api/v1alpha1"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transition is legal from s.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Priority is stored numerically so the dispatcher can order on it.
type Priority int

const (
	PriorityLow    Priority = 10
	PriorityNormal Priority = 20
	PriorityHigh   Priority = 30
	PriorityUrgent Priority = 40
)

func ParsePriority(s string) (Priority, bool) {
	switch s {
	case api.PriorityLow:
		return PriorityLow, true
	case api.PriorityNormal, "":
		return PriorityNormal, true
	case api.PriorityHigh:
		return PriorityHigh, true
	case api.PriorityUrgent:
		return PriorityUrgent, true
	default:
		return PriorityNormal, false
	}
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return api.PriorityLow
	case PriorityHigh:
		return api.PriorityHigh
	case PriorityUrgent:
		return api.PriorityUrgent
	default:
		return api.PriorityNormal
	}
}

type Job struct {
	ID        oid.ID    `gorm:"primaryKey;column:id;type:VARCHAR(24)"`
	CreatedAt time.Time `gorm:"not null;index:report_jobs_dispatch_idx,priority:2"`
	UpdatedAt time.Time

	ReportType  string `gorm:"not null;type:VARCHAR(100);index"`
	Name        string `gorm:"not null"`
	Description string

	Parameters *JSONField[api.ReportParameters] `gorm:"type:jsonb"`

	OutputFormat   string `gorm:"not null;type:VARCHAR(20)"`
	OutputFilename string
	// Set by the storage manager once the artifact is persisted.
	OutputStorage   *JSONField[api.StorageDescriptor] `gorm:"type:jsonb"`
	OutputExpiresAt *time.Time

	Priority   Priority  `gorm:"not null;default:20;index:report_jobs_dispatch_idx,priority:1,sort:desc"`
	Visibility string    `gorm:"type:VARCHAR(50)"`
	Status     JobStatus `gorm:"not null;type:VARCHAR(20);index"`

	ProgressPercent  int `gorm:"not null;default:0"`
	ProgressStep     string
	ProcessedRecords *int64
	TotalRecords     *int64

	ErrorCode     string `gorm:"type:VARCHAR(100)"`
	ErrorMessage  string
	RetryCount    int `gorm:"not null;default:0"`
	LastRetryAt   *time.Time
	NextAttemptAt *time.Time

	RequestedBy  oid.ID     `gorm:"not null;type:VARCHAR(24);index"`
	DepartmentID oid.ID     `gorm:"type:VARCHAR(24);index"`
	TemplateID   oid.ID     `gorm:"type:VARCHAR(24)"`
	ScheduleID   oid.ID     `gorm:"type:VARCHAR(24);uniqueIndex:report_jobs_schedule_occurrence"`
	ScheduledFor *time.Time `gorm:"uniqueIndex:report_jobs_schedule_occurrence"`

	StartedAt    *time.Time
	CompletedAt  *time.Time
	CancelledAt  *time.Time
	CancelReason string

	// Cooperative cancellation flag checked by the executor at checkpoints.
	CancelRequested bool `gorm:"not null;default:false"`

	LeaseOwner     string `gorm:"type:VARCHAR(36)"`
	LeaseExpiresAt *time.Time
}

func (Job) TableName() string {
	return "report_jobs"
}

type JobList []Job

func (j Job) String() string {
	val, _ := json.Marshal(j)
	return string(val)
}
