// Package v1alpha1 holds the wire types of the report engine API.
package v1alpha1

import (
	"time"

	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
)

// Job lifecycle states.
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

// Job priorities, lowest to highest.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Schedule frequencies.
const (
	FrequencyOnce      = "once"
	FrequencyDaily     = "daily"
	FrequencyWeekly    = "weekly"
	FrequencyMonthly   = "monthly"
	FrequencyQuarterly = "quarterly"
)

// DateRange bounds the data a report covers.
type DateRange struct {
	From time.Time `json:"from" validate:"required"`
	To   time.Time `json:"to" validate:"required"`
}

// ReportFilters narrows a report to a set of referenced entities.
type ReportFilters struct {
	DepartmentIDs []oid.ID `json:"departmentIds,omitempty"`
	CourseIDs     []oid.ID `json:"courseIds,omitempty"`
	ClassIDs      []oid.ID `json:"classIds,omitempty"`
	UserIDs       []oid.ID `json:"userIds,omitempty"`
}

// ReportParameters is the typed-by-reportType parameter bundle.
type ReportParameters struct {
	DateRange       *DateRange    `json:"dateRange,omitempty"`
	Filters         ReportFilters `json:"filters,omitempty"`
	GroupBy         []string      `json:"groupBy,omitempty"`
	Measures        []string      `json:"measures,omitempty"`
	IncludeInactive bool          `json:"includeInactive,omitempty"`
}

// OutputRequest is what the caller asks for.
type OutputRequest struct {
	Format   string `json:"format" validate:"required"`
	Filename string `json:"filename,omitempty"`
}

// StorageDescriptor points at a produced artifact.
type StorageDescriptor struct {
	Provider string `json:"provider"`
	Bucket   string `json:"bucket,omitempty"`
	Key      string `json:"key"`
	Url      string `json:"url"`
}

// JobOutput combines the request and, once produced, the descriptor.
type JobOutput struct {
	Format    string             `json:"format"`
	Filename  string             `json:"filename,omitempty"`
	Storage   *StorageDescriptor `json:"storage,omitempty"`
	ExpiresAt *time.Time         `json:"expiresAt,omitempty"`
}

// JobProgress is reported by the executing worker.
type JobProgress struct {
	Percentage       int    `json:"percentage"`
	CurrentStep      string `json:"currentStep,omitempty"`
	ProcessedRecords *int64 `json:"processedRecords,omitempty"`
	TotalRecords     *int64 `json:"totalRecords,omitempty"`
}

// JobError is present only when a failure occurred.
type JobError struct {
	Code        string     `json:"code"`
	Message     string     `json:"message"`
	RetryCount  int        `json:"retryCount"`
	LastRetryAt *time.Time `json:"lastRetryAt,omitempty"`
}

type CreateJobRequest struct {
	ReportType   string           `json:"reportType" validate:"required"`
	Name         string           `json:"name" validate:"required"`
	Description  string           `json:"description,omitempty"`
	Parameters   ReportParameters `json:"parameters"`
	Output       OutputRequest    `json:"output" validate:"required"`
	Priority     string           `json:"priority,omitempty"`
	Visibility   string           `json:"visibility,omitempty"`
	ScheduledFor *time.Time       `json:"scheduledFor,omitempty"`
	TemplateID   *oid.ID          `json:"templateId,omitempty"`
	DepartmentID *oid.ID          `json:"departmentId,omitempty"`
	RequestedBy  oid.ID           `json:"requestedBy" validate:"required"`
}

type JobCreated struct {
	Id                oid.ID `json:"id"`
	Status            string `json:"status"`
	QueuePosition     *int   `json:"queuePosition,omitempty"`
	EstimatedWaitTime *int64 `json:"estimatedWaitTime,omitempty"` // seconds
}

type JobSummary struct {
	Id           oid.ID     `json:"id"`
	ReportType   string     `json:"reportType"`
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	Progress     int        `json:"progress"`
	RequestedBy  oid.ID     `json:"requestedBy"`
	DepartmentID *oid.ID    `json:"departmentId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

type Job struct {
	Id           oid.ID           `json:"id"`
	ReportType   string           `json:"reportType"`
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	Parameters   ReportParameters `json:"parameters"`
	Output       JobOutput        `json:"output"`
	Priority     string           `json:"priority"`
	Visibility   string           `json:"visibility,omitempty"`
	Status       string           `json:"status"`
	Progress     JobProgress      `json:"progress"`
	Error        *JobError        `json:"error,omitempty"`
	RequestedBy  oid.ID           `json:"requestedBy"`
	DepartmentID *oid.ID          `json:"departmentId,omitempty"`
	TemplateID   *oid.ID          `json:"templateId,omitempty"`
	ScheduleID   *oid.ID          `json:"scheduleId,omitempty"`
	ScheduledFor *time.Time       `json:"scheduledFor,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
	StartedAt    *time.Time       `json:"startedAt,omitempty"`
	CompletedAt  *time.Time       `json:"completedAt,omitempty"`
	CancelledAt  *time.Time       `json:"cancelledAt,omitempty"`
}

type JobList struct {
	Items []JobSummary `json:"items"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Total int64        `json:"total"`
}

type CancelJobRequest struct {
	Reason string `json:"reason,omitempty"`
}

type JobCancelled struct {
	Id          oid.ID     `json:"id"`
	Status      string     `json:"status"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
}

type JobRetried struct {
	Id         oid.ID `json:"id"`
	Status     string `json:"status"`
	RetryCount int    `json:"retryCount"`
}

// SharingScope controls who may use a template.
type SharingScope struct {
	Users       []oid.ID `json:"users,omitempty"`
	Departments []oid.ID `json:"departments,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

type CreateTemplateRequest struct {
	Name         string           `json:"name" validate:"required"`
	Description  string           `json:"description,omitempty"`
	ReportType   string           `json:"reportType" validate:"required"`
	Parameters   ReportParameters `json:"parameters"`
	Output       OutputRequest    `json:"output"`
	Sharing      *SharingScope    `json:"sharing,omitempty"`
	OwnerID      oid.ID           `json:"ownerId" validate:"required"`
	DepartmentID *oid.ID          `json:"departmentId,omitempty"`
}

type UpdateTemplateRequest struct {
	Name        *string           `json:"name,omitempty"`
	Description *string           `json:"description,omitempty"`
	Parameters  *ReportParameters `json:"parameters,omitempty"`
	Output      *OutputRequest    `json:"output,omitempty"`
	Sharing     *SharingScope     `json:"sharing,omitempty"`
}

type CloneTemplateRequest struct {
	Name string `json:"name,omitempty"`
}

type Template struct {
	Id           oid.ID           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	ReportType   string           `json:"reportType"`
	Parameters   ReportParameters `json:"parameters"`
	Output       OutputRequest    `json:"output"`
	Sharing      *SharingScope    `json:"sharing,omitempty"`
	OwnerID      oid.ID           `json:"ownerId"`
	DepartmentID *oid.ID          `json:"departmentId,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

type CreateScheduleRequest struct {
	Name         string            `json:"name" validate:"required"`
	Description  string            `json:"description,omitempty"`
	ReportType   string            `json:"reportType" validate:"required"`
	Frequency    string            `json:"frequency" validate:"required"`
	Timezone     string            `json:"timezone,omitempty"`
	TimeOfDay    string            `json:"timeOfDay,omitempty"` // "HH:MM"
	TemplateID   *oid.ID           `json:"templateId,omitempty"`
	Parameters   *ReportParameters `json:"parameters,omitempty"`
	Output       OutputRequest     `json:"output"`
	Delivery     string            `json:"delivery,omitempty"`
	Priority     string            `json:"priority,omitempty"`
	CreatedBy    oid.ID            `json:"createdBy" validate:"required"`
	DepartmentID *oid.ID           `json:"departmentId,omitempty"`
}

type UpdateScheduleRequest struct {
	Name       *string           `json:"name,omitempty"`
	Frequency  *string           `json:"frequency,omitempty"`
	Timezone   *string           `json:"timezone,omitempty"`
	TimeOfDay  *string           `json:"timeOfDay,omitempty"`
	TemplateID *oid.ID           `json:"templateId,omitempty"`
	Parameters *ReportParameters `json:"parameters,omitempty"`
	Output     *OutputRequest    `json:"output,omitempty"`
	Delivery   *string           `json:"delivery,omitempty"`
	Priority   *string           `json:"priority,omitempty"`
}

type PauseScheduleRequest struct {
	Reason string `json:"reason,omitempty"`
}

type Schedule struct {
	Id           oid.ID            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	ReportType   string            `json:"reportType"`
	Frequency    string            `json:"frequency"`
	Timezone     string            `json:"timezone"`
	TimeOfDay    string            `json:"timeOfDay"`
	TemplateID   *oid.ID           `json:"templateId,omitempty"`
	Parameters   *ReportParameters `json:"parameters,omitempty"`
	Output       OutputRequest     `json:"output"`
	Delivery     string            `json:"delivery,omitempty"`
	Priority     string            `json:"priority"`
	IsActive     bool              `json:"isActive"`
	PausedReason string            `json:"pausedReason,omitempty"`
	NextRunAt    *time.Time        `json:"nextRunAt,omitempty"`
	LastRunAt    *time.Time        `json:"lastRunAt,omitempty"`
	CreatedBy    oid.ID            `json:"createdBy"`
	DepartmentID *oid.ID           `json:"departmentId,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// Error is the JSON error envelope returned by every endpoint.
type Error struct {
	Error     string  `json:"error"`
	Message   string  `json:"message"`
	RequestId *string `json:"requestId,omitempty"`
}
