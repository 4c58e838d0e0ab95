package events

import (
	"time"

	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
)

// JobEvent is emitted on every job lifecycle transition.
type JobEvent struct {
	JobID        oid.ID     `json:"job_id"`
	ReportType   string     `json:"report_type"`
	Status       string     `json:"status"`
	RetryCount   int        `json:"retry_count,omitempty"`
	ErrorCode    string     `json:"error_code,omitempty"`
	DepartmentID oid.ID     `json:"department_id,omitempty"`
	DownloadURL  string     `json:"download_url,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// ScheduleEvent is emitted when the trigger fires a schedule. The
// schedule's delivery subscribers consume these.
type ScheduleEvent struct {
	ScheduleID oid.ID    `json:"schedule_id"`
	JobID      oid.ID    `json:"job_id"`
	FiredFor   time.Time `json:"fired_for"`
	Delivery   string    `json:"delivery,omitempty"`
}
