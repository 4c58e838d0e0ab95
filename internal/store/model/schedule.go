package model

import (
	"encoding/json"
	"time"

	api "github.com/AttuneLearning/cadencelms-report-engine/api/v1alpha1"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
)

type Schedule struct {
	ID        oid.ID    `gorm:"primaryKey;column:id;type:VARCHAR(24)"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time

	Name        string `gorm:"not null"`
	Description string
	ReportType  string `gorm:"not null;type:VARCHAR(100)"`

	Frequency string `gorm:"not null;type:VARCHAR(20)"`
	Timezone  string `gorm:"not null;type:VARCHAR(64);default:UTC"`
	TimeOfDay string `gorm:"not null;type:VARCHAR(5);default:00:00"`

	TemplateID oid.ID `gorm:"type:VARCHAR(24)"`
	// Overrides applied on top of the template defaults for each fired job.
	Parameters *JSONField[api.ReportParameters] `gorm:"type:jsonb"`

	OutputFormat   string `gorm:"not null;type:VARCHAR(20)"`
	OutputFilename string
	Delivery       string   `gorm:"type:VARCHAR(50)"`
	Priority       Priority `gorm:"not null;default:20"`

	IsActive     bool `gorm:"not null;default:true;index"`
	PausedReason string

	NextRunAt *time.Time `gorm:"index"`
	LastRunAt *time.Time

	CreatedBy    oid.ID `gorm:"not null;type:VARCHAR(24)"`
	DepartmentID oid.ID `gorm:"type:VARCHAR(24)"`
}

func (Schedule) TableName() string {
	return "report_schedules"
}

type ScheduleList []Schedule

func (s Schedule) String() string {
	val, _ := json.Marshal(s)
	return string(val)
}
