package model

import (
	"encoding/json"
	"time"

	api "github.com/AttuneLearning/cadencelms-report-engine/api/v1alpha1"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
)

type Template struct {
	ID        oid.ID    `gorm:"primaryKey;column:id;type:VARCHAR(24)"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time

	Name        string `gorm:"not null;uniqueIndex:report_templates_owner_name"`
	Description string
	ReportType  string `gorm:"not null;type:VARCHAR(100);index"`

	Parameters *JSONField[api.ReportParameters] `gorm:"type:jsonb"`

	OutputFormat   string `gorm:"type:VARCHAR(20)"`
	OutputFilename string

	Sharing *JSONField[api.SharingScope] `gorm:"type:jsonb"`

	OwnerID      oid.ID `gorm:"not null;type:VARCHAR(24);uniqueIndex:report_templates_owner_name"`
	DepartmentID oid.ID `gorm:"type:VARCHAR(24);index"`
}

func (Template) TableName() string {
	return "report_templates"
}

type TemplateList []Template

func (t Template) String() string {
	val, _ := json.Marshal(t)
	return string(val)
}
