package types

import (
	"context"
	"time"

	api "github.com/AttuneLearning/cadencelms-report-engine/api/v1alpha1"
)

type ReportFormat string

const (
	ReportFormatCSV  ReportFormat = "csv"
	ReportFormatXLSX ReportFormat = "xlsx"
	ReportFormatJSON ReportFormat = "json"
)

func (f ReportFormat) ContentType() string {
	switch f {
	case ReportFormatCSV:
		return "text/csv"
	case ReportFormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ReportFormatJSON:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// Dataset is the aggregated, group-by-applied result handed to a renderer.
type Dataset struct {
	Title       string
	ReportType  string
	Columns     []string
	Rows        [][]any
	GeneratedAt time.Time
	Parameters  api.ReportParameters
}

func (d *Dataset) RecordCount() int64 {
	return int64(len(d.Rows))
}

// Document is a rendered artifact ready for upload.
type Document struct {
	Content     []byte
	ContentType string
	// Extension without the dot, e.g. "csv".
	Extension string
}

type ReportRenderer interface {
	Render(data *Dataset) (*Document, error)
	SupportedFormat() ReportFormat
}

// DataSource is the external collaborator that fetches and aggregates the
// raw data for one or more report types. Implementations own the
// per-report-type query logic; the engine only sees the resulting Dataset.
type DataSource interface {
	Fetch(ctx context.Context, reportType string, params api.ReportParameters) (*Dataset, error)
}
