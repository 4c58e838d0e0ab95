// Package report holds the bounded catalog of report types, the parameter
// validation against each type's schema, and the renderer registry.
package report

import (
	"fmt"
	"slices"

	api "github.com/AttuneLearning/cadencelms-report-engine/api/v1alpha1"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/report/types"
	"github.com/AttuneLearning/cadencelms-report-engine/pkg/oid"
)

// Report type keys.
const (
	TypeEnrollmentSummary     = "enrollment_summary"
	TypeProgressAnalytics     = "progress_analytics"
	TypeCompletionRates       = "completion_rates"
	TypeAssessmentPerformance = "assessment_performance"
)

// Schema describes what one report type accepts.
type Schema struct {
	Type             string
	DisplayName      string
	AllowedGroupBy   []string
	AllowedMeasures  []string
	SupportedFormats []types.ReportFormat
	DefaultFormat    types.ReportFormat
	RequiresRange    bool
	// MaxRetries of 0 falls back to the engine-wide default.
	MaxRetries int
}

// Registry is the parameter-schema registry the submission gateway
// validates against. The catalog is bounded and supplied at construction.
type Registry struct {
	schemas map[string]Schema
}

func NewRegistry(schemas ...Schema) *Registry {
	r := &Registry{schemas: make(map[string]Schema, len(schemas))}
	for _, s := range schemas {
		r.schemas[s.Type] = s
	}
	return r
}

// DefaultRegistry returns the built-in LMS report catalog.
func DefaultRegistry() *Registry {
	all := []types.ReportFormat{types.ReportFormatCSV, types.ReportFormatXLSX, types.ReportFormatJSON}

	return NewRegistry(
		Schema{
			Type:             TypeEnrollmentSummary,
			DisplayName:      "Enrollment Summary",
			AllowedGroupBy:   []string{"department", "course", "class", "month"},
			AllowedMeasures:  []string{"enrollments", "active", "dropped", "waitlisted"},
			SupportedFormats: all,
			DefaultFormat:    types.ReportFormatCSV,
			RequiresRange:    true,
			MaxRetries:       3,
		},
		Schema{
			Type:             TypeProgressAnalytics,
			DisplayName:      "Progress Analytics",
			AllowedGroupBy:   []string{"department", "course", "class", "learner", "week"},
			AllowedMeasures:  []string{"completion_pct", "time_spent", "last_activity", "modules_done"},
			SupportedFormats: all,
			DefaultFormat:    types.ReportFormatXLSX,
			RequiresRange:    true,
			MaxRetries:       3,
		},
		Schema{
			Type:             TypeCompletionRates,
			DisplayName:      "Completion Rates",
			AllowedGroupBy:   []string{"department", "course", "quarter"},
			AllowedMeasures:  []string{"completed", "in_progress", "not_started", "rate"},
			SupportedFormats: all,
			DefaultFormat:    types.ReportFormatCSV,
			RequiresRange:    false,
			MaxRetries:       2,
		},
		Schema{
			Type:             TypeAssessmentPerformance,
			DisplayName:      "Assessment Performance",
			AllowedGroupBy:   []string{"course", "class", "assessment", "question"},
			AllowedMeasures:  []string{"avg_score", "median_score", "pass_rate", "attempts"},
			SupportedFormats: all,
			DefaultFormat:    types.ReportFormatXLSX,
			RequiresRange:    true,
			MaxRetries:       2,
		},
	)
}

// Lookup returns the schema for reportType.
func (r *Registry) Lookup(reportType string) (Schema, bool) {
	s, ok := r.schemas[reportType]
	return s, ok
}

// Types lists the catalog's report type keys.
func (r *Registry) Types() []string {
	keys := make([]string, 0, len(r.schemas))
	for k := range r.schemas {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// MaxRetries returns the per-type retry budget, or fallback when the type
// does not define one.
func (r *Registry) MaxRetries(reportType string, fallback int) int {
	if s, ok := r.schemas[reportType]; ok && s.MaxRetries > 0 {
		return s.MaxRetries
	}
	return fallback
}

// SupportsFormat reports whether the type can render the requested format.
func (r *Registry) SupportsFormat(reportType string, format string) bool {
	s, ok := r.schemas[reportType]
	if !ok {
		return false
	}
	return slices.Contains(s.SupportedFormats, types.ReportFormat(format))
}

// ValidateParameters checks a parameter bundle against the type's schema.
func (r *Registry) ValidateParameters(reportType string, params api.ReportParameters) error {
	s, ok := r.schemas[reportType]
	if !ok {
		return fmt.Errorf("unknown report type %q", reportType)
	}

	if s.RequiresRange {
		if params.DateRange == nil {
			return fmt.Errorf("report type %q requires a date range", reportType)
		}
		if params.DateRange.To.Before(params.DateRange.From) {
			return fmt.Errorf("date range ends (%s) before it starts (%s)",
				params.DateRange.To.Format("2006-01-02"), params.DateRange.From.Format("2006-01-02"))
		}
	}

	for _, g := range params.GroupBy {
		if !slices.Contains(s.AllowedGroupBy, g) {
			return fmt.Errorf("report type %q cannot group by %q", reportType, g)
		}
	}
	for _, m := range params.Measures {
		if !slices.Contains(s.AllowedMeasures, m) {
			return fmt.Errorf("report type %q has no measure %q", reportType, m)
		}
	}

	for _, ids := range [][]oid.ID{
		params.Filters.DepartmentIDs,
		params.Filters.CourseIDs,
		params.Filters.ClassIDs,
		params.Filters.UserIDs,
	} {
		for _, id := range ids {
			if !id.Valid() {
				return fmt.Errorf("invalid filter reference %q", id)
			}
		}
	}

	return nil
}
