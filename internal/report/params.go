package report

import (
	api "github.com/AttuneLearning/cadencelms-report-engine/api/v1alpha1"
)

// MergeParameters layers each overlay on top of base, in order. Set
// fields replace wholesale; slices are never concatenated, the later
// layer wins. Used to resolve a job's effective parameters from template
// defaults, schedule overrides and the job's own bundle.
func MergeParameters(base api.ReportParameters, overlays ...*api.ReportParameters) api.ReportParameters {
	out := base
	for _, o := range overlays {
		if o == nil {
			continue
		}
		if o.DateRange != nil {
			out.DateRange = o.DateRange
		}
		if len(o.Filters.DepartmentIDs) > 0 {
			out.Filters.DepartmentIDs = o.Filters.DepartmentIDs
		}
		if len(o.Filters.CourseIDs) > 0 {
			out.Filters.CourseIDs = o.Filters.CourseIDs
		}
		if len(o.Filters.ClassIDs) > 0 {
			out.Filters.ClassIDs = o.Filters.ClassIDs
		}
		if len(o.Filters.UserIDs) > 0 {
			out.Filters.UserIDs = o.Filters.UserIDs
		}
		if len(o.GroupBy) > 0 {
			out.GroupBy = o.GroupBy
		}
		if len(o.Measures) > 0 {
			out.Measures = o.Measures
		}
		if o.IncludeInactive {
			out.IncludeInactive = true
		}
	}
	return out
}
