package report

import (
	"fmt"

	"github.com/AttuneLearning/cadencelms-report-engine/internal/report/csv"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/report/json"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/report/types"
	"github.com/AttuneLearning/cadencelms-report-engine/internal/report/xlsx"
)

// Renderers maps output formats to their renderer.
type Renderers struct {
	byFormat map[types.ReportFormat]types.ReportRenderer
}

func NewRenderers(renderers ...types.ReportRenderer) *Renderers {
	r := &Renderers{byFormat: make(map[types.ReportFormat]types.ReportRenderer, len(renderers))}
	for _, renderer := range renderers {
		r.byFormat[renderer.SupportedFormat()] = renderer
	}
	return r
}

// DefaultRenderers wires the csv, xlsx and json renderers.
func DefaultRenderers() *Renderers {
	return NewRenderers(csv.NewRenderer(), xlsx.NewRenderer(), json.NewRenderer())
}

func (r *Renderers) For(format string) (types.ReportRenderer, error) {
	renderer, ok := r.byFormat[types.ReportFormat(format)]
	if !ok {
		return nil, fmt.Errorf("no renderer for format %q", format)
	}
	return renderer, nil
}
