package csv

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/AttuneLearning/cadencelms-report-engine/internal/report/types"
)

type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

func (r *Renderer) SupportedFormat() types.ReportFormat {
	return types.ReportFormatCSV
}

func (r *Renderer) Render(data *types.Dataset) (*types.Document, error) {
	var csvRows [][]string

	csvRows = append(csvRows, []string{data.Title})
	csvRows = append(csvRows, []string{fmt.Sprintf("Generated: %s", data.GeneratedAt.Format("2006-01-02 15:04:05 MST"))})
	if data.Parameters.DateRange != nil {
		csvRows = append(csvRows, []string{fmt.Sprintf("Period: %s to %s",
			data.Parameters.DateRange.From.Format("2006-01-02"),
			data.Parameters.DateRange.To.Format("2006-01-02"))})
	}
	csvRows = append(csvRows, []string{""})

	csvRows = append(csvRows, data.Columns)
	for _, row := range data.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprintf("%v", v)
		}
		csvRows = append(csvRows, cells)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(csvRows); err != nil {
		return nil, fmt.Errorf("writing csv: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return &types.Document{
		Content:     buf.Bytes(),
		ContentType: "text/csv",
		Extension:   "csv",
	}, nil
}
