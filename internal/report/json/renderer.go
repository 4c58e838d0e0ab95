package json

import (
	encjson "encoding/json"
	"fmt"
	"time"

	"github.com/AttuneLearning/cadencelms-report-engine/internal/report/types"
)

type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

func (r *Renderer) SupportedFormat() types.ReportFormat {
	return types.ReportFormatJSON
}

type document struct {
	Title       string           `json:"title"`
	ReportType  string           `json:"reportType"`
	GeneratedAt time.Time        `json:"generatedAt"`
	Columns     []string         `json:"columns"`
	Records     []map[string]any `json:"records"`
}

func (r *Renderer) Render(data *types.Dataset) (*types.Document, error) {
	doc := document{
		Title:       data.Title,
		ReportType:  data.ReportType,
		GeneratedAt: data.GeneratedAt,
		Columns:     data.Columns,
		Records:     make([]map[string]any, 0, len(data.Rows)),
	}

	for _, row := range data.Rows {
		record := make(map[string]any, len(data.Columns))
		for i, col := range data.Columns {
			if i < len(row) {
				record[col] = row[i]
			}
		}
		doc.Records = append(doc.Records, record)
	}

	content, err := encjson.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling report: %w", err)
	}

	return &types.Document{
		Content:     content,
		ContentType: "application/json",
		Extension:   "json",
	}, nil
}
