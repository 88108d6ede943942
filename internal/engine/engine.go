package engine

import (
	"fmt"
	"time"

	"reportd/internal/models"
)

// Engine renders an executed report document into an output format.
type Engine interface {
	Render(doc Document, data []Dataset) ([]byte, error)
	ContentType() string
	FileExtension() string
}

// ForEngine returns the engine implementation for a definition's engine family.
func ForEngine(e models.ReportEngine) (Engine, error) {
	switch e {
	case models.EngineXLSX:
		return XLSXEngine{}, nil
	case models.EngineCSV:
		return CSVEngine{}, nil
	default:
		return nil, fmt.Errorf("no engine registered for %s", e)
	}
}

// cellValue normalizes database/sql scan results for rendering.
func cellValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case nil:
		return ""
	default:
		return val
	}
}
