package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReportEngine selects the rendering engine family for a definition.
type ReportEngine int16

const (
	EngineXLSX ReportEngine = iota
	EngineCSV
)

// String returns the engine name as used for formats and file extensions.
func (e ReportEngine) String() string {
	switch e {
	case EngineXLSX:
		return "xlsx"
	case EngineCSV:
		return "csv"
	default:
		return fmt.Sprintf("unknown(%d)", int16(e))
	}
}

// EngineFromFormat maps a format string to an engine.
func EngineFromFormat(format string) (ReportEngine, error) {
	switch format {
	case "", "xlsx":
		return EngineXLSX, nil
	case "csv":
		return EngineCSV, nil
	default:
		return 0, fmt.Errorf("unsupported report format: %s", format)
	}
}

// ReportDefinition is a stored, overridable report template. A definition is
// active while ValidTo is NULL; at most one active definition exists per name.
type ReportDefinition struct {
	ID         uuid.UUID    `json:"uuid" gorm:"type:uuid;primaryKey"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
	Name       string       `json:"name" gorm:"size:255;not null;index"`
	Engine     ReportEngine `json:"engine" gorm:"not null;default:0"`
	Definition string       `json:"definition" gorm:"type:text;not null"`
	ValidFrom  time.Time    `json:"valid_from" gorm:"not null"`
	ValidTo    *time.Time   `json:"valid_to,omitempty" gorm:"index"`
	AuditUser  string       `json:"audit_user" gorm:"size:255"`
}

// TableName specifies the table name for the ReportDefinition model
func (ReportDefinition) TableName() string {
	return "report_definitions"
}

// BeforeCreate assigns a UUID and the validity start when missing.
func (d *ReportDefinition) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.ValidFrom.IsZero() {
		d.ValidFrom = time.Now().UTC()
	}
	return nil
}

// IsActive returns true while the validity window is open.
func (d *ReportDefinition) IsActive() bool {
	return d.ValidTo == nil
}

// Validate checks the definition before it is persisted.
func (d *ReportDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("definition name is required")
	}
	if d.Definition == "" {
		return fmt.Errorf("definition body is required")
	}
	if d.Engine != EngineXLSX && d.Engine != EngineCSV {
		return fmt.Errorf("unknown report engine: %d", d.Engine)
	}
	return nil
}
