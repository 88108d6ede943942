package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ReportStatus tracks the lifecycle of a report run.
type ReportStatus string

const (
	StatusPending   ReportStatus = "pending"
	StatusRunning   ReportStatus = "running"
	StatusCompleted ReportStatus = "completed"
	StatusFailed    ReportStatus = "failed"
	StatusCanceled  ReportStatus = "canceled"
)

// CanTransitionTo reports whether a status change is allowed.
func (s ReportStatus) CanTransitionTo(next ReportStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusCanceled || next == StatusFailed
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed || next == StatusCanceled
	default:
		return false
	}
}

// Report represents a recorded report run
type Report struct {
	ID          uint           `json:"id" gorm:"primarykey"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
	Title       string         `json:"title" gorm:"size:255;not null"`
	ReportName  string         `json:"report_name" gorm:"size:255;not null;index"`
	Format      string         `json:"format" gorm:"size:10;not null;default:'xlsx'"`
	Status      ReportStatus   `json:"status" gorm:"size:50;not null;default:'pending'"`
	FileKey     string         `json:"file_key,omitempty" gorm:"size:255"`
	GeneratedAt time.Time      `json:"generated_at"`
	Parameters  JSON           `json:"parameters,omitempty" gorm:"type:jsonb"`
	CreatedBy   string         `json:"created_by" gorm:"size:255;not null"`
	UpdatedBy   string         `json:"updated_by" gorm:"size:255;not null"`
}

// JSON is a custom type for handling JSONB data
type JSON map[string]interface{}

// Value implements the driver.Valuer interface for JSON
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for JSON
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSON", value)
	}

	return json.Unmarshal(bytes, j)
}

// TableName specifies the table name for the Report model
func (Report) TableName() string {
	return "reports"
}

// Validate checks the run request fields before persisting.
func (r *Report) Validate() error {
	if r.ReportName == "" {
		return fmt.Errorf("report name is required")
	}
	if r.Title == "" {
		r.Title = r.ReportName
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	if _, err := EngineFromFormat(r.Format); err != nil {
		return err
	}
	return nil
}

// IsCompleted returns true if the report generation is completed
func (r *Report) IsCompleted() bool {
	return r.Status == StatusCompleted
}

// IsPending returns true if the report is pending generation
func (r *Report) IsPending() bool {
	return r.Status == StatusPending
}

// IsFailed returns true if the report generation failed
func (r *Report) IsFailed() bool {
	return r.Status == StatusFailed
}

// SetStatus updates the report status
func (r *Report) SetStatus(status ReportStatus) {
	r.Status = status
	r.UpdatedAt = time.Now()
}
