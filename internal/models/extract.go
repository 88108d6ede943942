package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Extract types.
const (
	ExtractMasterData = "master-data"
	ExtractOfflineDB  = "offline-db"
)

// Extract directions.
const (
	DirectionExport int16 = 0
	DirectionImport int16 = 1
)

// Extract keeps track of every export artifact produced for offline use.
// Sequence is monotonically increasing per extract type; the composite
// unique index turns a concurrent duplicate into an insert error instead of
// letting two extracts share a filename.
type Extract struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	UUID      uuid.UUID `json:"uuid" gorm:"type:uuid;uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`
	Type      string    `json:"type" gorm:"size:50;not null;uniqueIndex:idx_extracts_type_seq"`
	Direction int16     `json:"direction" gorm:"not null;default:0"`
	Sequence  int       `json:"sequence" gorm:"not null;default:0;uniqueIndex:idx_extracts_type_seq"`
	Filename  string    `json:"filename" gorm:"size:255;not null"`
	FileKey   string    `json:"file_key" gorm:"size:255;not null"`
	AuditUser string    `json:"audit_user" gorm:"size:255"`
}

// TableName specifies the table name for the Extract model
func (Extract) TableName() string {
	return "extracts"
}

// BeforeCreate assigns a UUID when missing.
func (e *Extract) BeforeCreate(tx *gorm.DB) error {
	if e.UUID == uuid.Nil {
		e.UUID = uuid.New()
	}
	return nil
}
