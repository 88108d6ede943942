package repository

import (
	"context"

	"reportd/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExtractRepository persists extract records.
type ExtractRepository struct {
	db *gorm.DB
}

// NewExtractRepository creates an extract repository.
func NewExtractRepository(db *gorm.DB) *ExtractRepository {
	return &ExtractRepository{db: db}
}

// CreateWithNextSequence inserts an extract with the next sequence number for
// its type. The name callback derives filename and file key from the assigned
// sequence; the sequence read and the insert share one transaction.
func (r *ExtractRepository) CreateWithNextSequence(ctx context.Context, extract *models.Extract, name func(seq int) (filename, fileKey string)) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSeq int
		err := tx.Model(&models.Extract{}).
			Where("type = ?", extract.Type).
			Select("COALESCE(MAX(sequence), 0)").
			Scan(&maxSeq).Error
		if err != nil {
			return err
		}
		extract.Sequence = maxSeq + 1
		extract.Filename, extract.FileKey = name(extract.Sequence)
		return tx.Create(extract).Error
	})
}

// Delete removes an extract record.
func (r *ExtractRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Extract{}, id).Error
}

// GetByUUID loads an extract by its UUID.
func (r *ExtractRepository) GetByUUID(ctx context.Context, id uuid.UUID) (*models.Extract, error) {
	var extract models.Extract
	if err := r.db.WithContext(ctx).First(&extract, "uuid = ?", id).Error; err != nil {
		return nil, err
	}
	return &extract, nil
}

// List returns extracts, newest first, optionally filtered by type.
func (r *ExtractRepository) List(ctx context.Context, extractType string) ([]models.Extract, error) {
	q := r.db.WithContext(ctx).Model(&models.Extract{})
	if extractType != "" {
		q = q.Where("type = ?", extractType)
	}
	var extracts []models.Extract
	err := q.Order("id DESC").Find(&extracts).Error
	return extracts, err
}
