package repository

import (
	"context"
	"time"

	"reportd/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefinitionRepository persists report definitions.
type DefinitionRepository struct {
	db *gorm.DB
}

// NewDefinitionRepository creates a definition repository.
func NewDefinitionRepository(db *gorm.DB) *DefinitionRepository {
	return &DefinitionRepository{db: db}
}

// Transaction runs fn against a transactional copy of the repository.
func (r *DefinitionRepository) Transaction(ctx context.Context, fn func(tx *DefinitionRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&DefinitionRepository{db: tx})
	})
}

// Create inserts a definition.
func (r *DefinitionRepository) Create(ctx context.Context, def *models.ReportDefinition) error {
	return r.db.WithContext(ctx).Create(def).Error
}

// GetByID loads a definition by UUID.
func (r *DefinitionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ReportDefinition, error) {
	var def models.ReportDefinition
	if err := r.db.WithContext(ctx).First(&def, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &def, nil
}

// GetActiveByName loads the definition whose validity window is still open.
func (r *DefinitionRepository) GetActiveByName(ctx context.Context, name string) (*models.ReportDefinition, error) {
	var def models.ReportDefinition
	err := r.db.WithContext(ctx).
		Where("name = ? AND valid_to IS NULL", name).
		First(&def).Error
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// ListActive returns all definitions with an open validity window.
func (r *DefinitionRepository) ListActive(ctx context.Context) ([]models.ReportDefinition, error) {
	var defs []models.ReportDefinition
	err := r.db.WithContext(ctx).
		Where("valid_to IS NULL").
		Order("name").
		Find(&defs).Error
	return defs, err
}

// List returns definitions filtered by name with pagination, newest first.
func (r *DefinitionRepository) List(ctx context.Context, name string, page, pageSize int) ([]models.ReportDefinition, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.ReportDefinition{})
	if name != "" {
		q = q.Where("name = ?", name)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var defs []models.ReportDefinition
	err := q.Order("valid_from DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&defs).Error
	return defs, total, err
}

// Update applies field updates to a definition.
func (r *DefinitionRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&models.ReportDefinition{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// CloseValidity ends a definition's validity window.
func (r *DefinitionRepository) CloseValidity(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ReportDefinition{}).
		Where("id = ? AND valid_to IS NULL", id).
		Update("valid_to", at).Error
}
