package repository

import (
	"context"

	"reportd/internal/models"

	"gorm.io/gorm"
)

// ListReportParams filters and paginates report run listings.
type ListReportParams struct {
	Page     int
	PageSize int
	Status   *models.ReportStatus
	Name     string
}

// ReportRepository persists report runs.
type ReportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a report run repository.
func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a report run.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}

// GetByID loads a report run by ID.
func (r *ReportRepository) GetByID(ctx context.Context, id uint) (*models.Report, error) {
	var report models.Report
	if err := r.db.WithContext(ctx).First(&report, id).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

// List returns report runs matching the filter, newest first.
func (r *ReportRepository) List(ctx context.Context, params ListReportParams) ([]models.Report, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Report{})
	if params.Status != nil {
		q = q.Where("status = ?", *params.Status)
	}
	if params.Name != "" {
		q = q.Where("report_name = ?", params.Name)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reports []models.Report
	err := q.Order("id DESC").
		Offset((params.Page - 1) * params.PageSize).
		Limit(params.PageSize).
		Find(&reports).Error
	return reports, total, err
}

// Update applies field updates to a report run.
func (r *ReportRepository) Update(ctx context.Context, id uint, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&models.Report{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// Delete soft-deletes a report run.
func (r *ReportRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Report{}, id).Error
}
