package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reportd/internal/cache"
	"reportd/internal/defaults"
	"reportd/internal/engine"
	"reportd/internal/models"
	"reportd/internal/query"
	"reportd/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ResolvedDefinition is the outcome of a report name lookup. Override is nil
// when the built-in default served the request.
type ResolvedDefinition struct {
	Name       string
	Engine     models.ReportEngine
	Definition string
	Override   *models.ReportDefinition
}

// DefinitionList is a paginated definition listing.
type DefinitionList struct {
	Definitions []models.ReportDefinition `json:"definitions"`
	Total       int64                     `json:"total"`
	Page        int                       `json:"page"`
	PageSize    int                       `json:"page_size"`
}

// DefinitionUpdateParams carries the mutable definition fields.
type DefinitionUpdateParams struct {
	Engine     *models.ReportEngine `json:"engine,omitempty"`
	Definition *string              `json:"definition,omitempty"`
	AuditUser  string               `json:"audit_user"`
}

// DefinitionService manages stored report definitions and resolves report
// names to the definition that should render them.
type DefinitionService struct {
	repo   *repository.DefinitionRepository
	cache  cache.RenderCache
	logger *logrus.Logger
}

// NewDefinitionService creates a definition service.
func NewDefinitionService(repo *repository.DefinitionRepository, renderCache cache.RenderCache, logger *logrus.Logger) *DefinitionService {
	return &DefinitionService{repo: repo, cache: renderCache, logger: logger}
}

// Resolve returns the active override for a report name, falling back to the
// built-in default. Unknown names return ErrUnknownReport.
func (s *DefinitionService) Resolve(ctx context.Context, name string) (*ResolvedDefinition, error) {
	def, err := s.repo.GetActiveByName(ctx, name)
	if err == nil {
		return &ResolvedDefinition{
			Name:       name,
			Engine:     def.Engine,
			Definition: def.Definition,
			Override:   def,
		}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up definition for %s: %w", name, err)
	}

	builtin, ok := defaults.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReport, name)
	}
	return &ResolvedDefinition{
		Name:       name,
		Engine:     builtin.Engine,
		Definition: builtin.Body,
	}, nil
}

// ActiveByName returns the active override for a name, without the default
// fallback.
func (s *DefinitionService) ActiveByName(ctx context.Context, name string) (*models.ReportDefinition, error) {
	def, err := s.repo.GetActiveByName(ctx, name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDefinitionNotFound, name)
		}
		return nil, fmt.Errorf("failed to look up definition for %s: %w", name, err)
	}
	return def, nil
}

// ListActive returns every definition with an open validity window.
func (s *DefinitionService) ListActive(ctx context.Context) ([]models.ReportDefinition, error) {
	return s.repo.ListActive(ctx)
}

// Create stores a new override. An existing active definition for the same
// name has its validity window closed in the same transaction, keeping at
// most one active definition per name while preserving history.
func (s *DefinitionService) Create(ctx context.Context, def *models.ReportDefinition) error {
	logger := s.logger.WithFields(logrus.Fields{
		"name":       def.Name,
		"audit_user": def.AuditUser,
	})

	if err := s.validateDefinition(def); err != nil {
		logger.WithError(err).Error("Definition validation failed")
		return err
	}

	err := s.repo.Transaction(ctx, func(tx *repository.DefinitionRepository) error {
		prev, err := tx.GetActiveByName(ctx, def.Name)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if prev != nil {
			if err := tx.CloseValidity(ctx, prev.ID, time.Now().UTC()); err != nil {
				return fmt.Errorf("failed to close previous definition: %w", err)
			}
		}
		return tx.Create(ctx, def)
	})
	if err != nil {
		logger.WithError(err).Error("Failed to store definition")
		return fmt.Errorf("failed to create definition: %w", err)
	}

	if err := s.cache.Invalidate(ctx, def.Name); err != nil {
		logger.WithError(err).Warn("Failed to invalidate render cache")
	}

	logger.WithField("uuid", def.ID).Info("Definition stored")
	return nil
}

// Get loads a definition by UUID.
func (s *DefinitionService) Get(ctx context.Context, id uuid.UUID) (*models.ReportDefinition, error) {
	def, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDefinitionNotFound, id)
		}
		return nil, fmt.Errorf("failed to get definition: %w", err)
	}
	return def, nil
}

// List returns definitions filtered by name.
func (s *DefinitionService) List(ctx context.Context, name string, page, pageSize int) (*DefinitionList, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	defs, total, err := s.repo.List(ctx, name, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	return &DefinitionList{
		Definitions: defs,
		Total:       total,
		Page:        page,
		PageSize:    pageSize,
	}, nil
}

// Update rewrites the mutable fields of an active definition.
func (s *DefinitionService) Update(ctx context.Context, id uuid.UUID, params DefinitionUpdateParams) error {
	def, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !def.IsActive() {
		return fmt.Errorf("%w: definition %s is closed", ErrDefinitionNotFound, id)
	}

	updates := map[string]interface{}{
		"audit_user": params.AuditUser,
		"updated_at": time.Now().UTC(),
	}
	if params.Engine != nil {
		def.Engine = *params.Engine
		updates["engine"] = *params.Engine
	}
	if params.Definition != nil {
		def.Definition = *params.Definition
		updates["definition"] = *params.Definition
	}

	if err := s.validateDefinition(def); err != nil {
		return err
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return fmt.Errorf("failed to update definition: %w", err)
	}

	if err := s.cache.Invalidate(ctx, def.Name); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate render cache")
	}
	return nil
}

// Delete closes a definition's validity window. The built-in default serves
// the report name afterwards.
func (s *DefinitionService) Delete(ctx context.Context, id uuid.UUID) error {
	def, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.CloseValidity(ctx, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to delete definition: %w", err)
	}
	if err := s.cache.Invalidate(ctx, def.Name); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate render cache")
	}
	s.logger.WithFields(logrus.Fields{"uuid": id, "name": def.Name}).Info("Definition closed")
	return nil
}

// validateDefinition checks model fields, the document body and its queries.
func (s *DefinitionService) validateDefinition(def *models.ReportDefinition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	doc, err := engine.ParseDocument(def.Definition)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	for _, ds := range doc.Datasets {
		if err := query.Validate(ds.Query); err != nil {
			return err
		}
	}
	return nil
}
