package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"reportd/internal/cache"
	"reportd/internal/engine"
	"reportd/internal/metrics"
	"reportd/internal/models"
	"reportd/internal/query"
	"reportd/internal/repository"
	"reportd/internal/storage"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RunParams describes one report run request.
type RunParams struct {
	Name        string      `json:"name"`
	Title       string      `json:"title"`
	Format      string      `json:"format"`
	Parameters  models.JSON `json:"parameters"`
	RequestedBy string      `json:"requested_by"`
}

// ReportList is a paginated run listing.
type ReportList struct {
	Reports  []models.Report `json:"reports"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// ReportService produces report output: it resolves the definition for a
// name, executes its queries, renders through the engine and stores the
// artifact.
type ReportService struct {
	definitions *DefinitionService
	reports     *repository.ReportRepository
	executor    *query.Executor
	storage     storage.Storage
	cache       cache.RenderCache
	logger      *logrus.Logger
}

// NewReportService creates a report service.
func NewReportService(
	definitions *DefinitionService,
	reports *repository.ReportRepository,
	executor *query.Executor,
	store storage.Storage,
	renderCache cache.RenderCache,
	logger *logrus.Logger,
) *ReportService {
	return &ReportService{
		definitions: definitions,
		reports:     reports,
		executor:    executor,
		storage:     store,
		cache:       renderCache,
		logger:      logger,
	}
}

// Run records a report run, renders it and stores the artifact. The run row
// goes through pending -> running -> completed/failed so every render is
// auditable.
func (s *ReportService) Run(ctx context.Context, params RunParams) (*models.Report, error) {
	logger := s.logger.WithFields(logrus.Fields{
		"report":       params.Name,
		"requested_by": params.RequestedBy,
	})
	start := time.Now()

	resolved, err := s.definitions.Resolve(ctx, params.Name)
	if err != nil {
		return nil, err
	}

	eng, format, err := s.engineFor(resolved, params.Format)
	if err != nil {
		return nil, err
	}

	if params.RequestedBy == "" {
		params.RequestedBy = "anonymous"
	}
	report := &models.Report{
		Title:      params.Title,
		ReportName: params.Name,
		Format:     format,
		Status:     models.StatusPending,
		Parameters: params.Parameters,
		CreatedBy:  params.RequestedBy,
		UpdatedBy:  params.RequestedBy,
	}
	if err := report.Validate(); err != nil {
		return nil, err
	}
	if err := s.reports.Create(ctx, report); err != nil {
		logger.WithError(err).Error("Failed to record report run")
		return nil, fmt.Errorf("failed to create report run: %w", err)
	}
	logger = logger.WithField("report_id", report.ID)

	s.updateStatus(ctx, report, models.StatusRunning, "")

	output, err := s.render(ctx, resolved, eng, params.Parameters)
	if err != nil {
		logger.WithError(err).Error("Report generation failed")
		s.updateStatus(ctx, report, models.StatusFailed, "")
		metrics.ObserveRender(params.Name, string(models.StatusFailed), start)
		return report, fmt.Errorf("failed to generate report %s: %w", params.Name, err)
	}

	key := s.storage.JoinPath("reports", params.Name,
		fmt.Sprintf("%d_%s.%s", report.ID, time.Now().UTC().Format("20060102T150405Z"), eng.FileExtension()))
	if err := s.storage.Save(ctx, key, bytes.NewReader(output)); err != nil {
		logger.WithError(err).Error("Failed to store report artifact")
		s.updateStatus(ctx, report, models.StatusFailed, "")
		metrics.ObserveRender(params.Name, string(models.StatusFailed), start)
		return report, fmt.Errorf("failed to store report artifact: %w", err)
	}

	s.updateStatus(ctx, report, models.StatusCompleted, key)
	metrics.ObserveRender(params.Name, string(models.StatusCompleted), start)
	logger.WithField("file_key", key).Info("Report generated")
	return report, nil
}

// Render produces report output without recording a run. Rendered bytes are
// served from the cache when an identical request was rendered recently.
func (s *ReportService) Render(ctx context.Context, name, format string, params models.JSON) ([]byte, string, error) {
	start := time.Now()

	resolved, err := s.definitions.Resolve(ctx, name)
	if err != nil {
		return nil, "", err
	}
	eng, _, err := s.engineFor(resolved, format)
	if err != nil {
		return nil, "", err
	}

	definitionID := "default"
	if resolved.Override != nil {
		definitionID = resolved.Override.ID.String()
	}
	key := cache.Key(name, definitionID, eng.FileExtension(), params)

	if data, err := s.cache.Get(ctx, key); err == nil {
		metrics.CacheHitsTotal.WithLabelValues("hit").Inc()
		return data, eng.ContentType(), nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.WithError(err).Warn("Render cache lookup failed")
	}
	metrics.CacheHitsTotal.WithLabelValues("miss").Inc()

	output, err := s.render(ctx, resolved, eng, params)
	if err != nil {
		metrics.ObserveRender(name, string(models.StatusFailed), start)
		return nil, "", fmt.Errorf("failed to render report %s: %w", name, err)
	}

	if err := s.cache.Set(ctx, key, output); err != nil {
		s.logger.WithError(err).Warn("Failed to cache rendered report")
	}
	metrics.ObserveRender(name, string(models.StatusCompleted), start)
	return output, eng.ContentType(), nil
}

// render executes the document's queries and fills the engine output.
func (s *ReportService) render(ctx context.Context, resolved *ResolvedDefinition, eng engine.Engine, params models.JSON) ([]byte, error) {
	doc, err := engine.ParseDocument(resolved.Definition)
	if err != nil {
		return nil, err
	}

	data := make([]engine.Dataset, 0, len(doc.Datasets))
	for _, spec := range doc.Datasets {
		rows, err := s.executor.Execute(ctx, spec.Query, params)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", spec.Name, err)
		}
		data = append(data, engine.Dataset{Spec: spec, Rows: rows})
	}

	return eng.Render(doc, data)
}

// engineFor picks the engine: an explicit format wins, otherwise the
// definition's engine family is used.
func (s *ReportService) engineFor(resolved *ResolvedDefinition, format string) (engine.Engine, string, error) {
	family := resolved.Engine
	if format != "" {
		var err error
		family, err = models.EngineFromFormat(format)
		if err != nil {
			return nil, "", err
		}
	}
	eng, err := engine.ForEngine(family)
	if err != nil {
		return nil, "", err
	}
	return eng, family.String(), nil
}

// updateStatus persists a status change, logging instead of failing the run.
func (s *ReportService) updateStatus(ctx context.Context, report *models.Report, status models.ReportStatus, fileKey string) {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if fileKey != "" {
		updates["file_key"] = fileKey
		updates["generated_at"] = time.Now().UTC()
		report.FileKey = fileKey
		report.GeneratedAt = time.Now().UTC()
	}
	if err := s.reports.Update(ctx, report.ID, updates); err != nil {
		s.logger.WithError(err).WithField("report_id", report.ID).Error("Failed to update report status")
		return
	}
	report.SetStatus(status)
}

// Get loads a report run by ID.
func (s *ReportService) Get(ctx context.Context, id uint) (*models.Report, error) {
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrReportNotFound, id)
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

// List returns report runs with pagination.
func (s *ReportService) List(ctx context.Context, params repository.ListReportParams) (*ReportList, error) {
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.PageSize <= 0 {
		params.PageSize = 20
	}
	if params.PageSize > 100 {
		params.PageSize = 100
	}

	reports, total, err := s.reports.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return &ReportList{
		Reports:  reports,
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}, nil
}

// Delete removes a run and its stored artifact.
func (s *ReportService) Delete(ctx context.Context, id uint) error {
	report, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if report.FileKey != "" {
		if err := s.storage.Delete(ctx, report.FileKey); err != nil {
			s.logger.WithError(err).WithField("file_key", report.FileKey).Warn("Failed to delete report artifact")
		}
	}

	if err := s.reports.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}

// File streams a completed run's artifact.
func (s *ReportService) File(ctx context.Context, id uint) (io.ReadCloser, string, error) {
	report, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if !report.IsCompleted() || report.FileKey == "" {
		return nil, "", fmt.Errorf("%w: report %d is %s", ErrReportNotReady, id, report.Status)
	}

	reader, err := s.storage.Get(ctx, report.FileKey)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read report artifact: %w", err)
	}
	filename := fmt.Sprintf("%s.%s", report.Title, report.Format)
	return reader, filename, nil
}
