package service

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"reportd/internal/metrics"
	"reportd/internal/models"

	"github.com/sirupsen/logrus"
)

// Upload strategies for register batches.
type UploadStrategy string

const (
	StrategyInsert       UploadStrategy = "insert"
	StrategyUpdate       UploadStrategy = "update"
	StrategyInsertUpdate UploadStrategy = "insert_update"
)

// ParseStrategy validates a strategy string.
func ParseStrategy(s string) (UploadStrategy, error) {
	switch UploadStrategy(s) {
	case "", StrategyInsert:
		return StrategyInsert, nil
	case StrategyUpdate:
		return StrategyUpdate, nil
	case StrategyInsertUpdate:
		return StrategyInsertUpdate, nil
	default:
		return "", fmt.Errorf("unknown upload strategy: %s", s)
	}
}

// UploadResult summarizes a register upload.
type UploadResult struct {
	Sent    int      `json:"sent"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Errors  []string `json:"errors,omitempty"`
	DryRun  bool     `json:"dry_run"`
}

type definitionXML struct {
	Name       string `xml:"name"`
	Engine     string `xml:"engine"`
	Definition string `xml:"definition"`
}

type definitionsXML struct {
	XMLName     xml.Name        `xml:"definitions"`
	Definitions []definitionXML `xml:"definition"`
}

// marshalDefinitionsXML serializes definitions as the register wire format.
func marshalDefinitionsXML(defs []models.ReportDefinition) ([]byte, error) {
	doc := definitionsXML{Definitions: make([]definitionXML, 0, len(defs))}
	for _, def := range defs {
		doc.Definitions = append(doc.Definitions, definitionXML{
			Name:       def.Name,
			Engine:     def.Engine.String(),
			Definition: def.Definition,
		})
	}
	payload, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), payload...), nil
}

// RegisterService imports and exports definition registers as XML batches.
type RegisterService struct {
	definitions *DefinitionService
	logger      *logrus.Logger
}

// NewRegisterService creates a register service.
func NewRegisterService(definitions *DefinitionService, logger *logrus.Logger) *RegisterService {
	return &RegisterService{definitions: definitions, logger: logger}
}

// UploadDefinitions imports an XML batch of definitions. The strategy decides
// how existing names are handled; with dryRun the batch is validated and
// counted but nothing is written.
func (s *RegisterService) UploadDefinitions(ctx context.Context, user string, r io.Reader, strategy UploadStrategy, dryRun bool) (*UploadResult, error) {
	var doc definitionsXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid register XML: %w", err)
	}

	result := &UploadResult{Sent: len(doc.Definitions), DryRun: dryRun}
	applied := make(map[string]bool)

	for _, entry := range doc.Definitions {
		if err := s.applyEntry(ctx, user, entry, strategy, dryRun, applied, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entry.Name, err))
		}
	}

	status := "ok"
	if len(result.Errors) > 0 {
		status = "partial"
	}
	metrics.RegisterUploadsTotal.WithLabelValues(string(strategy), status).Inc()

	s.logger.WithFields(logrus.Fields{
		"strategy":   strategy,
		"dry_run":    dryRun,
		"sent":       result.Sent,
		"created":    result.Created,
		"updated":    result.Updated,
		"errors":     len(result.Errors),
		"audit_user": user,
	}).Info("Register upload processed")
	return result, nil
}

// applyEntry validates one batch entry and applies the strategy. A name
// applied earlier in the batch counts as existing, so dry-run totals match
// what a real upload would do.
func (s *RegisterService) applyEntry(ctx context.Context, user string, entry definitionXML, strategy UploadStrategy, dryRun bool, applied map[string]bool, result *UploadResult) error {
	if entry.Name == "" {
		return fmt.Errorf("definition has no name")
	}

	engineFamily, err := models.EngineFromFormat(entry.Engine)
	if err != nil {
		return err
	}

	def := &models.ReportDefinition{
		Name:       entry.Name,
		Engine:     engineFamily,
		Definition: entry.Definition,
		AuditUser:  user,
	}
	if err := s.definitions.validateDefinition(def); err != nil {
		return err
	}

	_, err = s.definitions.ActiveByName(ctx, entry.Name)
	if err != nil && !errors.Is(err, ErrDefinitionNotFound) {
		return err
	}
	exists := err == nil || applied[entry.Name]

	switch strategy {
	case StrategyInsert:
		if exists {
			return ErrDuplicateDefinition
		}
	case StrategyUpdate:
		if !exists {
			return ErrDefinitionNotFound
		}
	case StrategyInsertUpdate:
		// Either way.
	default:
		return fmt.Errorf("unknown upload strategy: %s", strategy)
	}

	if !dryRun {
		if err := s.definitions.Create(ctx, def); err != nil {
			return err
		}
	}

	if exists {
		result.Updated++
	} else {
		result.Created++
	}
	applied[entry.Name] = true
	return nil
}

// DownloadDefinitions exports all active definitions as the register XML.
func (s *RegisterService) DownloadDefinitions(ctx context.Context) ([]byte, error) {
	defs, err := s.definitions.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active definitions: %w", err)
	}
	return marshalDefinitionsXML(defs)
}
