package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"reportd/internal/models"
	"reportd/internal/repository"
	"reportd/internal/storage"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	// Offline extract databases are plain SQLite files.
	_ "github.com/mattn/go-sqlite3"
)

// ExtractService produces sequenced export artifacts: the master-data XML
// dump of active definitions and the offline SQLite database snapshot used
// by disconnected renderers.
type ExtractService struct {
	definitions *repository.DefinitionRepository
	extracts    *repository.ExtractRepository
	storage     storage.Storage
	logger      *logrus.Logger
}

// NewExtractService creates an extract service.
func NewExtractService(
	definitions *repository.DefinitionRepository,
	extracts *repository.ExtractRepository,
	store storage.Storage,
	logger *logrus.Logger,
) *ExtractService {
	return &ExtractService{
		definitions: definitions,
		extracts:    extracts,
		storage:     store,
		logger:      logger,
	}
}

// CreateMasterData exports all active definitions as XML and records the
// extract with the next master-data sequence.
func (s *ExtractService) CreateMasterData(ctx context.Context, user string) (*models.Extract, error) {
	defs, err := s.definitions.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active definitions: %w", err)
	}

	payload, err := marshalDefinitionsXML(defs)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize master data: %w", err)
	}

	return s.record(ctx, models.ExtractMasterData, user, payload, func(seq int) string {
		return fmt.Sprintf("master_data_%d.xml", seq)
	})
}

// CreateOfflineDB builds a standalone SQLite database containing the active
// definitions and records the extract with the next offline-db sequence.
func (s *ExtractService) CreateOfflineDB(ctx context.Context, user string) (*models.Extract, error) {
	defs, err := s.definitions.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active definitions: %w", err)
	}

	payload, err := buildOfflineDB(ctx, defs)
	if err != nil {
		return nil, fmt.Errorf("failed to build offline database: %w", err)
	}

	return s.record(ctx, models.ExtractOfflineDB, user, payload, func(seq int) string {
		return fmt.Sprintf("definitions_%d.db3", seq)
	})
}

// record stores the artifact and the extract row; the row is removed again
// when the artifact cannot be stored.
func (s *ExtractService) record(ctx context.Context, extractType, user string, payload []byte, filename func(seq int) string) (*models.Extract, error) {
	extract := &models.Extract{
		Type:      extractType,
		Direction: models.DirectionExport,
		AuditUser: user,
	}
	err := s.extracts.CreateWithNextSequence(ctx, extract, func(seq int) (string, string) {
		name := filename(seq)
		return name, s.storage.JoinPath("extracts", extractType, name)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record extract: %w", err)
	}

	if err := s.storage.Save(ctx, extract.FileKey, bytes.NewReader(payload)); err != nil {
		if delErr := s.extracts.Delete(ctx, extract.ID); delErr != nil {
			s.logger.WithError(delErr).WithField("extract_id", extract.ID).Error("Failed to roll back extract record")
		}
		return nil, fmt.Errorf("failed to store extract artifact: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"type":       extract.Type,
		"sequence":   extract.Sequence,
		"filename":   extract.Filename,
		"audit_user": user,
	}).Info("Extract created")
	return extract, nil
}

// List returns extracts, optionally filtered by type.
func (s *ExtractService) List(ctx context.Context, extractType string) ([]models.Extract, error) {
	return s.extracts.List(ctx, extractType)
}

// File streams an extract's stored artifact.
func (s *ExtractService) File(ctx context.Context, id uuid.UUID) (io.ReadCloser, string, error) {
	extract, err := s.extracts.GetByUUID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", fmt.Errorf("%w: %s", ErrExtractNotFound, id)
		}
		return nil, "", fmt.Errorf("failed to get extract: %w", err)
	}

	reader, err := s.storage.Get(ctx, extract.FileKey)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read extract artifact: %w", err)
	}
	return reader, extract.Filename, nil
}

// buildOfflineDB writes active definitions into a temporary SQLite file and
// returns its bytes.
func buildOfflineDB(ctx context.Context, defs []models.ReportDefinition) ([]byte, error) {
	dir, err := os.MkdirTemp("", "reportd-extract")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "definitions.db3")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to create offline database: %w", err)
	}

	_, err = db.ExecContext(ctx, `CREATE TABLE report_definitions (
		uuid TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		engine INTEGER NOT NULL,
		definition TEXT NOT NULL,
		valid_from TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create offline schema: %w", err)
	}

	for _, def := range defs {
		_, err = db.ExecContext(ctx,
			`INSERT INTO report_definitions (uuid, name, engine, definition, valid_from) VALUES (?, ?, ?, ?, ?)`,
			def.ID.String(), def.Name, int16(def.Engine), def.Definition, def.ValidFrom.UTC().Format("2006-01-02T15:04:05Z"),
		)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to write definition %s: %w", def.Name, err)
		}
	}

	if err := db.Close(); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}
