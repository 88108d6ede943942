package service

import (
	"context"
	"fmt"
	"testing"

	"reportd/internal/cache"
	"reportd/internal/models"
	"reportd/internal/repository"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testDefinitionBody = `{
  "title": "Test report",
  "datasets": [
    {
      "name": "Main",
      "query": "SELECT name, audit_user FROM report_definitions WHERE valid_to IS NULL",
      "columns": [
        {"field": "name", "header": "Name"},
        {"field": "audit_user", "header": "Audit user"}
      ]
    }
  ]
}`

func setupTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	return logger
}

func setupTestDB(t *testing.T) *gorm.DB {
	// A named shared in-memory database keeps every pooled connection on one
	// schema; the test name isolates tests from each other.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.ReportDefinition{}, &models.Report{}, &models.Extract{})
	require.NoError(t, err)

	return db
}

func setupDefinitionService(t *testing.T) (*DefinitionService, *gorm.DB) {
	db := setupTestDB(t)
	svc := NewDefinitionService(repository.NewDefinitionRepository(db), cache.NoopCache{}, setupTestLogger())
	return svc, db
}

func TestResolveFallsBackToDefault(t *testing.T) {
	svc, _ := setupDefinitionService(t)

	resolved, err := svc.Resolve(context.Background(), "report_activity")
	require.NoError(t, err)
	assert.Nil(t, resolved.Override, "built-in default must serve without an override")
	assert.Equal(t, "report_activity", resolved.Name)
	assert.NotEmpty(t, resolved.Definition)
}

func TestResolvePrefersOverride(t *testing.T) {
	svc, _ := setupDefinitionService(t)

	def := &models.ReportDefinition{
		Name:       "report_activity",
		Engine:     models.EngineCSV,
		Definition: testDefinitionBody,
		AuditUser:  "test-user",
	}
	require.NoError(t, svc.Create(context.Background(), def))

	resolved, err := svc.Resolve(context.Background(), "report_activity")
	require.NoError(t, err)
	require.NotNil(t, resolved.Override)
	assert.Equal(t, def.ID, resolved.Override.ID)
	assert.Equal(t, models.EngineCSV, resolved.Engine)
	assert.Equal(t, testDefinitionBody, resolved.Definition)
}

func TestResolveUnknownReport(t *testing.T) {
	svc, _ := setupDefinitionService(t)

	_, err := svc.Resolve(context.Background(), "no_such_report")
	assert.ErrorIs(t, err, ErrUnknownReport)
}

func TestCreateClosesPreviousOverride(t *testing.T) {
	svc, db := setupDefinitionService(t)
	ctx := context.Background()

	first := &models.ReportDefinition{
		Name:       "custom_report",
		Definition: testDefinitionBody,
		AuditUser:  "test-user",
	}
	require.NoError(t, svc.Create(ctx, first))

	second := &models.ReportDefinition{
		Name:       "custom_report",
		Definition: testDefinitionBody,
		AuditUser:  "test-user",
	}
	require.NoError(t, svc.Create(ctx, second))

	// Only the latest definition remains active.
	var activeCount int64
	db.Model(&models.ReportDefinition{}).
		Where("name = ? AND valid_to IS NULL", "custom_report").
		Count(&activeCount)
	assert.Equal(t, int64(1), activeCount)

	resolved, err := svc.Resolve(ctx, "custom_report")
	require.NoError(t, err)
	require.NotNil(t, resolved.Override)
	assert.Equal(t, second.ID, resolved.Override.ID)

	// The closed row is kept as history.
	closed, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.NotNil(t, closed.ValidTo)
}

func TestCreateRejectsInvalidBody(t *testing.T) {
	svc, _ := setupDefinitionService(t)

	def := &models.ReportDefinition{
		Name:       "broken_report",
		Definition: `{"title": "no datasets"}`,
		AuditUser:  "test-user",
	}
	err := svc.Create(context.Background(), def)
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestUpdateRejectsInvalidBody(t *testing.T) {
	svc, _ := setupDefinitionService(t)
	ctx := context.Background()

	def := &models.ReportDefinition{
		Name:       "custom_report",
		Definition: testDefinitionBody,
		AuditUser:  "test-user",
	}
	require.NoError(t, svc.Create(ctx, def))

	bad := "not a json document"
	err := svc.Update(ctx, def.ID, DefinitionUpdateParams{
		Definition: &bad,
		AuditUser:  "test-user",
	})
	assert.ErrorIs(t, err, ErrInvalidDefinition)

	// The stored definition is untouched.
	stored, err := svc.Get(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, testDefinitionBody, stored.Definition)
}

func TestCreateRejectsForbiddenQuery(t *testing.T) {
	svc, _ := setupDefinitionService(t)

	def := &models.ReportDefinition{
		Name: "evil_report",
		Definition: `{
  "datasets": [
    {
      "query": "DELETE FROM reports",
      "columns": [{"field": "id", "header": "ID"}]
    }
  ]
}`,
		AuditUser: "test-user",
	}
	err := svc.Create(context.Background(), def)
	assert.Error(t, err)
}

func TestDeleteRestoresDefault(t *testing.T) {
	svc, _ := setupDefinitionService(t)
	ctx := context.Background()

	def := &models.ReportDefinition{
		Name:       "definitions_register",
		Definition: testDefinitionBody,
		AuditUser:  "test-user",
	}
	require.NoError(t, svc.Create(ctx, def))
	require.NoError(t, svc.Delete(ctx, def.ID))

	resolved, err := svc.Resolve(ctx, "definitions_register")
	require.NoError(t, err)
	assert.Nil(t, resolved.Override, "deleting the override must restore the built-in default")
}

func TestUpdateRewritesActiveDefinition(t *testing.T) {
	svc, _ := setupDefinitionService(t)
	ctx := context.Background()

	def := &models.ReportDefinition{
		Name:       "custom_report",
		Definition: testDefinitionBody,
		AuditUser:  "test-user",
	}
	require.NoError(t, svc.Create(ctx, def))

	newEngine := models.EngineCSV
	err := svc.Update(ctx, def.ID, DefinitionUpdateParams{
		Engine:    &newEngine,
		AuditUser: "another-user",
	})
	require.NoError(t, err)

	updated, err := svc.Get(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EngineCSV, updated.Engine)
	assert.Equal(t, "another-user", updated.AuditUser)
}
