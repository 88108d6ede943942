package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"reportd/internal/auth"
	"reportd/internal/cache"
	"reportd/internal/config"
	"reportd/internal/models"
	"reportd/internal/query"
	"reportd/internal/repository"
	"reportd/internal/service"
	"reportd/internal/storage"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const serverTestBody = `{
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

func setupTestServer(t *testing.T, authEnabled bool) (*Server, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ReportDefinition{}, &models.Report{}, &models.Extract{}))

	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	cfg := config.Config{
		Auth: config.Auth{
			Enabled: authEnabled,
			Secret:  "test-secret",
			Issuer:  "reportd-test",
		},
	}

	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()}, logger)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)

	definitions := service.NewDefinitionService(repository.NewDefinitionRepository(db), cache.NoopCache{}, logger)
	reports := service.NewReportService(
		definitions,
		repository.NewReportRepository(db),
		query.NewExecutorFromDB(sqlDB, "sqlite"),
		store,
		cache.NoopCache{},
		logger,
	)
	extracts := service.NewExtractService(
		repository.NewDefinitionRepository(db),
		repository.NewExtractRepository(db),
		store,
		logger,
	)
	registers := service.NewRegisterService(definitions, logger)

	srv := NewServer(cfg, definitions, reports, extracts, registers, auth.NewMiddleware(cfg, logger), logger)
	return srv, db
}

func doRequest(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func bearer(t *testing.T, rights ...string) string {
	t.Helper()
	token, err := auth.Sign([]byte("test-secret"), "reportd-test", "test-user", rights, time.Minute)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestDownloadRoutesRequireAuth(t *testing.T) {
	srv, _ := setupTestServer(t, true)

	targets := []string{
		"/api/v1/definitions/download",
		"/api/v1/reports/1/download",
		"/api/v1/extracts/" + uuid.NewString() + "/download",
	}
	for _, target := range targets {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := doRequest(srv, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
}

func TestDownloadDefinitionsWithRight(t *testing.T) {
	srv, db := setupTestServer(t, true)

	def := &models.ReportDefinition{
		Name:       "custom_report",
		Definition: serverTestBody,
		AuditUser:  "test-user",
	}
	require.NoError(t, db.Create(def).Error)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/definitions/download", nil)
	req.Header.Set(echo.HeaderAuthorization, bearer(t, auth.RightManageDefinitions))
	rec := doRequest(srv, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<name>custom_report</name>")
}

func TestDownloadReportRejectsWrongRight(t *testing.T) {
	srv, _ := setupTestServer(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/1/download", nil)
	req.Header.Set(echo.HeaderAuthorization, bearer(t, auth.RightManageExtracts))
	rec := doRequest(srv, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateDefinitionInvalidBodyReturns400(t *testing.T) {
	srv, _ := setupTestServer(t, false)

	payload := `{"name": "broken_report", "engine": "csv", "definition": "not a json document"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/definitions", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := doRequest(srv, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateDefinitionInvalidBodyReturns400(t *testing.T) {
	srv, db := setupTestServer(t, false)

	def := &models.ReportDefinition{
		Name:       "custom_report",
		Definition: serverTestBody,
		AuditUser:  "test-user",
	}
	require.NoError(t, db.Create(def).Error)

	payload := `{"definition": "not a json document"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/definitions/"+def.ID.String(), strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := doRequest(srv, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
