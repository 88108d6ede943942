package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"reportd/internal/auth"
	"reportd/internal/models"
	"reportd/internal/query"
	"reportd/internal/repository"
	"reportd/internal/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnknownReport),
		errors.Is(err, service.ErrDefinitionNotFound),
		errors.Is(err, service.ErrReportNotFound),
		errors.Is(err, service.ErrExtractNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrReportNotReady):
		return http.StatusConflict
	case errors.Is(err, service.ErrDuplicateDefinition),
		errors.Is(err, service.ErrInvalidDefinition),
		errors.Is(err, query.ErrForbiddenQuery),
		errors.Is(err, query.ErrMissingParameter):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c echo.Context, err error, msg string) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).Error(msg)
		return c.JSON(status, map[string]string{"error": msg})
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}

type definitionRequest struct {
	Name       string `json:"name"`
	Engine     string `json:"engine"`
	Definition string `json:"definition"`
}

// createDefinition handles storing a definition override
func (s *Server) createDefinition(c echo.Context) error {
	var req definitionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	engineFamily, err := models.EngineFromFormat(req.Engine)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	def := &models.ReportDefinition{
		Name:       req.Name,
		Engine:     engineFamily,
		Definition: req.Definition,
		AuditUser:  auth.UserFromContext(c),
	}
	if err := s.definitions.Create(c.Request().Context(), def); err != nil {
		return s.fail(c, err, "Failed to create definition")
	}

	return c.JSON(http.StatusCreated, def)
}

// listDefinitions handles listing definitions
func (s *Server) listDefinitions(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))

	list, err := s.definitions.List(c.Request().Context(), c.QueryParam("name"), page, pageSize)
	if err != nil {
		return s.fail(c, err, "Failed to list definitions")
	}
	return c.JSON(http.StatusOK, list)
}

// getDefinition handles getting a single definition
func (s *Server) getDefinition(c echo.Context) error {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid definition UUID"})
	}

	def, err := s.definitions.Get(c.Request().Context(), id)
	if err != nil {
		return s.fail(c, err, "Failed to get definition")
	}
	return c.JSON(http.StatusOK, def)
}

// updateDefinition handles rewriting a definition
func (s *Server) updateDefinition(c echo.Context) error {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid definition UUID"})
	}

	var req struct {
		Engine     *string `json:"engine"`
		Definition *string `json:"definition"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	params := service.DefinitionUpdateParams{
		Definition: req.Definition,
		AuditUser:  auth.UserFromContext(c),
	}
	if req.Engine != nil {
		engineFamily, err := models.EngineFromFormat(*req.Engine)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		params.Engine = &engineFamily
	}

	if err := s.definitions.Update(c.Request().Context(), id, params); err != nil {
		return s.fail(c, err, "Failed to update definition")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Definition updated successfully"})
}

// deleteDefinition closes a definition's validity window
func (s *Server) deleteDefinition(c echo.Context) error {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid definition UUID"})
	}

	if err := s.definitions.Delete(c.Request().Context(), id); err != nil {
		return s.fail(c, err, "Failed to delete definition")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Definition deleted successfully"})
}

// downloadDefinitions exports the active definitions as XML
func (s *Server) downloadDefinitions(c echo.Context) error {
	payload, err := s.registers.DownloadDefinitions(c.Request().Context())
	if err != nil {
		return s.fail(c, err, "Failed to export definitions")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="definitions.xml"`)
	return c.Blob(http.StatusOK, "application/xml", payload)
}

// uploadDefinitions imports an XML register batch
func (s *Server) uploadDefinitions(c echo.Context) error {
	strategy, err := service.ParseStrategy(c.QueryParam("strategy"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	dryRun, _ := strconv.ParseBool(c.QueryParam("dry_run"))

	result, err := s.registers.UploadDefinitions(
		c.Request().Context(),
		auth.UserFromContext(c),
		c.Request().Body,
		strategy,
		dryRun,
	)
	if err != nil {
		if status := statusFor(err); status != http.StatusInternalServerError {
			return c.JSON(status, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

// runReport handles report run creation
func (s *Server) runReport(c echo.Context) error {
	var params service.RunParams
	if err := c.Bind(&params); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}
	if params.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Report name is required"})
	}
	if params.RequestedBy == "" {
		params.RequestedBy = auth.UserFromContext(c)
	}

	report, err := s.reports.Run(c.Request().Context(), params)
	if err != nil {
		return s.fail(c, err, "Failed to run report")
	}
	return c.JSON(http.StatusCreated, report)
}

// previewReport renders a report directly without recording a run
func (s *Server) previewReport(c echo.Context) error {
	name := c.Param("name")
	format := c.QueryParam("format")

	// Remaining query parameters feed the report queries.
	params := models.JSON{}
	for key, values := range c.QueryParams() {
		if key == "format" || len(values) == 0 {
			continue
		}
		params[key] = values[0]
	}

	output, contentType, err := s.reports.Render(c.Request().Context(), name, format, params)
	if err != nil {
		return s.fail(c, err, "Failed to render report")
	}
	return c.Blob(http.StatusOK, contentType, output)
}

// listReports handles listing report runs
func (s *Server) listReports(c echo.Context) error {
	params := repository.ListReportParams{Name: c.QueryParam("name")}
	params.Page, _ = strconv.Atoi(c.QueryParam("page"))
	params.PageSize, _ = strconv.Atoi(c.QueryParam("page_size"))
	if status := c.QueryParam("status"); status != "" {
		reportStatus := models.ReportStatus(status)
		params.Status = &reportStatus
	}

	list, err := s.reports.List(c.Request().Context(), params)
	if err != nil {
		return s.fail(c, err, "Failed to list reports")
	}
	return c.JSON(http.StatusOK, list)
}

// getReport handles getting a single report run
func (s *Server) getReport(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid report ID"})
	}

	report, err := s.reports.Get(c.Request().Context(), uint(id))
	if err != nil {
		return s.fail(c, err, "Failed to get report")
	}
	return c.JSON(http.StatusOK, report)
}

// deleteReport handles report run deletion
func (s *Server) deleteReport(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid report ID"})
	}

	if err := s.reports.Delete(c.Request().Context(), uint(id)); err != nil {
		return s.fail(c, err, "Failed to delete report")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Report deleted successfully"})
}

// downloadReport streams a completed run's artifact
func (s *Server) downloadReport(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid report ID"})
	}

	reader, filename, err := s.reports.File(c.Request().Context(), uint(id))
	if err != nil {
		return s.fail(c, err, "Failed to download report")
	}
	defer reader.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Stream(http.StatusOK, "application/octet-stream", reader)
}

// createMasterDataExtract exports the active definitions register
func (s *Server) createMasterDataExtract(c echo.Context) error {
	extract, err := s.extracts.CreateMasterData(c.Request().Context(), auth.UserFromContext(c))
	if err != nil {
		return s.fail(c, err, "Failed to create master data extract")
	}
	return c.JSON(http.StatusCreated, extract)
}

// createOfflineDBExtract builds the offline definitions database
func (s *Server) createOfflineDBExtract(c echo.Context) error {
	extract, err := s.extracts.CreateOfflineDB(c.Request().Context(), auth.UserFromContext(c))
	if err != nil {
		return s.fail(c, err, "Failed to create offline database extract")
	}
	return c.JSON(http.StatusCreated, extract)
}

// listExtracts handles listing extracts
func (s *Server) listExtracts(c echo.Context) error {
	extracts, err := s.extracts.List(c.Request().Context(), c.QueryParam("type"))
	if err != nil {
		return s.fail(c, err, "Failed to list extracts")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"extracts": extracts,
		"count":    len(extracts),
	})
}

// downloadExtract streams an extract artifact
func (s *Server) downloadExtract(c echo.Context) error {
	id, err := uuid.Parse(c.Param("uuid"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid extract UUID"})
	}

	reader, filename, err := s.extracts.File(c.Request().Context(), id)
	if err != nil {
		return s.fail(c, err, "Failed to download extract")
	}
	defer reader.Close()

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Stream(http.StatusOK, "application/octet-stream", reader)
}
