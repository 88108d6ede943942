package server

import (
	"context"
	"net/http"
	"time"

	"reportd/internal/auth"
	"reportd/internal/config"
	"reportd/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server represents the HTTP server
type Server struct {
	echo        *echo.Echo
	definitions *service.DefinitionService
	reports     *service.ReportService
	extracts    *service.ExtractService
	registers   *service.RegisterService
	logger      *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(
	cfg config.Config,
	definitions *service.DefinitionService,
	reports *service.ReportService,
	extracts *service.ExtractService,
	registers *service.RegisterService,
	authMiddleware *auth.Middleware,
	logger *logrus.Logger,
) *Server {
	e := echo.New()
	e.Debug = cfg.Server.Debug
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())

	if cfg.Server.Debug {
		e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Format: "${time_rfc3339} ${method} ${uri} ${status} ${latency_human} ${error}\n",
		}))
	}

	server := &Server{
		echo:        e,
		definitions: definitions,
		reports:     reports,
		extracts:    extracts,
		registers:   registers,
		logger:      logger,
	}

	server.setupRoutes(cfg, authMiddleware)
	return server
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.WithField("address", address).Info("Starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// setupRoutes configures the server routes
func (s *Server) setupRoutes(cfg config.Config, authMW *auth.Middleware) {
	// Health check
	s.echo.GET("/health", s.healthCheck)

	if cfg.Metrics.Enabled {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	// API routes
	api := s.echo.Group("/api/v1")
	{
		definitions := api.Group("/definitions")
		{
			definitions.GET("", s.listDefinitions)
			definitions.GET("/download", s.downloadDefinitions, authMW.Require(auth.RightManageDefinitions))
			definitions.GET("/:uuid", s.getDefinition)
			definitions.POST("", s.createDefinition, authMW.Require(auth.RightManageDefinitions))
			definitions.PUT("/:uuid", s.updateDefinition, authMW.Require(auth.RightManageDefinitions))
			definitions.DELETE("/:uuid", s.deleteDefinition, authMW.Require(auth.RightManageDefinitions))
			definitions.POST("/upload", s.uploadDefinitions, authMW.Require(auth.RightUploadRegisters))
		}

		reports := api.Group("/reports")
		{
			reports.POST("", s.runReport, authMW.Require(auth.RightRunReports))
			reports.GET("", s.listReports)
			reports.GET("/:id", s.getReport)
			reports.DELETE("/:id", s.deleteReport, authMW.Require(auth.RightRunReports))
			reports.GET("/:id/download", s.downloadReport, authMW.Require(auth.RightRunReports))
			reports.GET("/preview/:name", s.previewReport, authMW.Require(auth.RightRunReports))
		}

		extracts := api.Group("/extracts")
		{
			extracts.POST("/master-data", s.createMasterDataExtract, authMW.Require(auth.RightManageExtracts))
			extracts.POST("/offline-db", s.createOfflineDBExtract, authMW.Require(auth.RightManageExtracts))
			extracts.GET("", s.listExtracts)
			extracts.GET("/:uuid/download", s.downloadExtract, authMW.Require(auth.RightManageExtracts))
		}
	}
}

// healthCheck handles health check requests
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "reportd",
	})
}
