package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reportd/internal/auth"
	"reportd/internal/cache"
	"reportd/internal/config"
	"reportd/internal/database"
	"reportd/internal/query"
	"reportd/internal/repository"
	"reportd/internal/server"
	"reportd/internal/service"
	"reportd/internal/storage"

	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Dependency providers
		fx.Provide(
			provideConfig,
			provideLogger,
			database.NewDatabase,
			query.NewExecutor,
			storage.NewStorageFromConfig,
			cache.NewFromConfig,
			auth.NewMiddleware,
			repository.NewDefinitionRepository,
			repository.NewReportRepository,
			repository.NewExtractRepository,
			service.NewDefinitionService,
			service.NewReportService,
			service.NewExtractService,
			service.NewRegisterService,
			server.NewServer,
		),

		// Lifecycle hooks
		fx.Invoke(registerLifecycleHooks),
	)

	runWithGracefulShutdown(app)
}

// provideConfig loads the application configuration
func provideConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// provideLogger creates the logger from configuration
func provideLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
		logger.WithError(err).Warn("Invalid logging level, falling back to info")
	}
	logger.SetLevel(level)

	switch cfg.Logging.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	logger.WithField("config", cfg.String()).Info("Starting report service")
	return logger
}

// registerLifecycleHooks wires the HTTP server into the fx lifecycle
func registerLifecycleHooks(
	srv *server.Server,
	cfg config.Config,
	logger *logrus.Logger,
	lc fx.Lifecycle,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting HTTP server")
			go func() {
				if err := srv.Start(cfg.Server.Address); err != nil {
					logger.WithError(err).Error("HTTP server stopped")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping HTTP server")
			return srv.Shutdown(ctx)
		},
	})
}

// runWithGracefulShutdown handles the application lifecycle and signals
func runWithGracefulShutdown(app *fx.App) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	startCtx, startCancel := context.WithTimeout(ctx, 15*time.Second)
	defer startCancel()

	if err := app.Start(startCtx); err != nil {
		logrus.WithError(err).Fatal("Failed to start application")
	}

	<-quit
	logrus.Info("Shutdown signal received")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := app.Stop(stopCtx); err != nil {
		logrus.WithError(err).Error("Error during shutdown")
		os.Exit(1)
	}

	logrus.Info("Report service stopped cleanly")
}
