package main

import (
	"reportd/internal/config"
	"reportd/internal/database"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	db, err := database.NewDatabase(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	logrus.Info("Running database migrations")
	if err := database.AutoMigrate(db); err != nil {
		logrus.WithError(err).Fatal("Migration failed")
	}
	logrus.Info("Migrations completed")
}
