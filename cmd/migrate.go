package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rideline/telemetry-service/config"
	"github.com/rideline/telemetry-service/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			logrus.Fatalf("Failed to load configuration: %v", err)
		}

		logger := newLogger(cfg.Logging.Level, cfg.Logging.JSON)

		dbConn, err := db.Connect(&cfg.Database)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}

		if err := db.Migrate(dbConn); err != nil {
			logger.Fatalf("Failed to run database migrations: %v", err)
		}

		logger.Info("Database migrations completed")
	},
}
