package cmd

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rideline/telemetry-service/config"
	"github.com/rideline/telemetry-service/internal/db"
	"github.com/rideline/telemetry-service/internal/fleetapi"
	"github.com/rideline/telemetry-service/internal/normalize"
	"github.com/rideline/telemetry-service/internal/repository"
	"github.com/rideline/telemetry-service/internal/rostersync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a one-off vehicle and driver roster sync",
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

		vehicleRepo := repository.NewVehicleRepository(dbConn)
		driverRepo := repository.NewDriverRepository(dbConn)
		fleetClient := fleetapi.NewClient(&cfg.FleetAPI, logger)
		normalizer := normalize.NewNormalizer(normalize.DistanceUnit(cfg.FleetAPI.DistanceUnit), logger)

		syncer := rostersync.NewSyncer(fleetClient, normalizer, vehicleRepo, driverRepo, cfg.Sync.Interval, logger)

		ctx := context.Background()
		if _, err := syncer.SyncVehicles(ctx); err != nil {
			logger.WithError(err).Error("Vehicle sync failed")
		}
		if _, err := syncer.SyncDrivers(ctx); err != nil {
			logger.WithError(err).Error("Driver sync failed")
		}
	},
}
