package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rideline/telemetry-service/config"
	"github.com/rideline/telemetry-service/internal/api"
	"github.com/rideline/telemetry-service/internal/archive"
	"github.com/rideline/telemetry-service/internal/broadcast"
	"github.com/rideline/telemetry-service/internal/cache"
	"github.com/rideline/telemetry-service/internal/db"
	"github.com/rideline/telemetry-service/internal/fleetapi"
	"github.com/rideline/telemetry-service/internal/ingest"
	"github.com/rideline/telemetry-service/internal/normalize"
	"github.com/rideline/telemetry-service/internal/reconcile"
	"github.com/rideline/telemetry-service/internal/repository"
	"github.com/rideline/telemetry-service/internal/rostersync"
	"github.com/rideline/telemetry-service/internal/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the telemetry HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		// Load configuration
		cfg, err := config.Load()
		if err != nil {
			logrus.Fatalf("Failed to load configuration: %v", err)
		}

		logger := newLogger(cfg.Logging.Level, cfg.Logging.JSON)

		// Initialize New Relic
		nrApp, err := tracing.InitNewRelic(cfg.NewRelic)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize New Relic, continuing without tracing")
		}

		// Connect to database
		dbConn, err := db.Connect(&cfg.Database)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}

		// Run migrations
		if err := db.Migrate(dbConn); err != nil {
			logger.Fatalf("Failed to run database migrations: %v", err)
		}

		// Repositories
		vehicleRepo := repository.NewVehicleRepository(dbConn)
		driverRepo := repository.NewDriverRepository(dbConn)
		tripRepo := repository.NewTripRepository(dbConn)

		// Fleet provider client
		fleetClient := fleetapi.NewClient(&cfg.FleetAPI, logger)

		// Normalizer
		normalizer := normalize.NewNormalizer(normalize.DistanceUnit(cfg.FleetAPI.DistanceUnit), logger)

		// In-memory vehicle state
		states := cache.NewStore()

		// Broadcast sinks
		redisSink, err := broadcast.NewRedisSink(&cfg.Redis)
		if err != nil {
			logger.Fatalf("Failed to create Redis sink: %v", err)
		}
		sbSink, err := broadcast.NewServiceBusSink(&cfg.ServiceBus)
		if err != nil {
			logger.Fatalf("Failed to create Service Bus sink: %v", err)
		}
		dispatcher := broadcast.NewDispatcher(logger, redisSink, sbSink)
		dispatcher.Start()

		// Telemetry event archive
		archiver, err := archive.NewClient(&cfg.Elasticsearch)
		if err != nil {
			logger.WithError(err).Warn("Failed to create event archive, continuing without it")
			archiver = nil
		}

		// Reconciler and ingest pipeline
		reconciler := reconcile.NewReconciler(tripRepo, vehicleRepo, logger)
		pipeline := ingest.NewPipeline(normalizer, states, reconciler, archiver, dispatcher, logger)

		// Roster sync
		syncer := rostersync.NewSyncer(fleetClient, normalizer, vehicleRepo, driverRepo, cfg.Sync.Interval, logger)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if cfg.Sync.Enabled {
			go syncer.Run(ctx)
		}

		// HTTP server
		handler := api.NewHandler(pipeline, states, syncer, archiver, logger)
		server := api.NewServer(&cfg.Server, handler, nrApp, logger)

		go func() {
			if err := server.Start(); err != nil {
				logger.Fatalf("Server error: %v", err)
			}
		}()

		// Wait for a shutdown signal
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logger.Info("Shutting down")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Failed to shut down HTTP server cleanly")
		}
		dispatcher.Stop(shutdownCtx)

		if nrApp != nil {
			nrApp.Shutdown(cfg.Server.ShutdownTimeout)
		}

		logger.Info("Shutdown complete")
	},
}
