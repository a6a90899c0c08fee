package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Flags
	debug bool

	// Root command
	rootCmd = &cobra.Command{
		Use:   "telemetry-service",
		Short: "Fleet Telemetry Service",
		Long: `Fleet telemetry ingestion and trip reconciliation for the dispatch backend.

Functions:
- Receive telemetry webhooks from the fleet tracking provider
- Maintain a live in-memory view of every tracked vehicle
- Fill odometer, coordinate, and timing fields on active trips
- Sync the vehicle and driver rosters from the provider
- Broadcast vehicle and trip updates to downstream consumers`,
	}
)

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogging)

	// Persistent flags
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Add commands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(syncCmd)
}

// initLogging configures the default logger
func initLogging() {
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}

	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// newLogger builds a logger from the logging configuration
func newLogger(level string, jsonFormat bool) *logrus.Logger {
	logger := logrus.New()
	if jsonFormat {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	if debug {
		parsed = logrus.DebugLevel
	}
	logger.SetLevel(parsed)

	return logger
}
