package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the service configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	ServiceBus    ServiceBusConfig
	NewRelic      NewRelicConfig
	Elasticsearch ElasticsearchConfig
	FleetAPI      FleetAPIConfig
	Sync          SyncConfig
	Logging       LoggingConfig
}

// ServerConfig holds the HTTP server configuration
type ServerConfig struct {
	Port            int
	Mode            string // debug, release, test
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds the database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConn  int
	MaxIdle  int
	MaxLife  time.Duration
	Debug    bool
}

// RedisConfig holds the Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	Channel  string
}

// ServiceBusConfig holds the Azure Service Bus configuration
type ServiceBusConfig struct {
	Enabled          bool
	ConnectionString string
	QueueName        string
}

// NewRelicConfig holds the New Relic configuration
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// ElasticsearchConfig holds the Elasticsearch configuration
type ElasticsearchConfig struct {
	Enabled  bool
	URLs     []string
	Username string
	Password string
	Index    string
}

// FleetAPIConfig holds the external fleet tracking provider configuration
type FleetAPIConfig struct {
	BaseURL   string
	AccountID string
	SecretKey string
	Timeout   time.Duration
	// DistanceUnit is the unit the provider reports odometer and trip
	// distances in: "km" or "mi". The provider contract has changed before,
	// so this stays configurable rather than hard-coded.
	DistanceUnit string
}

// SyncConfig holds the roster sync job configuration
type SyncConfig struct {
	Interval time.Duration
	Enabled  bool
}

// LoggingConfig holds the logging configuration
type LoggingConfig struct {
	Level string
	JSON  bool
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	port, _ := strconv.Atoi(getEnv("PORT", "8096"))
	shutdownTimeout, _ := time.ParseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"))

	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	dbMaxConn, _ := strconv.Atoi(getEnv("DB_MAX_CONN", "20"))
	dbMaxIdle, _ := strconv.Atoi(getEnv("DB_MAX_IDLE", "5"))
	dbMaxLife, _ := time.ParseDuration(getEnv("DB_MAX_LIFE", "30m"))
	dbDebug, _ := strconv.ParseBool(getEnv("DB_DEBUG", "false"))

	redisEnabled, _ := strconv.ParseBool(getEnv("REDIS_ENABLED", "true"))
	redisPort, _ := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	sbEnabled, _ := strconv.ParseBool(getEnv("SERVICEBUS_ENABLED", "false"))

	nrEnabled, _ := strconv.ParseBool(getEnv("NEW_RELIC_ENABLED", "false"))

	esEnabled, _ := strconv.ParseBool(getEnv("ES_ENABLED", "false"))
	esURLs := []string{getEnv("ES_URL", "http://localhost:9200")}

	fleetTimeout, _ := time.ParseDuration(getEnv("FLEET_API_TIMEOUT", "15s"))

	syncInterval, _ := time.ParseDuration(getEnv("SYNC_INTERVAL", "6h"))
	syncEnabled, _ := strconv.ParseBool(getEnv("SYNC_ENABLED", "true"))

	logJSON, _ := strconv.ParseBool(getEnv("LOG_JSON", "false"))

	return &Config{
		Server: ServerConfig{
			Port:            port,
			Mode:            getEnv("GIN_MODE", "debug"),
			ShutdownTimeout: shutdownTimeout,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "telemetry_db"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConn:  dbMaxConn,
			MaxIdle:  dbMaxIdle,
			MaxLife:  dbMaxLife,
			Debug:    dbDebug,
		},
		Redis: RedisConfig{
			Enabled:  redisEnabled,
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     redisPort,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			Channel:  getEnv("REDIS_BROADCAST_CHANNEL", "fleet.events"),
		},
		ServiceBus: ServiceBusConfig{
			Enabled:          sbEnabled,
			ConnectionString: getEnv("SERVICEBUS_CONNECTION_STRING", ""),
			QueueName:        getEnv("SERVICEBUS_QUEUE_NAME", "dispatch-events"),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "Fleet Telemetry Service"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    nrEnabled,
		},
		Elasticsearch: ElasticsearchConfig{
			Enabled:  esEnabled,
			URLs:     esURLs,
			Username: getEnv("ES_USERNAME", ""),
			Password: getEnv("ES_PASSWORD", ""),
			Index:    getEnv("ES_INDEX", "telemetry-events"),
		},
		FleetAPI: FleetAPIConfig{
			BaseURL:      getEnv("FLEET_API_BASE_URL", "https://api.fleet-provider.example.com"),
			AccountID:    getEnv("FLEET_API_ACCOUNT_ID", ""),
			SecretKey:    getEnv("FLEET_API_SECRET_KEY", ""),
			Timeout:      fleetTimeout,
			DistanceUnit: getEnv("FLEET_API_DISTANCE_UNIT", "km"),
		},
		Sync: SyncConfig{
			Interval: syncInterval,
			Enabled:  syncEnabled,
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			JSON:  logJSON,
		},
	}, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
