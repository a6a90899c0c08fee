package db

import (
	"time"

	"gorm.io/gorm"

	"github.com/rideline/telemetry-service/internal/metrics"
)

// RegisterMetricsHooks registers GORM hooks for database metrics
func RegisterMetricsHooks(db *gorm.DB) {
	db.Callback().Create().After("gorm:create").Register("metrics:create", func(db *gorm.DB) {
		metrics.GetCollector().RecordDatabaseQuery(metrics.DBQueryTypeInsert, db.Error == nil, getDuration(db))
	})

	db.Callback().Query().After("gorm:query").Register("metrics:query", func(db *gorm.DB) {
		metrics.GetCollector().RecordDatabaseQuery(metrics.DBQueryTypeSelect, db.Error == nil, getDuration(db))
	})

	db.Callback().Update().After("gorm:update").Register("metrics:update", func(db *gorm.DB) {
		metrics.GetCollector().RecordDatabaseQuery(metrics.DBQueryTypeUpdate, db.Error == nil, getDuration(db))
	})

	db.Callback().Delete().After("gorm:delete").Register("metrics:delete", func(db *gorm.DB) {
		metrics.GetCollector().RecordDatabaseQuery(metrics.DBQueryTypeDelete, db.Error == nil, getDuration(db))
	})
}

// getDuration returns the duration of the database operation
func getDuration(db *gorm.DB) time.Duration {
	if start, ok := db.InstanceGet("start_time"); ok {
		return time.Since(start.(time.Time))
	}
	return 0
}

// logDuration sets the start time of the database operation
func logDuration(db *gorm.DB) {
	db.InstanceSet("start_time", time.Now())
}

// RegisterDurationHooks registers callbacks that record operation start times
func RegisterDurationHooks(db *gorm.DB) {
	db.Callback().Create().Before("gorm:create").Register("duration:create", logDuration)
	db.Callback().Query().Before("gorm:query").Register("duration:query", logDuration)
	db.Callback().Update().Before("gorm:update").Register("duration:update", logDuration)
	db.Callback().Delete().Before("gorm:delete").Register("duration:delete", logDuration)
}
