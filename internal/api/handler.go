package api

import (
	"encoding/json"
	"io"
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rideline/telemetry-service/internal/archive"
	"github.com/rideline/telemetry-service/internal/cache"
	"github.com/rideline/telemetry-service/internal/ingest"
	"github.com/rideline/telemetry-service/internal/metrics"
	"github.com/rideline/telemetry-service/internal/rostersync"
)

// maxWebhookBody caps how much of a webhook delivery we read
const maxWebhookBody = 4 << 20

// Handler exposes the telemetry service HTTP surface
type Handler struct {
	pipeline *ingest.Pipeline
	states   *cache.Store
	syncer   *rostersync.Syncer
	archiver archive.Client
	log      *logrus.Logger
}

// NewHandler creates the API handler
func NewHandler(pipeline *ingest.Pipeline, states *cache.Store, syncer *rostersync.Syncer, archiver archive.Client, log *logrus.Logger) *Handler {
	return &Handler{
		pipeline: pipeline,
		states:   states,
		syncer:   syncer,
		archiver: archiver,
		log:      log,
	}
}

// RegisterRoutes registers API routes
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	v1 := r.Group("/api/v1")
	v1.POST("/webhook/telemetry", h.ReceiveTelemetry)
	v1.GET("/vehicles", h.ListVehicles)
	v1.GET("/vehicles/locations", h.ListVehicleLocations)
	v1.GET("/vehicles/:id/events", h.ListVehicleEvents)
	v1.POST("/sync-vehicles", h.SyncVehicles)
	v1.POST("/sync-drivers", h.SyncDrivers)
	v1.GET("/sync-status", h.SyncStatus)

	r.GET("/health", h.Health)
	r.GET("/metrics", h.Metrics)
}

// ReceiveTelemetry accepts a webhook delivery from the fleet provider. The
// provider treats us as fire-and-forget: the response is 202 no matter what
// happens downstream.
func (h *Handler) ReceiveTelemetry(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.log.WithError(err).Warn("Failed to read webhook body")
		c.JSON(http.StatusAccepted, gin.H{"accepted": false})
		return
	}

	go h.pipeline.Ingest(body)

	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

// ListVehicles returns the cached vehicle snapshot. An empty cache triggers a
// roster sync so a cold process still answers with something.
func (h *Handler) ListVehicles(c *gin.Context) {
	if h.states.Len() == 0 {
		if _, err := h.syncer.SyncVehicles(c.Request.Context()); err != nil {
			h.log.WithError(err).Warn("Vehicle sync on empty cache failed")
		}
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": h.states.GetAll()})
}

// vehicleLocation is the thin projection for map views
type vehicleLocation struct {
	ID       string       `json:"id"`
	Lat      *float64     `json:"lat,omitempty"`
	Lng      *float64     `json:"lng,omitempty"`
	SpeedMph float64      `json:"speed_mph"`
	Status   cache.Status `json:"status"`
}

// ListVehicleLocations returns lat/lng/status for every tracked vehicle
func (h *Handler) ListVehicleLocations(c *gin.Context) {
	states := h.states.GetAll()
	locations := make([]vehicleLocation, 0, len(states))
	for _, s := range states {
		locations = append(locations, vehicleLocation{
			ID:       s.ID,
			Lat:      s.Lat,
			Lng:      s.Lng,
			SpeedMph: s.SpeedMph,
			Status:   s.Status,
		})
	}
	c.JSON(http.StatusOK, gin.H{"locations": locations})
}

// ListVehicleEvents returns the vehicle's recent archived telemetry events,
// newest first. An empty list when the archive is disabled.
func (h *Handler) ListVehicleEvents(c *gin.Context) {
	if h.archiver == nil {
		c.JSON(http.StatusOK, gin.H{"events": []json.RawMessage{}})
		return
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{
				"vehicle_key": c.Param("id"),
			},
		},
		"sort": []map[string]interface{}{
			{"timestamp": map[string]interface{}{"order": "desc"}},
		},
		"size": 100,
	}

	events, err := h.archiver.SearchEvents(c.Request.Context(), query)
	if err != nil {
		h.log.WithError(err).WithField("vehicle_key", c.Param("id")).
			Error("Failed to search archived events")
		WriteError(c, err)
		return
	}
	if events == nil {
		events = []json.RawMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// SyncVehicles triggers a vehicle roster sync. Unlike the webhook path this
// surfaces failures to the caller.
func (h *Handler) SyncVehicles(c *gin.Context) {
	result, err := h.syncer.SyncVehicles(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("Manual vehicle sync failed")
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SyncDrivers triggers a driver roster sync
func (h *Handler) SyncDrivers(c *gin.Context) {
	result, err := h.syncer.SyncDrivers(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("Manual driver sync failed")
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SyncStatus returns the last sync result for both rosters
func (h *Handler) SyncStatus(c *gin.Context) {
	vehicles, drivers := h.syncer.Status()
	c.JSON(http.StatusOK, gin.H{
		"vehicles": vehicles,
		"drivers":  drivers,
	})
}

// Metrics returns the collected service metrics
func (h *Handler) Metrics(c *gin.Context) {
	collector := metrics.GetCollector()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	collector.SetGauge(metrics.GaugeSystemMemory, float64(memStats.Alloc))

	metricData := collector.GetMetrics()
	metricData["runtime"] = map[string]interface{}{
		"goroutines": runtime.NumGoroutine(),
		"memory": map[string]interface{}{
			"alloc_bytes":       memStats.Alloc,
			"total_alloc_bytes": memStats.TotalAlloc,
			"sys_bytes":         memStats.Sys,
			"gc_cycles":         memStats.NumGC,
		},
	}

	c.JSON(http.StatusOK, metricData)
}

// Health returns a simple health status derived from metrics
func (h *Handler) Health(c *gin.Context) {
	collector := metrics.GetCollector()
	health := collector.GetHealthStatus()

	statusCode := http.StatusOK
	if status, ok := health["status"].(map[string]interface{}); ok {
		if healthy, ok := status["healthy"].(bool); ok && !healthy {
			statusCode = http.StatusServiceUnavailable
		}
	}

	c.JSON(statusCode, health)
}
