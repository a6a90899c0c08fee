package metrics

import (
	"sync"
	"time"
)

// Collector provides a centralized way to collect and retrieve metrics
type Collector struct {
	mutex               sync.RWMutex
	counters            map[string]int64
	gauges              map[string]float64
	requestLatencies    map[string][]time.Duration
	requestCounts       map[string]int64
	ingestCounts        map[string]int64
	reconcileLatencies  []time.Duration
	fleetAPICounts      map[string]int64
	fleetAPILatencies   map[string][]time.Duration
	broadcastCounts     map[string]int64
	databaseQueryCounts map[string]int64
	databaseLatencies   map[string][]time.Duration
	errorCounts         map[string]int64
	startTime           time.Time
	maxSamples          int
}

// Counter metrics
const (
	CounterHTTPRequests        = "http_requests_total"
	CounterHTTPRequestsSuccess = "http_requests_success_total"
	CounterHTTPRequestsError   = "http_requests_error_total"
	CounterEventsReceived      = "telemetry_events_received_total"
	CounterEventsDropped       = "telemetry_events_dropped_total"
	CounterReconciliations     = "trip_reconciliations_total"
	CounterReconcileNoTrip     = "trip_reconciliations_no_active_trip_total"
	CounterReconcileErrors     = "trip_reconciliation_errors_total"
	CounterBroadcasts          = "broadcasts_total"
	CounterBroadcastsDropped   = "broadcasts_dropped_total"
	CounterFleetAPICalls       = "fleet_api_calls_total"
	CounterFleetAPIErrors      = "fleet_api_errors_total"
	CounterDBQueriesTotal      = "db_queries_total"
	CounterDBQueriesError      = "db_queries_error_total"
	CounterErrorsTotal         = "errors_total"
)

// Gauge metrics
const (
	GaugeTrackedVehicles = "tracked_vehicles"
	GaugeSystemMemory    = "system_memory_bytes"
)

// Fleet API operations
const (
	FleetAPIOperationAuth     = "auth"
	FleetAPIOperationVehicles = "vehicles"
	FleetAPIOperationDrivers  = "drivers"
)

// Database query types
const (
	DBQueryTypeSelect = "select"
	DBQueryTypeInsert = "insert"
	DBQueryTypeUpdate = "update"
	DBQueryTypeDelete = "delete"
)

// Error types
const (
	ErrorTypeHTTP       = "http"
	ErrorTypeValidation = "validation"
	ErrorTypeDatabase   = "database"
	ErrorTypeBroadcast  = "broadcast"
	ErrorTypeFleetAPI   = "fleet_api"
	ErrorTypeReconcile  = "reconcile"
	ErrorTypeInternal   = "internal"
)

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		counters:            make(map[string]int64),
		gauges:              make(map[string]float64),
		requestLatencies:    make(map[string][]time.Duration),
		requestCounts:       make(map[string]int64),
		ingestCounts:        make(map[string]int64),
		fleetAPICounts:      make(map[string]int64),
		fleetAPILatencies:   make(map[string][]time.Duration),
		broadcastCounts:     make(map[string]int64),
		databaseQueryCounts: make(map[string]int64),
		databaseLatencies:   make(map[string][]time.Duration),
		errorCounts:         make(map[string]int64),
		startTime:           time.Now(),
		maxSamples:          1000,
	}
}

// IncrementCounter increments a counter by the given value
func (c *Collector) IncrementCounter(name string, value int64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.counters[name] += value
}

// SetGauge sets a gauge to the given value
func (c *Collector) SetGauge(name string, value float64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.gauges[name] = value
}

// RecordHTTPRequest records metrics for an HTTP request
func (c *Collector) RecordHTTPRequest(path string, statusCode int, latency time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.counters[CounterHTTPRequests]++
	c.requestCounts[path]++
	c.requestLatencies[path] = appendSample(c.requestLatencies[path], latency, c.maxSamples)

	if statusCode >= 200 && statusCode < 400 {
		c.counters[CounterHTTPRequestsSuccess]++
	} else {
		c.counters[CounterHTTPRequestsError]++
		c.errorCounts[ErrorTypeHTTP]++
	}
}

// RecordIngest records a normalized (or dropped) webhook item
func (c *Collector) RecordIngest(eventType string, dropped bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.counters[CounterEventsReceived]++
	if dropped {
		c.counters[CounterEventsDropped]++
		return
	}
	c.ingestCounts[eventType]++
}

// RecordReconciliation records a reconciliation attempt
func (c *Collector) RecordReconciliation(noActiveTrip bool, failed bool, latency time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.counters[CounterReconciliations]++
	if noActiveTrip {
		c.counters[CounterReconcileNoTrip]++
	}
	if failed {
		c.counters[CounterReconcileErrors]++
		c.errorCounts[ErrorTypeReconcile]++
	}
	c.reconcileLatencies = appendSample(c.reconcileLatencies, latency, c.maxSamples)
}

// RecordBroadcast records a broadcast publish attempt
func (c *Collector) RecordBroadcast(event string, success bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.counters[CounterBroadcasts]++
	c.broadcastCounts[event]++
	if !success {
		c.counters[CounterBroadcastsDropped]++
		c.errorCounts[ErrorTypeBroadcast]++
	}
}

// RecordFleetAPICall records metrics for an outbound fleet API call
func (c *Collector) RecordFleetAPICall(operation string, success bool, latency time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.counters[CounterFleetAPICalls]++
	c.fleetAPICounts[operation]++
	c.fleetAPILatencies[operation] = appendSample(c.fleetAPILatencies[operation], latency, c.maxSamples)

	if !success {
		c.counters[CounterFleetAPIErrors]++
		c.errorCounts[ErrorTypeFleetAPI]++
	}
}

// RecordDatabaseQuery records metrics for a database query
func (c *Collector) RecordDatabaseQuery(queryType string, success bool, latency time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.databaseQueryCounts[queryType]++
	c.counters[CounterDBQueriesTotal]++

	if !success {
		c.counters[CounterDBQueriesError]++
		c.errorCounts[ErrorTypeDatabase]++
	}

	c.databaseLatencies[queryType] = appendSample(c.databaseLatencies[queryType], latency, c.maxSamples)
}

// RecordError records an error of the given type
func (c *Collector) RecordError(errorType string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.errorCounts[errorType]++
	c.counters[CounterErrorsTotal]++
}

// SetTrackedVehicles sets the number of vehicles in the state cache
func (c *Collector) SetTrackedVehicles(count int) {
	c.SetGauge(GaugeTrackedVehicles, float64(count))
}

// GetMetrics returns all collected metrics in a structured format
func (c *Collector) GetMetrics() map[string]interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return map[string]interface{}{
		"uptime_seconds":         time.Since(c.startTime).Seconds(),
		"counters":               c.counters,
		"gauges":                 c.gauges,
		"request_counts":         c.requestCounts,
		"request_latencies_ms":   averageLatencies(c.requestLatencies),
		"ingest_counts":          c.ingestCounts,
		"reconcile_latency_ms":   averageLatency(c.reconcileLatencies),
		"fleet_api_counts":       c.fleetAPICounts,
		"fleet_api_latencies_ms": averageLatencies(c.fleetAPILatencies),
		"broadcast_counts":       c.broadcastCounts,
		"database_query_counts":  c.databaseQueryCounts,
		"database_latencies_ms":  averageLatencies(c.databaseLatencies),
		"error_counts":           c.errorCounts,
	}
}

// GetHealthStatus returns a simple health status based on metrics
func (c *Collector) GetHealthStatus() map[string]interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	healthy := true

	errorRate := 0.0
	totalRequests := c.counters[CounterHTTPRequests]
	if totalRequests > 0 {
		errorRate = float64(c.counters[CounterHTTPRequestsError]) / float64(totalRequests)
	}

	// 5% HTTP error rate is considered unhealthy
	const errorRateThreshold = 0.05
	if errorRate > errorRateThreshold {
		healthy = false
	}

	return map[string]interface{}{
		"status": map[string]interface{}{
			"healthy":        healthy,
			"uptime_seconds": time.Since(c.startTime).Seconds(),
		},
		"metrics": map[string]interface{}{
			"total_requests":   totalRequests,
			"error_rate":       errorRate,
			"events_received":  c.counters[CounterEventsReceived],
			"events_dropped":   c.counters[CounterEventsDropped],
			"reconciliations":  c.counters[CounterReconciliations],
			"reconcile_errors": c.counters[CounterReconcileErrors],
			"fleet_api_errors": c.counters[CounterFleetAPIErrors],
		},
	}
}

func appendSample(samples []time.Duration, value time.Duration, max int) []time.Duration {
	if samples == nil {
		samples = make([]time.Duration, 0, max)
	}
	if len(samples) >= max {
		samples = samples[1:]
	}
	return append(samples, value)
}

func averageLatencies(byKey map[string][]time.Duration) map[string]float64 {
	averages := make(map[string]float64, len(byKey))
	for key, samples := range byKey {
		if avg := averageLatency(samples); avg > 0 {
			averages[key] = avg
		}
	}
	return averages
}

func averageLatency(samples []time.Duration) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, s := range samples {
		sum += s
	}
	return float64(sum.Milliseconds()) / float64(len(samples))
}

// Global metrics collector instance
var globalCollector *Collector
var once sync.Once

// GetCollector returns the global metrics collector instance
func GetCollector() *Collector {
	once.Do(func() {
		globalCollector = NewCollector()
	})
	return globalCollector
}
