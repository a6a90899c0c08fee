package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rideline/telemetry-service/internal/cache"
	"github.com/rideline/telemetry-service/internal/metrics"
	"github.com/rideline/telemetry-service/internal/model"
)

// Event names published to subscribers
const (
	EventVehicleUpdated    = "vehicle.updated"
	EventTripStatusChanged = "trip.status_changed"
	EventTripAssigned      = "trip.assigned"
	EventTripCancelled     = "trip.cancelled"
)

// Sink receives named events with JSON payloads. Delivery is at-most-once;
// sinks must not block longer than the publish timeout.
type Sink interface {
	Publish(ctx context.Context, name string, payload []byte) error
	Close(ctx context.Context) error
}

// event is an internal queue entry
type event struct {
	name    string
	payload interface{}
}

// Dispatcher decouples producers from sinks: the reconciler and ingest
// pipeline enqueue domain events and a single goroutine fans them out to
// every registered sink. There is no retry and no durable queue; subscribers
// re-derive state from the cache and store on reconnect.
type Dispatcher struct {
	sinks   []Sink
	queue   chan event
	log     *logrus.Logger
	timeout time.Duration
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher creates a dispatcher over the given sinks
func NewDispatcher(log *logrus.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		sinks:   sinks,
		queue:   make(chan event, 256),
		log:     log,
		timeout: 5 * time.Second,
	}
}

// Start launches the fan-out loop
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for ev := range d.queue {
			d.fanOut(ev)
		}
	}()
}

// Stop drains the queue and closes every sink. Publishes arriving after Stop
// are dropped.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
	for _, sink := range d.sinks {
		if err := sink.Close(ctx); err != nil {
			d.log.WithError(err).Warn("Failed to close broadcast sink")
		}
	}
}

// PublishVehicleUpdate publishes a vehicle state delta
func (d *Dispatcher) PublishVehicleUpdate(state cache.VehicleState) {
	d.enqueue(EventVehicleUpdated, state)
}

// PublishTripStatusChanged publishes a trip record delta
func (d *Dispatcher) PublishTripStatusChanged(trip *model.Trip) {
	d.enqueue(EventTripStatusChanged, trip)
}

// PublishTripAssigned notifies a driver of a newly assigned trip
func (d *Dispatcher) PublishTripAssigned(driverKey string, trip *model.Trip) {
	d.enqueue(EventTripAssigned, map[string]interface{}{
		"driver_key": driverKey,
		"trip":       trip,
	})
}

// PublishTripCancelled notifies subscribers of a cancelled trip
func (d *Dispatcher) PublishTripCancelled(tripID, driverKey string) {
	payload := map[string]interface{}{"trip_id": tripID}
	if driverKey != "" {
		payload["driver_key"] = driverKey
	}
	d.enqueue(EventTripCancelled, payload)
}

// enqueue is non-blocking; when the queue is full the event is dropped,
// which at-most-once delivery permits
func (d *Dispatcher) enqueue(name string, payload interface{}) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- event{name: name, payload: payload}:
	default:
		metrics.GetCollector().RecordBroadcast(name, false)
		d.log.WithField("event", name).Warn("Broadcast queue full, dropping event")
	}
}

func (d *Dispatcher) fanOut(ev event) {
	collector := metrics.GetCollector()

	payload, err := json.Marshal(ev.payload)
	if err != nil {
		collector.RecordBroadcast(ev.name, false)
		d.log.WithError(err).WithField("event", ev.name).Error("Failed to marshal broadcast payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	for _, sink := range d.sinks {
		if err := sink.Publish(ctx, ev.name, payload); err != nil {
			collector.RecordBroadcast(ev.name, false)
			d.log.WithError(err).WithField("event", ev.name).Warn("Broadcast sink publish failed")
			continue
		}
		collector.RecordBroadcast(ev.name, true)
	}
}
