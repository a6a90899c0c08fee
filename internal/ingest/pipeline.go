package ingest

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rideline/telemetry-service/internal/archive"
	"github.com/rideline/telemetry-service/internal/broadcast"
	"github.com/rideline/telemetry-service/internal/cache"
	"github.com/rideline/telemetry-service/internal/metrics"
	"github.com/rideline/telemetry-service/internal/normalize"
	"github.com/rideline/telemetry-service/internal/reconcile"
)

// lockShards bounds the per-vehicle-key lock table
const lockShards = 64

// keyedMutex serializes work per vehicle key while letting distinct keys
// proceed concurrently. Keys hash onto a fixed set of shards.
type keyedMutex struct {
	shards [lockShards]sync.Mutex
}

func (k *keyedMutex) lock(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	m := &k.shards[h.Sum32()%lockShards]
	m.Lock()
	return m
}

// Pipeline wires the webhook path: normalize, cache upsert, archive,
// reconcile, broadcast. One event's failure never blocks the next; the
// webhook caller always gets an acknowledgment.
type Pipeline struct {
	normalizer  *normalize.Normalizer
	states      *cache.Store
	reconciler  *reconcile.Reconciler
	archiver    archive.Client
	broadcaster *broadcast.Dispatcher
	log         *logrus.Logger
	locks       keyedMutex
	timeout     time.Duration
}

// NewPipeline creates the ingest pipeline
func NewPipeline(
	normalizer *normalize.Normalizer,
	states *cache.Store,
	reconciler *reconcile.Reconciler,
	archiver archive.Client,
	broadcaster *broadcast.Dispatcher,
	log *logrus.Logger,
) *Pipeline {
	return &Pipeline{
		normalizer:  normalizer,
		states:      states,
		reconciler:  reconciler,
		archiver:    archiver,
		broadcaster: broadcaster,
		log:         log,
		timeout:     10 * time.Second,
	}
}

// Ingest processes one webhook delivery. Events are processed to completion
// in order; per-vehicle-key locking preserves the merge and
// first-writer-wins invariants against concurrent deliveries.
func (p *Pipeline) Ingest(raw []byte) {
	collector := metrics.GetCollector()
	events := p.normalizer.Normalize(raw, time.Now())
	if len(events) == 0 {
		collector.RecordIngest("", true)
		return
	}

	for _, event := range events {
		collector.RecordIngest(string(event.EventType), false)
		p.processOne(event)
	}
	collector.SetTrackedVehicles(p.states.Len())
}

func (p *Pipeline) processOne(event normalize.TelemetryEvent) {
	mu := p.locks.lock(event.VehicleKey)
	defer mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	state := p.states.Upsert(event)

	if p.archiver != nil {
		if err := p.archiver.IndexEvent(ctx, uuid.New().String(), event); err != nil {
			p.log.WithError(err).WithField("vehicle_key", event.VehicleKey).
				Warn("Failed to archive telemetry event")
		}
	}

	start := time.Now()
	outcome, err := p.reconciler.Reconcile(ctx, event)
	collector := metrics.GetCollector()
	switch {
	case err != nil:
		// Reconciliation failures are logged and swallowed; location
		// tracking keeps working without the durable store.
		collector.RecordReconciliation(false, true, time.Since(start))
		p.log.WithError(err).WithFields(logrus.Fields{
			"vehicle_key": event.VehicleKey,
			"event_type":  event.EventType,
		}).Error("Trip reconciliation failed")
	case outcome == nil || outcome.Trip == nil:
		collector.RecordReconciliation(true, false, time.Since(start))
	default:
		collector.RecordReconciliation(false, false, time.Since(start))
	}

	if outcome != nil && outcome.Vehicle != nil {
		p.states.SetDisplayName(event.VehicleKey, outcome.Vehicle.DisplayName)
		state, _ = p.states.Get(event.VehicleKey)
	}

	p.broadcaster.PublishVehicleUpdate(state)
	if outcome != nil && outcome.Trip != nil && len(outcome.Fields) > 0 && err == nil {
		p.broadcaster.PublishTripStatusChanged(outcome.Trip)
	}
}
