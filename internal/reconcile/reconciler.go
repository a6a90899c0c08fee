package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/rideline/telemetry-service/internal/model"
	"github.com/rideline/telemetry-service/internal/normalize"
	"github.com/rideline/telemetry-service/internal/repository"
)

// TripStore is the slice of the trip repository the reconciler needs
type TripStore interface {
	FindActiveByVehicle(ctx context.Context, vehicleID string) ([]*model.Trip, error)
	UpdateFields(ctx context.Context, tripID string, fields map[string]interface{}) error
}

// VehicleStore resolves a provider vehicle key to a durable vehicle record
type VehicleStore interface {
	FindByTrackingSerial(ctx context.Context, serial string) (*model.Vehicle, error)
}

// Outcome describes what a reconciliation did. Trip carries the applied
// field values so callers can broadcast the delta without re-reading.
type Outcome struct {
	Vehicle *model.Vehicle
	Trip    *model.Trip
	Fields  map[string]interface{}
}

// Reconciler drives telemetry into the active trip's blank fields. It never
// changes trip status, which belongs to the dispatch layer, and it never
// overwrites a populated field, with the single exception of
// dropoff_odometer, which always takes the reading closest to drop-off.
type Reconciler struct {
	trips    TripStore
	vehicles VehicleStore
	log      *logrus.Logger
}

// NewReconciler creates a reconciler
func NewReconciler(trips TripStore, vehicles VehicleStore, log *logrus.Logger) *Reconciler {
	return &Reconciler{
		trips:    trips,
		vehicles: vehicles,
		log:      log,
	}
}

// tripPhase selects which field-population rules apply to an event
type tripPhase int

const (
	nonePhase tripPhase = iota
	pickupPhase
	dropoffPhase
)

// eventPhaseOverrides force a phase regardless of trip status. Safety and
// unknown events never touch trip fields; they only update the vehicle cache.
var eventPhaseOverrides = map[normalize.EventType]tripPhase{
	normalize.TripStartEvent: pickupPhase,
	normalize.TripEndEvent:   dropoffPhase,
	normalize.SafetyEvent:    nonePhase,
	normalize.UnknownEvent:   nonePhase,
}

// statusPhases apply to location updates, keyed by the trip's current status
var statusPhases = map[model.TripStatus]tripPhase{
	model.EnRouteTripStatus:  pickupPhase,
	model.ArrivedTripStatus:  nonePhase,
	model.PickedUpTripStatus: dropoffPhase,
}

func phaseFor(status model.TripStatus, eventType normalize.EventType) tripPhase {
	if phase, ok := eventPhaseOverrides[eventType]; ok {
		return phase
	}
	return statusPhases[status]
}

// Reconcile resolves the event's vehicle and active trip and applies the
// phase rules. A vehicle without a durable record or without an open trip is
// a no-op, not an error.
func (r *Reconciler) Reconcile(ctx context.Context, event normalize.TelemetryEvent) (*Outcome, error) {
	vehicle, err := r.vehicles.FindByTrackingSerial(ctx, event.VehicleKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve vehicle %q: %w", event.VehicleKey, err)
	}

	trips, err := r.trips.FindActiveByVehicle(ctx, vehicle.UUID)
	if err != nil {
		return nil, fmt.Errorf("failed to find active trip for vehicle %s: %w", vehicle.UUID, err)
	}
	if len(trips) == 0 {
		return &Outcome{Vehicle: vehicle}, nil
	}
	if len(trips) > 1 {
		// Dispatch-layer contract says at most one; take the most recently
		// updated and flag the inconsistency.
		r.log.WithFields(logrus.Fields{
			"vehicle_id":   vehicle.UUID,
			"active_trips": len(trips),
		}).Warn("Multiple active trips for vehicle, reconciling the most recent")
	}
	trip := trips[0]

	fields := r.applyPhase(trip, event)
	outcome := &Outcome{Vehicle: vehicle, Trip: trip, Fields: fields}
	if len(fields) == 0 {
		return outcome, nil
	}

	if err := r.trips.UpdateFields(ctx, trip.UUID, fields); err != nil {
		return outcome, fmt.Errorf("failed to update trip %s: %w", trip.UUID, err)
	}
	return outcome, nil
}

// applyPhase builds the partial update for the event, mutating the in-memory
// trip to match so callers see the applied state
func (r *Reconciler) applyPhase(trip *model.Trip, event normalize.TelemetryEvent) map[string]interface{} {
	fields := make(map[string]interface{})

	switch phaseFor(trip.Status, event.EventType) {
	case pickupPhase:
		r.applyPickup(trip, event, fields)
	case dropoffPhase:
		r.applyDropoff(trip, event, fields)
	}

	return fields
}

// applyPickup fills pickup-side fields, first-writer-wins on every one
func (r *Reconciler) applyPickup(trip *model.Trip, event normalize.TelemetryEvent, fields map[string]interface{}) {
	if trip.PickupOdometer == nil && event.OdometerMiles != nil {
		trip.PickupOdometer = event.OdometerMiles
		fields["pickup_odometer"] = *event.OdometerMiles
	}
	if event.HasCoordinates() {
		if trip.TripStartLat == nil && trip.TripStartLng == nil {
			trip.TripStartLat = event.Latitude
			trip.TripStartLng = event.Longitude
			fields["trip_start_lat"] = *event.Latitude
			fields["trip_start_lng"] = *event.Longitude
		}
		if trip.PickupLat == nil && trip.PickupLng == nil {
			trip.PickupLat = event.Latitude
			trip.PickupLng = event.Longitude
			fields["pickup_lat"] = *event.Latitude
			fields["pickup_lng"] = *event.Longitude
		}
	}
}

// applyDropoff fills dropoff-side fields. The dropoff odometer is the one
// field later readings may refresh, so the recorded value is the reading
// closest to the actual drop-off. Odometers are monotonic, so only a higher
// reading refreshes it; a redelivered older event never regresses the value.
func (r *Reconciler) applyDropoff(trip *model.Trip, event normalize.TelemetryEvent, fields map[string]interface{}) {
	if event.OdometerMiles != nil && (trip.DropoffOdometer == nil || *event.OdometerMiles > *trip.DropoffOdometer) {
		trip.DropoffOdometer = event.OdometerMiles
		fields["dropoff_odometer"] = *event.OdometerMiles

		if trip.PickupOdometer != nil && *event.OdometerMiles > *trip.PickupOdometer {
			miles := round1(*event.OdometerMiles - *trip.PickupOdometer)
			trip.TripMiles = &miles
			fields["trip_miles"] = miles
		}
	}
	// The provider's own trip distance is only a fallback for trips that
	// never captured an odometer delta
	if trip.TripMiles == nil && event.TripDistanceMiles != nil {
		trip.TripMiles = event.TripDistanceMiles
		fields["trip_miles"] = *event.TripDistanceMiles
	}

	if event.HasCoordinates() {
		if trip.DropoffLat == nil && trip.DropoffLng == nil {
			trip.DropoffLat = event.Latitude
			trip.DropoffLng = event.Longitude
			fields["dropoff_lat"] = *event.Latitude
			fields["dropoff_lng"] = *event.Longitude
		}
		if trip.CompletedLat == nil && trip.CompletedLng == nil {
			trip.CompletedLat = event.Latitude
			trip.CompletedLng = event.Longitude
			fields["completed_lat"] = *event.Latitude
			fields["completed_lng"] = *event.Longitude
		}
	}

	if trip.ActualDropoffTime == nil && !event.Timestamp.IsZero() {
		ts := event.Timestamp
		trip.ActualDropoffTime = &ts
		fields["actual_dropoff_time"] = ts
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
