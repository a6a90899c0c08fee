package normalize

import (
	"time"
)

// EventType defines the canonical type of a telemetry event
type EventType string

const (
	// TripStartEvent marks the beginning of a provider-detected trip
	TripStartEvent EventType = "trip-start"
	// TripEndEvent marks the end of a provider-detected trip
	TripEndEvent EventType = "trip-end"
	// LocationUpdateEvent is a periodic position report
	LocationUpdateEvent EventType = "location-update"
	// SafetyEvent is a driver-behavior alert (harsh braking, speeding, ...)
	SafetyEvent EventType = "safety-event"
	// UnknownEvent is anything the provider sends that we cannot classify.
	// Unknown events still update vehicle state; they skip trip handling.
	UnknownEvent EventType = "unknown"
)

// TelemetryEvent is the canonical form of a single webhook item. It is
// constructed fresh per item and discarded after reconciliation; nil pointer
// fields mean the provider did not report a value.
type TelemetryEvent struct {
	VehicleKey string
	EventType  EventType
	Timestamp  time.Time

	Latitude  *float64
	Longitude *float64
	SpeedMph  *float64

	// OdometerMiles is the vehicle odometer normalized to whole miles
	OdometerMiles *float64
	// TripDistanceMiles is a provider-computed trip distance normalized to
	// miles with one decimal place
	TripDistanceMiles *float64

	IgnitionStatus string
	Address        string
	DriverKey      string
	DriverName     string

	// Raw keeps the original item for archival
	Raw map[string]interface{}
}

// HasCoordinates reports whether both latitude and longitude are present
func (e *TelemetryEvent) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}
