package model

import (
	"time"
)

// Base model fields shared by all models
type Base struct {
	UUID      string    `json:"uuid" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TripStatus defines the lifecycle status of a trip. The dispatch layer owns
// transitions; this service only ever reads it.
type TripStatus string

const (
	// ScheduledTripStatus represents a trip that is booked but not dispatched
	ScheduledTripStatus TripStatus = "SCHEDULED"
	// EnRouteTripStatus represents a trip whose driver is heading to pickup
	EnRouteTripStatus TripStatus = "EN_ROUTE"
	// ArrivedTripStatus represents a trip whose driver is at the pickup point
	ArrivedTripStatus TripStatus = "ARRIVED"
	// PickedUpTripStatus represents a trip with the passenger on board
	PickedUpTripStatus TripStatus = "PICKED_UP"
	// CompletedTripStatus represents a finished trip
	CompletedTripStatus TripStatus = "COMPLETED"
	// CancelledTripStatus represents a cancelled trip
	CancelledTripStatus TripStatus = "CANCELLED"
)

// ActiveTripStatuses are the statuses eligible for telemetry-driven field
// population: between dispatch and completion.
var ActiveTripStatuses = []TripStatus{
	EnRouteTripStatus,
	ArrivedTripStatus,
	PickedUpTripStatus,
}

// IsActive reports whether a trip in this status accepts telemetry updates
func (s TripStatus) IsActive() bool {
	for _, active := range ActiveTripStatuses {
		if s == active {
			return true
		}
	}
	return false
}

// Vehicle represents a fleet vehicle known to the durable store
type Vehicle struct {
	Base
	TrackingSerial string `json:"tracking_serial" gorm:"column:tracking_serial;uniqueIndex"`
	VIN            string `json:"vin" gorm:"column:vin;index"`
	LicensePlate   string `json:"license_plate" gorm:"column:license_plate;index"`
	DisplayName    string `json:"display_name"`
	Make           string `json:"make"`
	Model          string `json:"model"`
	Year           int    `json:"year"`
	Active         bool   `json:"active"`
}

// Driver represents a driver known to the durable store
type Driver struct {
	Base
	ExternalID    string `json:"external_id" gorm:"column:external_id;uniqueIndex"`
	Email         string `json:"email" gorm:"column:email;index"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Phone         string `json:"phone"`
	LicenseNumber string `json:"license_number"`
	Active        bool   `json:"active"`
}

// Trip represents a passenger trip. Telemetry only fills the odometer,
// waypoint, mileage, and dropoff-time fields; everything else belongs to the
// dispatch layer.
type Trip struct {
	Base
	VehicleID string     `json:"vehicle_id" gorm:"column:vehicle_id;type:uuid;index"`
	Vehicle   *Vehicle   `json:"-" gorm:"foreignKey:VehicleID"`
	DriverID  *string    `json:"driver_id" gorm:"column:driver_id;type:uuid"`
	Driver    *Driver    `json:"-" gorm:"foreignKey:DriverID"`
	Status    TripStatus `json:"status" gorm:"column:status;index"`

	ScheduledAt *time.Time `json:"scheduled_at"`

	PickupOdometer  *float64 `json:"pickup_odometer"`
	DropoffOdometer *float64 `json:"dropoff_odometer"`
	TripMiles       *float64 `json:"trip_miles"`

	TripStartLat *float64 `json:"trip_start_lat"`
	TripStartLng *float64 `json:"trip_start_lng"`
	PickupLat    *float64 `json:"pickup_lat"`
	PickupLng    *float64 `json:"pickup_lng"`
	DropoffLat   *float64 `json:"dropoff_lat"`
	DropoffLng   *float64 `json:"dropoff_lng"`
	CompletedLat *float64 `json:"completed_lat"`
	CompletedLng *float64 `json:"completed_lng"`

	ActualDropoffTime *time.Time `json:"actual_dropoff_time"`
}
