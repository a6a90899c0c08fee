package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/rideline/telemetry-service/internal/db"
	"github.com/rideline/telemetry-service/internal/model"
)

// TripRepository defines the interface for trip data access
type TripRepository interface {
	GetByID(ctx context.Context, id string) (*model.Trip, error)
	// FindActiveByVehicle returns the vehicle's active trips ordered most
	// recently updated first. The dispatch layer should only ever leave one.
	FindActiveByVehicle(ctx context.Context, vehicleID string) ([]*model.Trip, error)
	// UpdateFields applies a partial update of specific columns. This is the
	// only write primitive the reconciler uses: a concurrent write by the
	// dispatch layer to other columns is never clobbered.
	UpdateFields(ctx context.Context, tripID string, fields map[string]interface{}) error
}

// tripRepository implements TripRepository
type tripRepository struct {
	db *gorm.DB
}

// NewTripRepository creates a new trip repository
func NewTripRepository(db *gorm.DB) TripRepository {
	return &tripRepository{db: db}
}

// GetByID gets a trip by ID
func (r *tripRepository) GetByID(ctx context.Context, id string) (*model.Trip, error) {
	var trip model.Trip
	err := r.db.WithContext(ctx).Where("uuid = ?", id).First(&trip).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &trip, nil
}

// FindActiveByVehicle finds active trips for a vehicle, most recent first
func (r *tripRepository) FindActiveByVehicle(ctx context.Context, vehicleID string) ([]*model.Trip, error) {
	var trips []*model.Trip
	err := r.db.WithContext(ctx).
		Where("vehicle_id = ?", vehicleID).
		Where("status IN (?)", model.ActiveTripStatuses).
		Order("updated_at DESC").
		Find(&trips).Error
	if err != nil {
		return nil, err
	}
	return trips, nil
}

// UpdateFields applies a partial per-field update to a trip
func (r *tripRepository) UpdateFields(ctx context.Context, tripID string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&model.Trip{}).
		Where("uuid = ?", tripID).
		Updates(fields).Error
}
