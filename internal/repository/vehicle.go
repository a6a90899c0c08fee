package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/rideline/telemetry-service/internal/db"
	"github.com/rideline/telemetry-service/internal/model"
)

// VehicleRepository defines the interface for vehicle data access
type VehicleRepository interface {
	FindByTrackingSerial(ctx context.Context, serial string) (*model.Vehicle, error)
	FindByVIN(ctx context.Context, vin string) (*model.Vehicle, error)
	FindByLicensePlate(ctx context.Context, plate string) (*model.Vehicle, error)
	ListActive(ctx context.Context) ([]*model.Vehicle, error)
	Create(ctx context.Context, vehicle *model.Vehicle) error
	Update(ctx context.Context, vehicle *model.Vehicle) (*model.Vehicle, error)
}

// vehicleRepository implements VehicleRepository
type vehicleRepository struct {
	db *gorm.DB
}

// NewVehicleRepository creates a new vehicle repository
func NewVehicleRepository(db *gorm.DB) VehicleRepository {
	return &vehicleRepository{db: db}
}

// FindByTrackingSerial finds a vehicle by its provider tracking serial
func (r *vehicleRepository) FindByTrackingSerial(ctx context.Context, serial string) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	err := r.db.WithContext(ctx).Where("LOWER(tracking_serial) = LOWER(?)", serial).First(&vehicle).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &vehicle, nil
}

// FindByVIN finds a vehicle by VIN
func (r *vehicleRepository) FindByVIN(ctx context.Context, vin string) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	err := r.db.WithContext(ctx).Where("LOWER(vin) = LOWER(?)", vin).First(&vehicle).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &vehicle, nil
}

// FindByLicensePlate finds a vehicle by license plate
func (r *vehicleRepository) FindByLicensePlate(ctx context.Context, plate string) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	err := r.db.WithContext(ctx).Where("LOWER(license_plate) = LOWER(?)", plate).First(&vehicle).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &vehicle, nil
}

// ListActive lists all active vehicles
func (r *vehicleRepository) ListActive(ctx context.Context) ([]*model.Vehicle, error) {
	var vehicles []*model.Vehicle
	err := r.db.WithContext(ctx).Where("active = ?", true).Order("display_name").Find(&vehicles).Error
	if err != nil {
		return nil, err
	}
	return vehicles, nil
}

// Create creates a new vehicle
func (r *vehicleRepository) Create(ctx context.Context, vehicle *model.Vehicle) error {
	// Normalize VIN casing to prevent duplicates
	vehicle.VIN = strings.ToUpper(vehicle.VIN)
	return r.db.WithContext(ctx).Create(vehicle).Error
}

// Update updates a vehicle
func (r *vehicleRepository) Update(ctx context.Context, vehicle *model.Vehicle) (*model.Vehicle, error) {
	if err := r.db.WithContext(ctx).Updates(vehicle).Error; err != nil {
		return nil, err
	}
	return vehicle, nil
}
