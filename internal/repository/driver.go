package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/rideline/telemetry-service/internal/db"
	"github.com/rideline/telemetry-service/internal/model"
)

// DriverRepository defines the interface for driver data access
type DriverRepository interface {
	FindByExternalID(ctx context.Context, externalID string) (*model.Driver, error)
	FindByEmail(ctx context.Context, email string) (*model.Driver, error)
	Create(ctx context.Context, driver *model.Driver) error
	Update(ctx context.Context, driver *model.Driver) (*model.Driver, error)
}

// driverRepository implements DriverRepository
type driverRepository struct {
	db *gorm.DB
}

// NewDriverRepository creates a new driver repository
func NewDriverRepository(db *gorm.DB) DriverRepository {
	return &driverRepository{db: db}
}

// FindByExternalID finds a driver by the provider's driver identifier
func (r *driverRepository) FindByExternalID(ctx context.Context, externalID string) (*model.Driver, error) {
	var driver model.Driver
	err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&driver).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &driver, nil
}

// FindByEmail finds a driver by email
func (r *driverRepository) FindByEmail(ctx context.Context, email string) (*model.Driver, error) {
	var driver model.Driver
	err := r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", email).First(&driver).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &driver, nil
}

// Create creates a new driver
func (r *driverRepository) Create(ctx context.Context, driver *model.Driver) error {
	return r.db.WithContext(ctx).Create(driver).Error
}

// Update updates a driver
func (r *driverRepository) Update(ctx context.Context, driver *model.Driver) (*model.Driver, error) {
	if err := r.db.WithContext(ctx).Updates(driver).Error; err != nil {
		return nil, err
	}
	return driver, nil
}
