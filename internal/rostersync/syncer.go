package rostersync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rideline/telemetry-service/internal/model"
	"github.com/rideline/telemetry-service/internal/normalize"
	"github.com/rideline/telemetry-service/internal/repository"
)

// FleetClient is the slice of the fleet API client the syncer needs
type FleetClient interface {
	FetchVehicles(ctx context.Context) ([]map[string]interface{}, error)
	FetchDrivers(ctx context.Context) ([]map[string]interface{}, error)
}

// SyncResult summarizes one roster sync run. Per-item failures accumulate in
// Errors and never abort the remaining batch.
type SyncResult struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Synced     int       `json:"synced"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Errors     []string  `json:"errors"`
}

// Syncer resynchronizes the vehicle and driver roster from the fleet API
// into the durable store, on a fixed interval and on demand
type Syncer struct {
	client     FleetClient
	normalizer *normalize.Normalizer
	vehicles   repository.VehicleRepository
	drivers    repository.DriverRepository
	log        *logrus.Logger
	interval   time.Duration

	mu           sync.Mutex
	lastVehicles *SyncResult
	lastDrivers  *SyncResult
}

// NewSyncer creates a roster syncer
func NewSyncer(
	client FleetClient,
	normalizer *normalize.Normalizer,
	vehicles repository.VehicleRepository,
	drivers repository.DriverRepository,
	interval time.Duration,
	log *logrus.Logger,
) *Syncer {
	return &Syncer{
		client:     client,
		normalizer: normalizer,
		vehicles:   vehicles,
		drivers:    drivers,
		interval:   interval,
		log:        log,
	}
}

// Run executes both syncs on the configured interval until the context ends
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SyncVehicles(ctx); err != nil {
				s.log.WithError(err).Error("Scheduled vehicle sync failed")
			}
			if _, err := s.SyncDrivers(ctx); err != nil {
				s.log.WithError(err).Error("Scheduled driver sync failed")
			}
		}
	}
}

// Status returns the last results for both rosters
func (s *Syncer) Status() (vehicles, drivers *SyncResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastVehicles, s.lastDrivers
}

// SyncVehicles fetches the full vehicle roster and creates-or-updates the
// durable records, matching by VIN and falling back to license plate
func (s *Syncer) SyncVehicles(ctx context.Context) (*SyncResult, error) {
	result := newResult()

	items, err := s.client.FetchVehicles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch vehicle roster: %w", err)
	}

	for _, item := range items {
		created, err := s.syncVehicle(ctx, item)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Synced++
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	result.FinishedAt = time.Now()

	s.mu.Lock()
	s.lastVehicles = result
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"synced":  result.Synced,
		"created": result.Created,
		"updated": result.Updated,
		"errors":  len(result.Errors),
	}).Info("Vehicle roster sync finished")
	return result, nil
}

func (s *Syncer) syncVehicle(ctx context.Context, item map[string]interface{}) (bool, error) {
	rv := s.normalizer.NormalizeVehicle(item)
	if rv.VIN == "" && rv.TrackingSerial == "" {
		return false, errors.New("vehicle roster item has neither VIN nor tracking serial")
	}

	existing, err := s.matchVehicle(ctx, rv)
	if err != nil {
		return false, err
	}

	if existing == nil {
		vehicle := &model.Vehicle{
			Base:           model.Base{UUID: uuid.New().String()},
			TrackingSerial: rv.TrackingSerial,
			VIN:            rv.VIN,
			LicensePlate:   rv.LicensePlate,
			DisplayName:    rv.DisplayName,
			Make:           rv.Make,
			Model:          rv.Model,
			Year:           rv.Year,
			Active:         true,
		}
		if err := s.vehicles.Create(ctx, vehicle); err != nil {
			return false, fmt.Errorf("failed to create vehicle %s: %w", rv.VIN, err)
		}
		return true, nil
	}

	existing.TrackingSerial = rv.TrackingSerial
	if rv.LicensePlate != "" {
		existing.LicensePlate = rv.LicensePlate
	}
	if rv.DisplayName != "" {
		existing.DisplayName = rv.DisplayName
	}
	if rv.Make != "" {
		existing.Make = rv.Make
	}
	if rv.Model != "" {
		existing.Model = rv.Model
	}
	if rv.Year != 0 {
		existing.Year = rv.Year
	}
	if _, err := s.vehicles.Update(ctx, existing); err != nil {
		return false, fmt.Errorf("failed to update vehicle %s: %w", existing.UUID, err)
	}
	return false, nil
}

// matchVehicle looks up an existing record by the stable identifier first,
// then the secondary key
func (s *Syncer) matchVehicle(ctx context.Context, rv normalize.RosterVehicle) (*model.Vehicle, error) {
	if rv.VIN != "" {
		vehicle, err := s.vehicles.FindByVIN(ctx, rv.VIN)
		if err == nil {
			return vehicle, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to match vehicle by VIN %s: %w", rv.VIN, err)
		}
	}
	if rv.LicensePlate != "" {
		vehicle, err := s.vehicles.FindByLicensePlate(ctx, rv.LicensePlate)
		if err == nil {
			return vehicle, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to match vehicle by plate %s: %w", rv.LicensePlate, err)
		}
	}
	return nil, nil
}

// SyncDrivers fetches the full driver roster and creates-or-updates the
// durable records, matching by external ID and falling back to email
func (s *Syncer) SyncDrivers(ctx context.Context) (*SyncResult, error) {
	result := newResult()

	items, err := s.client.FetchDrivers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch driver roster: %w", err)
	}

	for _, item := range items {
		created, err := s.syncDriver(ctx, item)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Synced++
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	result.FinishedAt = time.Now()

	s.mu.Lock()
	s.lastDrivers = result
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"synced":  result.Synced,
		"created": result.Created,
		"updated": result.Updated,
		"errors":  len(result.Errors),
	}).Info("Driver roster sync finished")
	return result, nil
}

func (s *Syncer) syncDriver(ctx context.Context, item map[string]interface{}) (bool, error) {
	rd := s.normalizer.NormalizeDriver(item)
	if rd.ExternalID == "" && rd.Email == "" {
		return false, errors.New("driver roster item has neither external ID nor email")
	}

	existing, err := s.matchDriver(ctx, rd)
	if err != nil {
		return false, err
	}

	if existing == nil {
		driver := &model.Driver{
			Base:          model.Base{UUID: uuid.New().String()},
			ExternalID:    rd.ExternalID,
			Email:         rd.Email,
			FirstName:     rd.FirstName,
			LastName:      rd.LastName,
			Phone:         rd.Phone,
			LicenseNumber: rd.LicenseNumber,
			Active:        true,
		}
		if err := s.drivers.Create(ctx, driver); err != nil {
			return false, fmt.Errorf("failed to create driver %s: %w", rd.ExternalID, err)
		}
		return true, nil
	}

	existing.ExternalID = rd.ExternalID
	if rd.Email != "" {
		existing.Email = rd.Email
	}
	if rd.FirstName != "" {
		existing.FirstName = rd.FirstName
	}
	if rd.LastName != "" {
		existing.LastName = rd.LastName
	}
	if rd.Phone != "" {
		existing.Phone = rd.Phone
	}
	if rd.LicenseNumber != "" {
		existing.LicenseNumber = rd.LicenseNumber
	}
	if _, err := s.drivers.Update(ctx, existing); err != nil {
		return false, fmt.Errorf("failed to update driver %s: %w", existing.UUID, err)
	}
	return false, nil
}

func (s *Syncer) matchDriver(ctx context.Context, rd normalize.RosterDriver) (*model.Driver, error) {
	if rd.ExternalID != "" {
		driver, err := s.drivers.FindByExternalID(ctx, rd.ExternalID)
		if err == nil {
			return driver, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to match driver by external ID %s: %w", rd.ExternalID, err)
		}
	}
	if rd.Email != "" {
		driver, err := s.drivers.FindByEmail(ctx, rd.Email)
		if err == nil {
			return driver, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to match driver by email %s: %w", rd.Email, err)
		}
	}
	return nil, nil
}

func newResult() *SyncResult {
	return &SyncResult{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
		Errors:    []string{},
	}
}
