package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/rideline/telemetry-service/internal/normalize"
)

// Status is a vehicle's derived liveness classification. It is a read-time
// projection of recency and speed, never stored as ground truth.
type Status string

const (
	// StatusMoving means a recent report with speed above the moving threshold
	StatusMoving Status = "moving"
	// StatusIdle means a recent report at or below the moving threshold
	StatusIdle Status = "idle"
	// StatusOffline means no report within the offline window
	StatusOffline Status = "offline"
)

const (
	// offlineAfter is how long without an update before a vehicle reads as offline
	offlineAfter = 10 * time.Minute
	// movingSpeedMph is the speed above which a vehicle reads as moving
	movingSpeedMph = 2.0
)

// VehicleState is the latest known state for one vehicle key. Entries are
// created on the first event and updated forever after; a vehicle that stops
// reporting keeps its last known position and reads as offline.
type VehicleState struct {
	ID             string    `json:"id"`
	DisplayName    string    `json:"display_name,omitempty"`
	DriverName     string    `json:"driver_name,omitempty"`
	Lat            *float64  `json:"lat,omitempty"`
	Lng            *float64  `json:"lng,omitempty"`
	SpeedMph       float64   `json:"speed_mph"`
	Address        string    `json:"address,omitempty"`
	IgnitionStatus string    `json:"ignition_status,omitempty"`
	LastUpdateAt   time.Time `json:"last_update_at"`
	Status         Status    `json:"status"`
}

// Store is the in-memory vehicle state cache. It is constructed at startup,
// injected into dependents, and lives for the process lifetime.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*VehicleState
	now     func() time.Time
}

// NewStore creates an empty vehicle state cache
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*VehicleState),
		now:     time.Now,
	}
}

// Upsert merges a telemetry event into the entry for its vehicle key and
// returns a snapshot with the derived status computed against the current
// time. Absent incoming values preserve prior ones; present values override.
func (s *Store) Upsert(event normalize.TelemetryEvent) VehicleState {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[event.VehicleKey]
	if !ok {
		entry = &VehicleState{ID: event.VehicleKey}
		s.entries[event.VehicleKey] = entry
	}

	if event.Latitude != nil {
		entry.Lat = event.Latitude
	}
	if event.Longitude != nil {
		entry.Lng = event.Longitude
	}
	if event.SpeedMph != nil {
		entry.SpeedMph = *event.SpeedMph
	}
	if event.Address != "" {
		entry.Address = event.Address
	}
	if event.IgnitionStatus != "" {
		entry.IgnitionStatus = event.IgnitionStatus
	}
	if event.DriverName != "" {
		entry.DriverName = event.DriverName
	}
	// Only ever advances: a redelivered event with an old provider timestamp
	// must not make a live vehicle read as offline
	if event.Timestamp.After(entry.LastUpdateAt) {
		entry.LastUpdateAt = event.Timestamp
	}

	return s.snapshot(entry)
}

// SetDisplayName attaches the durable vehicle name to a cache entry, if one
// exists for the key
func (s *Store) SetDisplayName(key, name string) {
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[key]; ok {
		entry.DisplayName = name
	}
}

// Get returns a snapshot of one vehicle's state
func (s *Store) Get(key string) (VehicleState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	if !ok {
		return VehicleState{}, false
	}
	return s.snapshot(entry), true
}

// GetAll returns snapshots of every entry, with each derived status
// recomputed against the current time. Staleness needs no background sweep:
// a vehicle silent for eleven minutes reads offline on the next call.
func (s *Store) GetAll() []VehicleState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	states := make([]VehicleState, 0, len(s.entries))
	for _, entry := range s.entries {
		states = append(states, s.snapshot(entry))
	}
	sort.Slice(states, func(i, j int) bool { return states[i].ID < states[j].ID })
	return states
}

// Len returns the number of tracked vehicles
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) snapshot(entry *VehicleState) VehicleState {
	copy := *entry
	copy.Status = deriveStatus(entry, s.now())
	return copy
}

func deriveStatus(entry *VehicleState, now time.Time) Status {
	if now.Sub(entry.LastUpdateAt) > offlineAfter {
		return StatusOffline
	}
	if entry.SpeedMph > movingSpeedMph {
		return StatusMoving
	}
	return StatusIdle
}
