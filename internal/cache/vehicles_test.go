package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rideline/telemetry-service/internal/normalize"
)

func float64Ptr(v float64) *float64 { return &v }

func newTestStore(now time.Time) *Store {
	s := NewStore()
	s.now = func() time.Time { return now }
	return s
}

func TestUpsertCreatesEntry(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := newTestStore(now)

	state := s.Upsert(normalize.TelemetryEvent{
		VehicleKey: "TRK-1",
		Timestamp:  now,
		Latitude:   float64Ptr(33.44),
		Longitude:  float64Ptr(-112.07),
		SpeedMph:   float64Ptr(45.0),
		Address:    "100 N Central Ave",
	})

	require.Equal(t, "TRK-1", state.ID)
	require.Equal(t, 33.44, *state.Lat)
	require.Equal(t, 45.0, state.SpeedMph)
	require.Equal(t, StatusMoving, state.Status)
	require.Equal(t, 1, s.Len())
}

func TestUpsertPreservesAbsentFields(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := newTestStore(now)

	s.Upsert(normalize.TelemetryEvent{
		VehicleKey: "TRK-1",
		Timestamp:  now.Add(-time.Minute),
		Latitude:   float64Ptr(33.44),
		Longitude:  float64Ptr(-112.07),
		Address:    "100 N Central Ave",
		DriverName: "Pat Q",
	})

	// Second event carries only speed; everything else must survive the merge
	state := s.Upsert(normalize.TelemetryEvent{
		VehicleKey: "TRK-1",
		Timestamp:  now,
		SpeedMph:   float64Ptr(0.0),
	})

	require.Equal(t, 33.44, *state.Lat)
	require.Equal(t, -112.07, *state.Lng)
	require.Equal(t, "100 N Central Ave", state.Address)
	require.Equal(t, "Pat Q", state.DriverName)
	require.Equal(t, 0.0, state.SpeedMph)
	require.Equal(t, StatusIdle, state.Status)
}

func TestDeriveStatusThresholds(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		age      time.Duration
		speed    float64
		expected Status
	}{
		{"fast and fresh", time.Minute, 45.0, StatusMoving},
		{"just above moving threshold", time.Minute, 2.1, StatusMoving},
		{"at moving threshold", time.Minute, 2.0, StatusIdle},
		{"stopped", time.Minute, 0.0, StatusIdle},
		{"stale overrides speed", 11 * time.Minute, 45.0, StatusOffline},
		{"exactly at offline window", 10 * time.Minute, 0.0, StatusIdle},
		{"past offline window", 10*time.Minute + time.Second, 0.0, StatusOffline},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestStore(now)
			s.Upsert(normalize.TelemetryEvent{
				VehicleKey: "TRK-1",
				Timestamp:  now.Add(-tc.age),
				SpeedMph:   float64Ptr(tc.speed),
			})

			state, ok := s.Get("TRK-1")
			require.True(t, ok)
			require.Equal(t, tc.expected, state.Status)
		})
	}
}

func TestReplayedOldTimestampDoesNotRegressFreshness(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := newTestStore(now)

	s.Upsert(normalize.TelemetryEvent{
		VehicleKey: "TRK-1",
		Timestamp:  now.Add(-time.Minute),
	})

	// Redelivered event stamped twenty minutes ago; the vehicle is still live
	// and must not flip to offline
	state := s.Upsert(normalize.TelemetryEvent{
		VehicleKey: "TRK-1",
		Timestamp:  now.Add(-20 * time.Minute),
	})

	require.Equal(t, now.Add(-time.Minute), state.LastUpdateAt)
	require.Equal(t, StatusIdle, state.Status)
}

func TestGetAllSortedAndRecomputed(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := newTestStore(now)

	s.Upsert(normalize.TelemetryEvent{VehicleKey: "TRK-2", Timestamp: now})
	s.Upsert(normalize.TelemetryEvent{VehicleKey: "TRK-1", Timestamp: now.Add(-20 * time.Minute)})

	states := s.GetAll()
	require.Len(t, states, 2)
	require.Equal(t, "TRK-1", states[0].ID)
	require.Equal(t, StatusOffline, states[0].Status)
	require.Equal(t, "TRK-2", states[1].ID)
	require.Equal(t, StatusIdle, states[1].Status)
}

func TestSetDisplayName(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	s := newTestStore(now)

	// No entry yet: a no-op, not a create
	s.SetDisplayName("TRK-1", "Van 12")
	require.Equal(t, 0, s.Len())

	s.Upsert(normalize.TelemetryEvent{VehicleKey: "TRK-1", Timestamp: now})
	s.SetDisplayName("TRK-1", "Van 12")

	state, ok := s.Get("TRK-1")
	require.True(t, ok)
	require.Equal(t, "Van 12", state.DisplayName)

	// Empty names never erase an existing one
	s.SetDisplayName("TRK-1", "")
	state, _ = s.Get("TRK-1")
	require.Equal(t, "Van 12", state.DisplayName)
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(time.Now())
	_, ok := s.Get("nope")
	require.False(t, ok)
}
