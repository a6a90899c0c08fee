package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/rideline/telemetry-service/internal/cache"
	"github.com/rideline/telemetry-service/internal/model"
)

type capturedEvent struct {
	name    string
	payload []byte
}

type fakeSink struct {
	mu     sync.Mutex
	events []capturedEvent
	err    error
	closed bool
}

func (s *fakeSink) Publish(ctx context.Context, name string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, capturedEvent{name: name, payload: payload})
	return nil
}

func (s *fakeSink) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) captured() []capturedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]capturedEvent, len(s.events))
	copy(out, s.events)
	return out
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestDispatcherDeliversToAllSinks(t *testing.T) {
	first := &fakeSink{}
	second := &fakeSink{}

	d := NewDispatcher(testLogger(), first, second)
	d.Start()

	lat := 33.44
	d.PublishVehicleUpdate(cache.VehicleState{
		ID:     "TRK-1",
		Lat:    &lat,
		Status: cache.StatusMoving,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Stop(ctx)

	for _, sink := range []*fakeSink{first, second} {
		events := sink.captured()
		require.Len(t, events, 1)
		require.Equal(t, EventVehicleUpdated, events[0].name)

		var state cache.VehicleState
		require.NoError(t, json.Unmarshal(events[0].payload, &state))
		require.Equal(t, "TRK-1", state.ID)
		require.Equal(t, cache.StatusMoving, state.Status)
		require.True(t, sink.closed)
	}
}

func TestDispatcherEventNames(t *testing.T) {
	sink := &fakeSink{}
	d := NewDispatcher(testLogger(), sink)
	d.Start()

	trip := &model.Trip{Base: model.Base{UUID: "trip-1"}, Status: model.PickedUpTripStatus}
	d.PublishTripStatusChanged(trip)
	d.PublishTripAssigned("D-1", trip)
	d.PublishTripCancelled("trip-1", "D-1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Stop(ctx)

	events := sink.captured()
	require.Len(t, events, 3)
	require.Equal(t, EventTripStatusChanged, events[0].name)
	require.Equal(t, EventTripAssigned, events[1].name)
	require.Equal(t, EventTripCancelled, events[2].name)

	var cancelled map[string]interface{}
	require.NoError(t, json.Unmarshal(events[2].payload, &cancelled))
	require.Equal(t, "trip-1", cancelled["trip_id"])
	require.Equal(t, "D-1", cancelled["driver_key"])
}

func TestFailingSinkDoesNotBlockOthers(t *testing.T) {
	broken := &fakeSink{err: errors.New("connection refused")}
	healthy := &fakeSink{}

	d := NewDispatcher(testLogger(), broken, healthy)
	d.Start()

	d.PublishVehicleUpdate(cache.VehicleState{ID: "TRK-1"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d.Stop(ctx)

	require.Len(t, healthy.captured(), 1)
}

func TestStopIsIdempotent(t *testing.T) {
	d := NewDispatcher(testLogger(), &fakeSink{})
	d.Start()

	ctx := context.Background()
	d.Stop(ctx)
	d.Stop(ctx)
}
