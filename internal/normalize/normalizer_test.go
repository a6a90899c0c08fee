package normalize

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testNormalizer(unit DistanceUnit) *Normalizer {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewNormalizer(unit, log)
}

func TestNormalizeSingleObject(t *testing.T) {
	n := testNormalizer(UnitKilometers)
	received := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	raw := []byte(`{
		"serialNumber": "TRK-1001",
		"eventType": "gps",
		"timestamp": 1741608000,
		"latitude": 33.4484,
		"longitude": -112.074,
		"speed": 72.4,
		"address": "100 N Central Ave"
	}`)

	events := n.Normalize(raw, received)
	require.Len(t, events, 1)

	event := events[0]
	require.Equal(t, "TRK-1001", event.VehicleKey)
	require.Equal(t, LocationUpdateEvent, event.EventType)
	require.Equal(t, time.Unix(1741608000, 0).UTC(), event.Timestamp)
	require.NotNil(t, event.Latitude)
	require.Equal(t, 33.4484, *event.Latitude)
	require.NotNil(t, event.SpeedMph)
	require.Equal(t, 45.0, *event.SpeedMph)
	require.Equal(t, "100 N Central Ave", event.Address)
}

func TestNormalizeArrayAndWrappers(t *testing.T) {
	n := testNormalizer(UnitKilometers)
	received := time.Now()

	cases := map[string][]byte{
		"array":          []byte(`[{"vehicleId": "A"}, {"vehicleId": "B"}]`),
		"events wrapper": []byte(`{"events": [{"vehicleId": "A"}, {"vehicleId": "B"}]}`),
		"data wrapper":   []byte(`{"data": [{"vehicleId": "A"}, {"vehicleId": "B"}]}`),
	}

	for name, raw := range cases {
		events := n.Normalize(raw, received)
		require.Len(t, events, 2, name)
		require.Equal(t, "A", events[0].VehicleKey, name)
		require.Equal(t, "B", events[1].VehicleKey, name)
	}
}

func TestNormalizeDropsItemsWithoutVehicleKey(t *testing.T) {
	n := testNormalizer(UnitKilometers)

	raw := []byte(`[
		{"eventType": "gps", "latitude": 1.0},
		{"deviceId": "TRK-7"}
	]`)

	events := n.Normalize(raw, time.Now())
	require.Len(t, events, 1)
	require.Equal(t, "TRK-7", events[0].VehicleKey)
}

func TestNormalizeUnparseablePayload(t *testing.T) {
	n := testNormalizer(UnitKilometers)
	require.Empty(t, n.Normalize([]byte(`not json`), time.Now()))
	require.Empty(t, n.Normalize([]byte(`"just a string"`), time.Now()))
}

func TestEventTypeCanonicalization(t *testing.T) {
	n := testNormalizer(UnitKilometers)

	cases := map[string]EventType{
		"Trip Start":   TripStartEvent,
		"TRIP_START":   TripStartEvent,
		"tripStart":    TripStartEvent,
		"ignition-on":  TripStartEvent,
		"TRIP_END":     TripEndEvent,
		"IgnitionOff":  TripEndEvent,
		"gps":          LocationUpdateEvent,
		"POSITION":     LocationUpdateEvent,
		"HarshBraking": SafetyEvent,
		"overspeeding": SafetyEvent,
		"maintenance":  UnknownEvent,
	}

	for input, want := range cases {
		raw := []byte(`{"vehicleId": "X", "eventType": "` + input + `"}`)
		events := n.Normalize(raw, time.Now())
		require.Len(t, events, 1, input)
		require.Equal(t, want, events[0].EventType, input)
	}
}

func TestTimestampFormats(t *testing.T) {
	n := testNormalizer(UnitKilometers)
	received := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	want := time.Date(2025, 3, 10, 11, 30, 0, 0, time.UTC)

	cases := map[string]string{
		"epoch seconds": `1741606200`,
		"epoch millis":  `1741606200000`,
		"rfc3339":       `"2025-03-10T11:30:00Z"`,
		"plain layout":  `"2025-03-10 11:30:00"`,
	}

	for name, value := range cases {
		raw := []byte(`{"vehicleId": "X", "timestamp": ` + value + `}`)
		events := n.Normalize(raw, received)
		require.Len(t, events, 1, name)
		require.True(t, events[0].Timestamp.Equal(want), name)
	}

	// Missing and malformed timestamps fall back to the receipt time
	for name, value := range map[string]string{
		"absent":    `{"vehicleId": "X"}`,
		"malformed": `{"vehicleId": "X", "timestamp": "next tuesday"}`,
	} {
		events := n.Normalize([]byte(value), received)
		require.Len(t, events, 1, name)
		require.True(t, events[0].Timestamp.Equal(received), name)
	}
}

func TestOdometerKilometerConversion(t *testing.T) {
	n := testNormalizer(UnitKilometers)

	raw := []byte(`{"vehicleId": "X", "odometer": 160.9}`)
	events := n.Normalize(raw, time.Now())
	require.Len(t, events, 1)
	require.NotNil(t, events[0].OdometerMiles)
	require.Equal(t, 100.0, *events[0].OdometerMiles)
}

func TestOdometerStringValue(t *testing.T) {
	n := testNormalizer(UnitKilometers)

	raw := []byte(`{"vehicleId": "X", "odometer": "160.9"}`)
	events := n.Normalize(raw, time.Now())
	require.Len(t, events, 1)
	require.NotNil(t, events[0].OdometerMiles)
	require.Equal(t, 100.0, *events[0].OdometerMiles)
}

func TestOdometerMilesPassthrough(t *testing.T) {
	n := testNormalizer(UnitMiles)

	raw := []byte(`{"vehicleId": "X", "odometer": 1200.4, "tripDistance": 12.34}`)
	events := n.Normalize(raw, time.Now())
	require.Len(t, events, 1)
	require.Equal(t, 1200.0, *events[0].OdometerMiles)
	require.Equal(t, 12.3, *events[0].TripDistanceMiles)
}

func TestNonPositiveReadingsAbsent(t *testing.T) {
	n := testNormalizer(UnitKilometers)

	raw := []byte(`{"vehicleId": "X", "odometer": 0, "tripDistance": -5}`)
	events := n.Normalize(raw, time.Now())
	require.Len(t, events, 1)
	require.Nil(t, events[0].OdometerMiles)
	require.Nil(t, events[0].TripDistanceMiles)
}

func TestTripDistanceConversion(t *testing.T) {
	n := testNormalizer(UnitKilometers)

	raw := []byte(`{"vehicleId": "X", "tripDistance": 50}`)
	events := n.Normalize(raw, time.Now())
	require.Len(t, events, 1)
	require.NotNil(t, events[0].TripDistanceMiles)
	require.Equal(t, 31.1, *events[0].TripDistanceMiles)
}

func TestFieldAliases(t *testing.T) {
	n := testNormalizer(UnitKilometers)

	raw := []byte(`{
		"asset_id": "TRK-9",
		"event": "location",
		"lat": 40.71,
		"lon": -74.0,
		"speedKph": 10,
		"mileage": 100,
		"driver_id": "D-44",
		"driverName": "Pat Q",
		"ignition_status": "ON"
	}`)

	events := n.Normalize(raw, time.Now())
	require.Len(t, events, 1)

	event := events[0]
	require.Equal(t, "TRK-9", event.VehicleKey)
	require.Equal(t, LocationUpdateEvent, event.EventType)
	require.Equal(t, 40.71, *event.Latitude)
	require.Equal(t, -74.0, *event.Longitude)
	require.Equal(t, 6.2, *event.SpeedMph)
	require.Equal(t, "D-44", event.DriverKey)
	require.Equal(t, "Pat Q", event.DriverName)
	require.Equal(t, "ON", event.IgnitionStatus)
}

func TestNumericVehicleKey(t *testing.T) {
	n := testNormalizer(UnitKilometers)

	raw := []byte(`{"vehicleId": 123456}`)
	events := n.Normalize(raw, time.Now())
	require.Len(t, events, 1)
	require.Equal(t, "123456", events[0].VehicleKey)
}
