package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// milesPerKm converts provider kilometers to miles
const milesPerKm = 0.621371

// DistanceUnit is the unit the provider reports distances in
type DistanceUnit string

const (
	// UnitKilometers means raw odometer/distance values arrive in km
	UnitKilometers DistanceUnit = "km"
	// UnitMiles means raw values arrive in miles and need no conversion
	UnitMiles DistanceUnit = "mi"
)

// Field alias tables. The provider has shipped several payload generations
// with different field names; extraction tries each alias in order and stops
// at the first present, non-empty value.
var (
	vehicleKeyAliases = []string{
		"serialNumber", "serial_number", "vehicleId", "vehicle_id",
		"assetId", "asset_id", "deviceId", "device_id", "vehicleNumber", "imei",
	}
	eventTypeAliases = []string{
		"eventType", "event_type", "event", "type", "messageType",
	}
	timestampAliases = []string{
		"timestamp", "eventTime", "event_time", "ts", "time",
		"gpsTimestamp", "fixTime", "recordedAt",
	}
	latitudeAliases  = []string{"latitude", "lat"}
	longitudeAliases = []string{"longitude", "lng", "lon", "long"}
	speedAliases     = []string{"speed", "speedKph", "speed_kph", "gpsSpeed", "velocity"}
	odometerAliases  = []string{
		"odometer", "odometerReading", "odometer_reading", "odo", "mileage",
	}
	tripDistanceAliases = []string{
		"tripDistance", "trip_distance", "distanceTravelled", "distance",
	}
	driverKeyAliases  = []string{"driverId", "driver_id", "driverNumber"}
	driverNameAliases = []string{"driverName", "driver_name"}
	addressAliases    = []string{"address", "locationDescription", "location_description"}
	ignitionAliases   = []string{"ignitionStatus", "ignition_status", "ignition"}
)

// eventTypeNames maps canonicalized provider type strings to event types.
// Keys are upper-cased with separators stripped, so "Trip Start", "TRIP_START"
// and "tripStart" all hit the same entry.
var eventTypeNames = map[string]EventType{
	"TRIPSTART":         TripStartEvent,
	"TRIPBEGIN":         TripStartEvent,
	"IGNITIONON":        TripStartEvent,
	"TRIPEND":           TripEndEvent,
	"TRIPSTOP":          TripEndEvent,
	"IGNITIONOFF":       TripEndEvent,
	"GPS":               LocationUpdateEvent,
	"LOCATION":          LocationUpdateEvent,
	"LOCATIONUPDATE":    LocationUpdateEvent,
	"POSITION":          LocationUpdateEvent,
	"TRACKING":          LocationUpdateEvent,
	"SAFETYEVENT":       SafetyEvent,
	"HARSHBRAKING":      SafetyEvent,
	"HARSHACCELERATION": SafetyEvent,
	"OVERSPEEDING":      SafetyEvent,
	"SPEEDING":          SafetyEvent,
}

// string timestamp layouts tried in order after numeric epoch parsing
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006 15:04:05",
}

// Normalizer maps arbitrary webhook payload shapes into canonical telemetry
// events
type Normalizer struct {
	unit DistanceUnit
	log  *logrus.Logger
}

// NewNormalizer creates a new normalizer for the configured provider unit
func NewNormalizer(unit DistanceUnit, log *logrus.Logger) *Normalizer {
	if unit != UnitMiles {
		unit = UnitKilometers
	}
	return &Normalizer{unit: unit, log: log}
}

// Normalize flattens a webhook delivery into a sequence of telemetry events.
// A delivery may be a single object, an array, or a wrapper with an "events"
// or "data" field. Items without a recognizable vehicle key are dropped.
func (n *Normalizer) Normalize(raw []byte, receivedAt time.Time) []TelemetryEvent {
	var payload interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		n.log.WithError(err).Warn("Unparseable webhook payload")
		return nil
	}

	items := flatten(payload)
	events := make([]TelemetryEvent, 0, len(items))
	for _, item := range items {
		event, ok := n.normalizeItem(item, receivedAt)
		if !ok {
			n.log.WithField("item_keys", mapKeys(item)).Debug("Dropping item without vehicle key")
			continue
		}
		events = append(events, event)
	}
	return events
}

// flatten resolves the delivery shape into a list of raw items
func flatten(payload interface{}) []map[string]interface{} {
	switch v := payload.(type) {
	case []interface{}:
		items := make([]map[string]interface{}, 0, len(v))
		for _, entry := range v {
			if item, ok := entry.(map[string]interface{}); ok {
				items = append(items, item)
			}
		}
		return items
	case map[string]interface{}:
		for _, wrapper := range []string{"events", "data"} {
			if inner, ok := v[wrapper].([]interface{}); ok {
				return flatten(inner)
			}
		}
		return []map[string]interface{}{v}
	default:
		return nil
	}
}

func (n *Normalizer) normalizeItem(item map[string]interface{}, receivedAt time.Time) (TelemetryEvent, bool) {
	key, ok := stringField(item, vehicleKeyAliases)
	if !ok {
		return TelemetryEvent{}, false
	}

	event := TelemetryEvent{
		VehicleKey: key,
		EventType:  UnknownEvent,
		Timestamp:  receivedAt,
		Raw:        item,
	}

	if typeStr, ok := stringField(item, eventTypeAliases); ok {
		if mapped, ok := eventTypeNames[canonicalTypeKey(typeStr)]; ok {
			event.EventType = mapped
		}
	}

	if ts, ok := timeField(item, timestampAliases); ok {
		event.Timestamp = ts
	}

	if lat, ok := floatField(item, latitudeAliases); ok {
		event.Latitude = &lat
	}
	if lng, ok := floatField(item, longitudeAliases); ok {
		event.Longitude = &lng
	}
	if speed, ok := floatField(item, speedAliases); ok && speed >= 0 {
		mph := round1(n.toMiles(speed))
		event.SpeedMph = &mph
	}
	if odo, ok := floatField(item, odometerAliases); ok && odo > 0 {
		miles := math.Round(n.toMiles(odo))
		event.OdometerMiles = &miles
	}
	if dist, ok := floatField(item, tripDistanceAliases); ok && dist > 0 {
		miles := round1(n.toMiles(dist))
		event.TripDistanceMiles = &miles
	}

	event.DriverKey, _ = stringField(item, driverKeyAliases)
	event.DriverName, _ = stringField(item, driverNameAliases)
	event.Address, _ = stringField(item, addressAliases)
	event.IgnitionStatus, _ = stringField(item, ignitionAliases)

	return event, true
}

// toMiles converts a raw provider distance value to miles
func (n *Normalizer) toMiles(v float64) float64 {
	if n.unit == UnitMiles {
		return v
	}
	return v * milesPerKm
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// canonicalTypeKey upper-cases a provider type string and strips separators
// so alias matching is case- and separator-insensitive
func canonicalTypeKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stringField extracts the first present, non-empty string value among the
// aliases. Numeric values are accepted and formatted, since some payload
// generations send identifiers as numbers.
func stringField(item map[string]interface{}, aliases []string) (string, bool) {
	for _, alias := range aliases {
		raw, present := item[alias]
		if !present {
			continue
		}
		switch v := raw.(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed, true
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		case json.Number:
			return v.String(), true
		}
	}
	return "", false
}

// floatField extracts the first parseable numeric value among the aliases.
// Values that fail to parse are treated as absent, not as errors.
func floatField(item map[string]interface{}, aliases []string) (float64, bool) {
	for _, alias := range aliases {
		raw, present := item[alias]
		if !present {
			continue
		}
		if v, ok := asFloat(raw); ok {
			return v, true
		}
	}
	return 0, false
}

func asFloat(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// timeField extracts the first parseable timestamp among the aliases. Numeric
// values are epoch seconds or milliseconds, disambiguated by magnitude;
// strings are tried against the known layouts.
func timeField(item map[string]interface{}, aliases []string) (time.Time, bool) {
	for _, alias := range aliases {
		raw, present := item[alias]
		if !present {
			continue
		}
		if ts, ok := asTime(raw); ok {
			return ts, true
		}
	}
	return time.Time{}, false
}

func asTime(raw interface{}) (time.Time, bool) {
	if epoch, ok := asFloat(raw); ok {
		if epoch <= 0 {
			return time.Time{}, false
		}
		// Values below 1e12 are epoch seconds; above, milliseconds.
		if epoch < 1e12 {
			return time.Unix(int64(epoch), 0).UTC(), true
		}
		return time.UnixMilli(int64(epoch)).UTC(), true
	}
	if s, ok := raw.(string); ok {
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
				return ts.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func mapKeys(item map[string]interface{}) []string {
	keys := make([]string, 0, len(item))
	for k := range item {
		keys = append(keys, k)
	}
	return keys
}
