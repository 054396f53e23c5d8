// Package home models the simulated household: devices, rooms,
// occupancy snapshots, and the controller used to change device state.
package home

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrDeviceNotFound is returned when a device id is unknown to the
// controller.
var ErrDeviceNotFound = errors.New("device not found")

// Kind identifies a device category. Each kind carries its own
// property schema (see capabilityFor).
type Kind string

const (
	KindLight   Kind = "light"
	KindClimate Kind = "climate"
	KindSensor  Kind = "sensor"
	KindGeneric Kind = "generic"
)

// Status is a device's coarse power state.
type Status string

const (
	StatusOn      Status = "on"
	StatusOff     Status = "off"
	StatusUnknown Status = "unknown"
)

// ParseStatus validates a status string from the wire.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusOn, StatusOff:
		return Status(s), nil
	default:
		return StatusUnknown, fmt.Errorf("invalid status %q (expected on or off)", s)
	}
}

// Sensor subtype property values, stored under the "sensor_type" key.
const (
	SensorMotion      = "motion"
	SensorTemperature = "temperature"
)

// Canonical room ids. The describer renders rooms in this order so the
// state description is stable across runs.
const (
	RoomLiving   = "living_room"
	RoomBedroom  = "bedroom"
	RoomKitchen  = "kitchen"
	RoomBathroom = "bathroom"
	RoomBalcony  = "balcony"
)

// Rooms returns the canonical room ids in display order.
func Rooms() []string {
	return []string{RoomLiving, RoomBedroom, RoomKitchen, RoomBathroom, RoomBalcony}
}

// RoomName returns the human-readable name for a room id. Unknown ids
// are returned verbatim so new rooms degrade gracefully.
func RoomName(room string) string {
	switch room {
	case RoomLiving:
		return "living room"
	case RoomBedroom:
		return "bedroom"
	case RoomKitchen:
		return "kitchen"
	case RoomBathroom:
		return "bathroom"
	case RoomBalcony:
		return "balcony"
	default:
		return room
	}
}

// Device is a single controllable or observable unit. Properties hold
// the kind-specific state (brightness, temperature, sensor readings);
// ApplyProperties enforces each kind's schema.
type Device struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Kind        Kind           `json:"type"`
	Room        string         `json:"room"`
	Status      Status         `json:"status"`
	Properties  map[string]any `json:"properties"`
	LastUpdated time.Time      `json:"last_updated"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Clone returns a deep copy so callers can hand devices across
// goroutines without sharing the properties map.
func (d Device) Clone() Device {
	props := make(map[string]any, len(d.Properties))
	for k, v := range d.Properties {
		props[k] = v
	}
	d.Properties = props
	return d
}

// ApplyProperties validates props against the device kind's schema and
// merges them into the device. On error no key is applied.
func (d *Device) ApplyProperties(props map[string]any) error {
	if len(props) == 0 {
		return nil
	}

	cap := capabilityFor(d.Kind)
	for key, value := range props {
		if err := cap.validate(key, value); err != nil {
			return fmt.Errorf("device %s: %w", d.ID, err)
		}
	}

	if d.Properties == nil {
		d.Properties = make(map[string]any, len(props))
	}
	for key, value := range props {
		d.Properties[key] = value
	}
	return nil
}

// capability is the per-kind property schema. Validation is applied
// uniformly by the dispatcher regardless of the concrete kind.
type capability interface {
	validate(key string, value any) error
}

func capabilityFor(k Kind) capability {
	switch k {
	case KindLight:
		return lightCapability{}
	case KindClimate:
		return climateCapability{}
	case KindSensor:
		return sensorCapability{}
	default:
		return genericCapability{}
	}
}

type lightCapability struct{}

func (lightCapability) validate(key string, value any) error {
	switch key {
	case "brightness":
		b, ok := toInt(value)
		if !ok || b < 0 || b > 100 {
			return fmt.Errorf("brightness must be an integer 0-100, got %v", value)
		}
	case "color":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("color must be a string, got %T", value)
		}
	default:
		return fmt.Errorf("unsupported light property %q", key)
	}
	return nil
}

type climateCapability struct{}

func (climateCapability) validate(key string, value any) error {
	switch key {
	case "temperature":
		t, ok := toFloat(value)
		if !ok || t < 16 || t > 30 {
			return fmt.Errorf("temperature must be 16-30, got %v", value)
		}
	case "mode":
		m, ok := value.(string)
		if !ok {
			return fmt.Errorf("mode must be a string, got %T", value)
		}
		switch m {
		case "auto", "cool", "heat", "fan":
		default:
			return fmt.Errorf("unsupported climate mode %q", m)
		}
	case "fan_speed":
		s, ok := toInt(value)
		if !ok || s < 1 || s > 5 {
			return fmt.Errorf("fan_speed must be an integer 1-5, got %v", value)
		}
	default:
		return fmt.Errorf("unsupported climate property %q", key)
	}
	return nil
}

type sensorCapability struct{}

func (sensorCapability) validate(key string, value any) error {
	switch key {
	case "sensor_type", "unit":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%s must be a string, got %T", key, value)
		}
	case "value":
		if _, ok := toFloat(value); !ok {
			return fmt.Errorf("value must be numeric, got %v", value)
		}
	case "detection_duration":
		d, ok := toInt(value)
		if !ok || d < 0 {
			return fmt.Errorf("detection_duration must be a non-negative integer, got %v", value)
		}
	default:
		return fmt.Errorf("unsupported sensor property %q", key)
	}
	return nil
}

// genericCapability accepts any key. Generic devices declare no schema,
// so properties pass through opaquely.
type genericCapability struct{}

func (genericCapability) validate(string, any) error { return nil }

// toInt accepts the numeric types JSON decoding produces.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// Snapshot is a point-in-time view of the home: all devices plus
// per-room occupancy.
type Snapshot struct {
	Devices   []Device        `json:"devices"`
	Occupancy map[string]bool `json:"room_occupancy"`
	Timestamp time.Time       `json:"timestamp"`
}

// OccupancyRooms returns the snapshot's room ids in deterministic
// order: canonical rooms first, then any extras sorted.
func (s Snapshot) OccupancyRooms() []string {
	var rooms []string
	seen := make(map[string]bool, len(s.Occupancy))
	for _, r := range Rooms() {
		if _, ok := s.Occupancy[r]; ok {
			rooms = append(rooms, r)
			seen[r] = true
		}
	}

	var extra []string
	for r := range s.Occupancy {
		if !seen[r] {
			extra = append(extra, r)
		}
	}
	sort.Strings(extra)
	return append(rooms, extra...)
}

// MotionDuration returns the detection duration in seconds of a motion
// sensor in the given room, or zero when none is present.
func (s Snapshot) MotionDuration(room string) int {
	for _, d := range s.Devices {
		if d.Kind != KindSensor || d.Room != room {
			continue
		}
		if st, _ := d.Properties["sensor_type"].(string); st != SensorMotion {
			continue
		}
		if dur, ok := toInt(d.Properties["detection_duration"]); ok {
			return dur
		}
	}
	return 0
}
