package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hearthd/hearth/internal/home"
)

// Environment reads and advances the simulated household. Occupancy is
// derived from motion sensors: a room is occupied when any of its
// motion sensors reads 1.
type Environment struct {
	controller home.Controller
	logger     *slog.Logger
}

// NewEnvironment creates an environment over a device controller.
func NewEnvironment(controller home.Controller, logger *slog.Logger) *Environment {
	if logger == nil {
		logger = slog.Default()
	}
	return &Environment{
		controller: controller,
		logger:     logger.With("component", "sim"),
	}
}

// Snapshot samples the current home state. Every canonical room gets
// an occupancy entry even without a sensor, so descriptions always
// cover the whole home.
func (e *Environment) Snapshot(ctx context.Context) (home.Snapshot, error) {
	devices, err := e.controller.List(ctx)
	if err != nil {
		return home.Snapshot{}, fmt.Errorf("list devices: %w", err)
	}

	occupancy := make(map[string]bool, len(home.Rooms()))
	for _, room := range home.Rooms() {
		occupancy[room] = false
	}
	for _, d := range devices {
		if !isMotionSensor(d) {
			continue
		}
		if v, ok := sensorValue(d); ok && v == 1 {
			occupancy[d.Room] = true
		}
	}

	return home.Snapshot{
		Devices:   devices,
		Occupancy: occupancy,
		Timestamp: time.Now(),
	}, nil
}

// SetOccupancy marks a room occupied or empty by flipping its motion
// sensors. Going occupied resets the detection duration; going empty
// zeroes both.
func (e *Environment) SetOccupancy(ctx context.Context, room string, occupied bool) error {
	devices, err := e.controller.List(ctx)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}

	found := false
	for _, d := range devices {
		if d.Room != room || !isMotionSensor(d) {
			continue
		}
		found = true
		value := 0.0
		if occupied {
			value = 1.0
		}
		props := map[string]any{"value": value, "detection_duration": 0}
		if _, err := e.controller.Update(ctx, d.ID, nil, props); err != nil {
			return fmt.Errorf("update %s: %w", d.ID, err)
		}
	}
	if !found {
		return fmt.Errorf("room %s: %w", room, home.ErrDeviceNotFound)
	}
	return nil
}

// Advance moves simulated time forward: motion sensors that currently
// detect presence accumulate detection duration.
func (e *Environment) Advance(ctx context.Context, delta time.Duration) error {
	devices, err := e.controller.List(ctx)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}

	seconds := int(delta.Seconds())
	for _, d := range devices {
		if !isMotionSensor(d) {
			continue
		}
		if v, ok := sensorValue(d); !ok || v != 1 {
			continue
		}
		current := 0
		if dur, ok := intProp(d.Properties["detection_duration"]); ok {
			current = dur
		}
		props := map[string]any{"detection_duration": current + seconds}
		if _, err := e.controller.Update(ctx, d.ID, nil, props); err != nil {
			e.logger.Warn("advance failed", "device", d.ID, "err", err)
		}
	}
	return nil
}

func isMotionSensor(d home.Device) bool {
	if d.Kind != home.KindSensor {
		return false
	}
	st, _ := d.Properties["sensor_type"].(string)
	return st == home.SensorMotion
}

func sensorValue(d home.Device) (float64, bool) {
	switch v := d.Properties["value"].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func intProp(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
