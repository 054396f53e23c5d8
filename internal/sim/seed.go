// Package sim provides the simulated household: the default device
// seed, occupancy bookkeeping, and the ticker that feeds snapshots to
// the agent.
package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/hearthd/hearth/internal/home"
)

// SeedDevices returns the default household: motion sensors in the
// bedroom and living room, a bedroom temperature sensor, three lights,
// and a bedroom air conditioner.
func SeedDevices(now time.Time) []home.Device {
	sensor := func(id, name, room, sensorType string, value float64, unit string) home.Device {
		return home.Device{
			ID: id, Name: name, Kind: home.KindSensor, Room: room, Status: home.StatusOn,
			Properties: map[string]any{
				"sensor_type":        sensorType,
				"value":              value,
				"unit":               unit,
				"detection_duration": 0,
			},
			LastUpdated: now, CreatedAt: now,
		}
	}
	light := func(id, name, room string, status home.Status, brightness int) home.Device {
		return home.Device{
			ID: id, Name: name, Kind: home.KindLight, Room: room, Status: status,
			Properties:  map[string]any{"brightness": brightness},
			LastUpdated: now, CreatedAt: now,
		}
	}

	return []home.Device{
		sensor("sensor_bedroom_motion", "bedroom motion sensor", home.RoomBedroom, home.SensorMotion, 0, "boolean"),
		sensor("sensor_living_motion", "living room motion sensor", home.RoomLiving, home.SensorMotion, 0, "boolean"),
		sensor("sensor_bedroom_temp", "bedroom temperature sensor", home.RoomBedroom, home.SensorTemperature, 25.5, "°C"),
		light("light_bedroom", "bedroom main light", home.RoomBedroom, home.StatusOn, 80),
		light("light_living", "living room main light", home.RoomLiving, home.StatusOn, 90),
		light("light_kitchen", "kitchen light", home.RoomKitchen, home.StatusOff, 100),
		{
			ID: "ac_bedroom", Name: "bedroom air conditioner", Kind: home.KindClimate,
			Room: home.RoomBedroom, Status: home.StatusOff,
			Properties:  map[string]any{"temperature": 26.0, "mode": "auto", "fan_speed": 3},
			LastUpdated: now, CreatedAt: now,
		},
	}
}

// EnsureSeed populates an empty registry with the default household.
// A registry that already has devices is left alone.
func EnsureSeed(ctx context.Context, reg *home.Registry) error {
	devices, err := reg.List(ctx)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	if len(devices) > 0 {
		return nil
	}

	for _, d := range SeedDevices(time.Now()) {
		if err := reg.Save(ctx, d); err != nil {
			return fmt.Errorf("seed %s: %w", d.ID, err)
		}
	}
	return nil
}
