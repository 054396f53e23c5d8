package agent

import (
	"strings"
	"testing"
	"time"

	"github.com/hearthd/hearth/internal/home"
)

func TestDescribeFiveRoomScenario(t *testing.T) {
	snap := home.Snapshot{
		Occupancy: map[string]bool{
			home.RoomLiving:   false,
			home.RoomBedroom:  true,
			home.RoomKitchen:  false,
			home.RoomBathroom: false,
			home.RoomBalcony:  false,
		},
		Devices: []home.Device{
			{ID: "light_living", Name: "main light", Kind: home.KindLight, Room: home.RoomLiving, Status: home.StatusOn},
			{ID: "light_kitchen", Name: "light", Kind: home.KindLight, Room: home.RoomKitchen, Status: home.StatusOff},
		},
		Timestamp: time.Now(),
	}

	desc := DescribeSnapshot(snap)

	// All five rooms rendered, canonical order.
	for _, want := range []string{"living room empty", "bedroom occupied", "kitchen empty", "bathroom empty", "balcony empty"} {
		if !strings.Contains(desc, want) {
			t.Errorf("description missing %q: %s", want, desc)
		}
	}
	if !strings.Contains(desc, "living room main light on") {
		t.Errorf("device clause missing living-room light: %s", desc)
	}
	if !strings.Contains(desc, "kitchen light off") {
		t.Errorf("device clause missing kitchen light: %s", desc)
	}
	if strings.Index(desc, "living room empty") > strings.Index(desc, "bedroom occupied") {
		t.Errorf("rooms out of canonical order: %s", desc)
	}
}

func TestDescribeMotionDuration(t *testing.T) {
	snap := home.Snapshot{
		Occupancy: map[string]bool{home.RoomBedroom: true},
		Devices: []home.Device{
			{
				ID: "sensor_motion_bedroom", Kind: home.KindSensor, Room: home.RoomBedroom,
				Properties: map[string]any{"sensor_type": home.SensorMotion, "detection_duration": 600},
			},
		},
	}

	desc := DescribeSnapshot(snap)
	if !strings.Contains(desc, "bedroom occupied for 10 minutes") {
		t.Errorf("description = %q, want 10-minute clause", desc)
	}
}

func TestDescribeShortOccupancyHasNoDuration(t *testing.T) {
	snap := home.Snapshot{
		Occupancy: map[string]bool{home.RoomKitchen: true},
		Devices: []home.Device{
			{
				ID: "sensor_motion_kitchen", Kind: home.KindSensor, Room: home.RoomKitchen,
				Properties: map[string]any{"sensor_type": home.SensorMotion, "detection_duration": 45},
			},
		},
	}

	desc := DescribeSnapshot(snap)
	if desc != "kitchen occupied" {
		t.Errorf("description = %q, want %q (durations under a minute are dropped)", desc, "kitchen occupied")
	}
}

func TestDescribeClimate(t *testing.T) {
	snap := home.Snapshot{
		Occupancy: map[string]bool{home.RoomBedroom: true},
		Devices: []home.Device{
			{
				ID: "ac_bedroom", Name: "AC", Kind: home.KindClimate, Room: home.RoomBedroom,
				Status: home.StatusOn, Properties: map[string]any{"temperature": 24.0},
			},
			{
				ID: "ac_living", Name: "AC", Kind: home.KindClimate, Room: home.RoomLiving,
				Status: home.StatusOff,
			},
		},
	}

	desc := DescribeSnapshot(snap)
	if !strings.Contains(desc, "bedroom climate on, set to 24°C") {
		t.Errorf("description = %q, want bedroom climate clause", desc)
	}
	if strings.Contains(desc, "living room climate") {
		t.Errorf("off climate devices must not be reported: %s", desc)
	}
}
