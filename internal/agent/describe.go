package agent

import (
	"fmt"
	"strings"

	"github.com/hearthd/hearth/internal/home"
)

// DescribeSnapshot renders a snapshot as the English state description
// fed to the model. The output is deterministic for a given snapshot:
// rooms appear in canonical order, devices in snapshot order.
func DescribeSnapshot(s home.Snapshot) string {
	var clauses []string

	for _, room := range s.OccupancyRooms() {
		name := home.RoomName(room)
		if !s.Occupancy[room] {
			clauses = append(clauses, name+" empty")
			continue
		}
		if dur := s.MotionDuration(room); dur > 60 {
			clauses = append(clauses, fmt.Sprintf("%s occupied for %d minutes", name, dur/60))
		} else {
			clauses = append(clauses, name+" occupied")
		}
	}

	var devices []string
	for _, d := range s.Devices {
		switch d.Kind {
		case home.KindLight:
			state := "off"
			if d.Status == home.StatusOn {
				state = "on"
			}
			devices = append(devices, fmt.Sprintf("%s %s %s", home.RoomName(d.Room), d.Name, state))
		case home.KindClimate:
			if d.Status != home.StatusOn {
				continue
			}
			temp := 26.0
			if t, ok := climateTemp(d); ok {
				temp = t
			}
			devices = append(devices, fmt.Sprintf("%s climate on, set to %g°C", home.RoomName(d.Room), temp))
		}
	}

	desc := strings.Join(clauses, "; ")
	if len(devices) > 0 {
		desc += ". Device status: " + strings.Join(devices, "; ")
	}
	return desc
}

func climateTemp(d home.Device) (float64, bool) {
	switch t := d.Properties["temperature"].(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}
