package mqtt

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hearthd/hearth/internal/config"
)

type fakeStats struct{}

func (fakeStats) Uptime() time.Duration        { return 90 * time.Second }
func (fakeStats) Version() string              { return "1.2.3" }
func (fakeStats) DefaultModel() string         { return "qwen-turbo" }
func (fakeStats) SuggestionsFired() int64      { return 4 }
func (fakeStats) ActionsExecuted() int64       { return 2 }
func (fakeStats) LastSuggestionTime() time.Time { return time.Time{} }
func (fakeStats) ContextLength() int           { return 6 }

func TestLoadOrCreateInstanceID(t *testing.T) {
	dir := t.TempDir()

	id, err := LoadOrCreateInstanceID(dir)
	if err != nil {
		t.Fatalf("LoadOrCreateInstanceID() error = %v", err)
	}
	if id == "" {
		t.Fatal("empty instance id")
	}

	data, err := os.ReadFile(filepath.Join(dir, "instance_id"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != id {
		t.Errorf("file content = %q, want %q", got, id)
	}

	// Stable across calls.
	second, err := LoadOrCreateInstanceID(dir)
	if err != nil {
		t.Fatalf("second call error = %v", err)
	}
	if second != id {
		t.Errorf("second = %q, want %q", second, id)
	}
}

func TestNewDeviceInfo(t *testing.T) {
	info := NewDeviceInfo("instance-123", "den-hearth", "1.2.3")
	if info.Name != "den-hearth" {
		t.Errorf("Name = %q", info.Name)
	}
	if len(info.Identifiers) != 1 || info.Identifiers[0] != "instance-123" {
		t.Errorf("Identifiers = %v", info.Identifiers)
	}
	if info.SWVersion != "1.2.3" {
		t.Errorf("SWVersion = %q", info.SWVersion)
	}
}

func TestPublisherTopicPaths(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker:          "mqtt://localhost:1883",
		DeviceName:      "den-hearth",
		DiscoveryPrefix: "homeassistant",
	}
	p := New(cfg, "test-id", fakeStats{}, nil)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"baseTopic", p.baseTopic(), "hearth/den-hearth"},
		{"availabilityTopic", p.availabilityTopic(), "hearth/den-hearth/availability"},
		{"stateTopic uptime", p.stateTopic("uptime"), "hearth/den-hearth/uptime/state"},
		{"discoveryTopic", p.discoveryTopic("sensor", "uptime"), "homeassistant/sensor/den-hearth/uptime/config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestSensorDefinitions(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker:          "mqtt://localhost:1883",
		DeviceName:      "den-hearth",
		DiscoveryPrefix: "homeassistant",
	}
	p := New(cfg, "instance-123", fakeStats{}, nil)

	defs := p.sensorDefinitions()
	if len(defs) != 7 {
		t.Fatalf("sensor count = %d, want 7", len(defs))
	}

	seen := map[string]bool{}
	for _, d := range defs {
		seen[d.entitySuffix] = true

		if d.config.UniqueID != "instance-123_"+d.entitySuffix {
			t.Errorf("%s: unique id = %q", d.entitySuffix, d.config.UniqueID)
		}
		if d.config.AvailabilityTopic != p.availabilityTopic() {
			t.Errorf("%s: availability topic = %q", d.entitySuffix, d.config.AvailabilityTopic)
		}
		// Every config must marshal cleanly; HA rejects bad payloads.
		if _, err := json.Marshal(d.config); err != nil {
			t.Errorf("%s: marshal: %v", d.entitySuffix, err)
		}
	}

	for _, want := range []string{"uptime", "version", "default_model", "last_suggestion", "suggestions_fired", "actions_executed", "context_length"} {
		if !seen[want] {
			t.Errorf("missing sensor %q", want)
		}
	}
}
