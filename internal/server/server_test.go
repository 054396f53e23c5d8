package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	_ "modernc.org/sqlite"

	"github.com/hearthd/hearth/internal/agent"
	"github.com/hearthd/hearth/internal/config"
	"github.com/hearthd/hearth/internal/directive"
	"github.com/hearthd/hearth/internal/events"
	"github.com/hearthd/hearth/internal/home"
	"github.com/hearthd/hearth/internal/llm"
	"github.com/hearthd/hearth/internal/memory"
	"github.com/hearthd/hearth/internal/prompts"
	"github.com/hearthd/hearth/internal/sim"
)

type scriptedModel struct {
	reply string
}

func (s *scriptedModel) Complete(ctx context.Context, req llm.Request) (string, error) {
	return s.reply, nil
}

type testHarness struct {
	srv     *httptest.Server
	manager *agent.Manager
	bus     *events.Bus
	gate    *agent.Gate
}

func setupTestServer(t *testing.T, reply string) *testHarness {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	reg, err := home.NewRegistry(db, nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if err := sim.EnsureSeed(context.Background(), reg); err != nil {
		t.Fatalf("seed: %v", err)
	}

	log, err := memory.NewSQLiteLog(db)
	if err != nil {
		t.Fatalf("log: %v", err)
	}

	logger := slog.Default()
	bus := events.New()
	gate := agent.NewGate(10 * time.Second)
	manager := agent.NewManager(agent.Deps{
		Store:      memory.NewContextStore(log, 10),
		Prompts:    prompts.NewBuilder(6),
		Model:      &scriptedModel{reply: reply},
		Parser:     directive.NewParser(logger),
		Dispatcher: directive.NewDispatcher(reg, logger),
		Gate:       gate,
		Bus:        bus,
		Logger:     logger,
		ModelName:  "qwen-turbo",
	})

	s := New(config.ListenConfig{CORSAllowAll: true}, Deps{
		Manager:    manager,
		Controller: reg,
		History:    log,
		Env:        sim.NewEnvironment(reg, logger),
		Bus:        bus,
		Logger:     logger,
	})

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testHarness{srv: srv, manager: manager, bus: bus, gate: gate}
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func sendJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	h := setupTestServer(t, "ok")
	if code := getJSON(t, h.srv.URL+"/healthz", nil); code != http.StatusOK {
		t.Errorf("healthz = %d", code)
	}
}

func TestListDevices(t *testing.T) {
	h := setupTestServer(t, "ok")

	var body struct {
		Devices []home.Device `json:"devices"`
		Count   int           `json:"count"`
	}
	if code := getJSON(t, h.srv.URL+"/api/devices", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body.Count != 7 {
		t.Errorf("count = %d, want 7 seeded devices", body.Count)
	}
}

func TestGetDevice(t *testing.T) {
	h := setupTestServer(t, "ok")

	var d home.Device
	if code := getJSON(t, h.srv.URL+"/api/devices/light_bedroom", &d); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if d.Kind != home.KindLight || d.Room != home.RoomBedroom {
		t.Errorf("device = %+v", d)
	}

	if code := getJSON(t, h.srv.URL+"/api/devices/light_garage", nil); code != http.StatusNotFound {
		t.Errorf("missing device status = %d, want 404", code)
	}
}

func TestRoomDevices(t *testing.T) {
	h := setupTestServer(t, "ok")

	var body struct {
		Devices []home.Device `json:"devices"`
	}
	if code := getJSON(t, h.srv.URL+"/api/devices/room/bedroom", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	// Seed: motion sensor, temp sensor, light, AC.
	if len(body.Devices) != 4 {
		t.Errorf("bedroom devices = %d, want 4", len(body.Devices))
	}
	for _, d := range body.Devices {
		if d.Room != home.RoomBedroom {
			t.Errorf("device %s in room %s", d.ID, d.Room)
		}
	}
}

func TestUpdateDevice(t *testing.T) {
	h := setupTestServer(t, "ok")

	var body struct {
		Success bool        `json:"success"`
		Device  home.Device `json:"device"`
	}
	code := sendJSON(t, http.MethodPut, h.srv.URL+"/api/devices/light_kitchen",
		map[string]any{"status": "on", "properties": map[string]any{"brightness": 50}}, &body)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !body.Success || body.Device.Status != home.StatusOn {
		t.Errorf("body = %+v", body)
	}

	// Invalid property rejected with 400.
	code = sendJSON(t, http.MethodPut, h.srv.URL+"/api/devices/light_kitchen",
		map[string]any{"properties": map[string]any{"brightness": 500}}, nil)
	if code != http.StatusBadRequest {
		t.Errorf("invalid property status = %d, want 400", code)
	}

	// Invalid status string rejected with 400.
	code = sendJSON(t, http.MethodPut, h.srv.URL+"/api/devices/light_kitchen",
		map[string]any{"status": "dim"}, nil)
	if code != http.StatusBadRequest {
		t.Errorf("invalid status = %d, want 400", code)
	}

	code = sendJSON(t, http.MethodPut, h.srv.URL+"/api/devices/light_garage",
		map[string]any{"status": "on"}, nil)
	if code != http.StatusNotFound {
		t.Errorf("missing device status = %d, want 404", code)
	}
}

func TestInteract(t *testing.T) {
	h := setupTestServer(t, `Turning it off. <action>{"light_living":{"status":"off"}}</action>`)

	var resp agent.Response
	code := sendJSON(t, http.MethodPost, h.srv.URL+"/api/agent/interact",
		map[string]any{"message": "turn off the living room light"}, &resp)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.Message != "Turning it off." {
		t.Errorf("message = %q", resp.Message)
	}
	if len(resp.ActionsTaken) != 1 || !resp.ActionsTaken[0].Success {
		t.Errorf("actions = %+v", resp.ActionsTaken)
	}

	// The device actually changed.
	var d home.Device
	getJSON(t, h.srv.URL+"/api/devices/light_living", &d)
	if d.Status != home.StatusOff {
		t.Errorf("light_living status = %q, want off", d.Status)
	}
}

func TestInteractRequiresMessage(t *testing.T) {
	h := setupTestServer(t, "ok")
	code := sendJSON(t, http.MethodPost, h.srv.URL+"/api/agent/interact", map[string]any{}, nil)
	if code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", code)
	}
}

func TestHistory(t *testing.T) {
	h := setupTestServer(t, "Sure thing.")

	sendJSON(t, http.MethodPost, h.srv.URL+"/api/agent/interact", map[string]any{"message": "hello"}, nil)

	var body struct {
		Messages []memory.Message `json:"messages"`
		Count    int              `json:"count"`
	}
	if code := getJSON(t, h.srv.URL+"/api/agent/history?limit=10", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body.Count != 2 {
		t.Fatalf("count = %d, want user + agent turn", body.Count)
	}
	if body.Messages[0].Role != memory.RoleUser || body.Messages[1].Role != memory.RoleAgent {
		t.Errorf("roles = %s/%s", body.Messages[0].Role, body.Messages[1].Role)
	}

	if code := getJSON(t, h.srv.URL+"/api/agent/history?limit=bogus", nil); code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", code)
	}
}

func TestAnalyze(t *testing.T) {
	h := setupTestServer(t, "All looks good.")

	var s agent.Suggestion
	code := sendJSON(t, http.MethodPost, h.srv.URL+"/api/agent/analyze", nil, &s)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if s.Content != "All looks good." {
		t.Errorf("content = %q", s.Content)
	}

	// Cooldown now active: a second trigger gets 204.
	code = sendJSON(t, http.MethodPost, h.srv.URL+"/api/agent/analyze", nil, nil)
	if code != http.StatusNoContent {
		t.Errorf("second analyze status = %d, want 204", code)
	}
}

// failingAppendLog accepts reads but refuses writes.
type failingAppendLog struct{}

func (failingAppendLog) Append(memory.Message) error {
	return &memory.PersistenceError{Op: "append", Err: errors.New("disk full")}
}

func (failingAppendLog) Recent(int) ([]memory.Message, error) { return nil, nil }

func TestAnalyzeReturnsSuggestionWhenPersistFails(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	reg, err := home.NewRegistry(db, nil)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if err := sim.EnsureSeed(context.Background(), reg); err != nil {
		t.Fatalf("seed: %v", err)
	}

	logger := slog.Default()
	bus := events.New()
	manager := agent.NewManager(agent.Deps{
		Store:      memory.NewContextStore(failingAppendLog{}, 10),
		Prompts:    prompts.NewBuilder(6),
		Model:      &scriptedModel{reply: "Shall I turn off the living room light?"},
		Parser:     directive.NewParser(logger),
		Dispatcher: directive.NewDispatcher(reg, logger),
		Gate:       agent.NewGate(10 * time.Second),
		Bus:        bus,
		Logger:     logger,
		ModelName:  "qwen-turbo",
	})

	s := New(config.ListenConfig{}, Deps{
		Manager:    manager,
		Controller: reg,
		History:    failingAppendLog{},
		Env:        sim.NewEnvironment(reg, logger),
		Bus:        bus,
		Logger:     logger,
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	// The suggestion was produced and applied; a failure recording it
	// in the conversation must not hide it from the caller.
	var sugg agent.Suggestion
	code := sendJSON(t, http.MethodPost, srv.URL+"/api/agent/analyze", nil, &sugg)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite persistence failure", code)
	}
	if sugg.Content != "Shall I turn off the living room light?" {
		t.Errorf("content = %q", sugg.Content)
	}
	if manager.LastSuggestion() == nil {
		t.Error("suggestion not recorded on the manager")
	}
}

func TestStatus(t *testing.T) {
	h := setupTestServer(t, "ok")

	var st agent.Status
	if code := getJSON(t, h.srv.URL+"/api/agent/status", &st); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !st.Active || st.Model != "qwen-turbo" {
		t.Errorf("status = %+v", st)
	}
}

func TestSetOccupancy(t *testing.T) {
	h := setupTestServer(t, "ok")

	code := sendJSON(t, http.MethodPut, h.srv.URL+"/api/rooms/bedroom/occupancy",
		map[string]any{"occupied": true}, nil)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}

	code = sendJSON(t, http.MethodPut, h.srv.URL+"/api/rooms/garage/occupancy",
		map[string]any{"occupied": true}, nil)
	if code != http.StatusNotFound {
		t.Errorf("unknown room status = %d, want 404", code)
	}
}

func TestEventStream(t *testing.T) {
	h := setupTestServer(t, "ok")

	wsURL := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the handler a moment to subscribe before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for h.bus.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.bus.Emit(events.SourceAgent, events.KindSuggestion, map[string]any{"suggestion_id": "s1"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt events.Event
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read: %v", err)
	}
	if evt.Kind != events.KindSuggestion {
		t.Errorf("kind = %q, want suggestion", evt.Kind)
	}
	if fmt.Sprint(evt.Data["suggestion_id"]) != "s1" {
		t.Errorf("data = %v", evt.Data)
	}
}
