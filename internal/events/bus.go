// Package events provides a publish/subscribe bus for operational
// observability. Components (conversation manager, dispatcher, sim
// ticker) publish; the WebSocket handler and the MQTT publisher
// subscribe. The bus is nil-safe: Publish on a nil *Bus is a no-op, so
// wiring it up stays optional.
package events

import (
	"sync"
	"time"
)

// Source constants identify which component published an event.
const (
	SourceAgent      = "agent"
	SourceDispatcher = "dispatcher"
	SourceSim        = "sim"
	SourceDevices    = "devices"
)

// Kind constants describe the type of event within a source.
const (
	// KindInteraction signals a user message entering the manager.
	// Data: message_len.
	KindInteraction = "interaction"
	// KindLLMCall signals the start of a model call.
	// Data: model, proactive.
	KindLLMCall = "llm_call"
	// KindLLMResponse signals a completed model call.
	// Data: model, ok, duration_ms.
	KindLLMResponse = "llm_response"
	// KindSuggestion signals a proactive suggestion was produced.
	// Data: suggestion_id, directives.
	KindSuggestion = "suggestion"
	// KindActionApplied signals one directive outcome.
	// Data: device_id, success, message.
	KindActionApplied = "action_applied"
	// KindTick signals an environment snapshot was sampled.
	// Data: devices, occupied_rooms.
	KindTick = "tick"
	// KindDeviceUpdated signals a device state change via the API.
	// Data: device_id, status.
	KindDeviceUpdated = "device_updated"
)

// Event is a single operational event.
type Event struct {
	Timestamp time.Time      `json:"ts"`
	Source    string         `json:"source"`
	Kind      string         `json:"kind"`
	Data      map[string]any `json:"data,omitempty"`
}

// Subscription is a live feed of bus events. Close it when done or the
// bus keeps delivering into the buffer forever.
type Subscription struct {
	C   <-chan Event
	bus *Bus
	id  int
}

// Close removes the subscription and closes C. Safe to call twice.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.id)
}

// Bus is a non-blocking broadcast bus. Slow subscribers miss events
// rather than blocking publishers.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Event
}

// New creates an event bus.
func New() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Publish broadcasts an event, stamping the time if unset. When a
// subscriber's buffer is full the event is dropped for that subscriber.
// Safe on a nil receiver.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Emit is shorthand for Publish with inline data.
func (b *Bus) Emit(source, kind string, data map[string]any) {
	b.Publish(Event{Source: source, Kind: kind, Data: data})
}

// Subscribe registers a new subscriber with the given channel buffer.
// 64 is a reasonable buffer for WebSocket consumers.
func (b *Bus) Subscribe(bufSize int) *Subscription {
	ch := make(chan Event, bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	return &Subscription{C: ch, bus: b, id: id}
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(ch)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
