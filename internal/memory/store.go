package memory

import (
	"sync"
	"time"
)

// ContextStore holds the bounded conversation window plus the latest
// environment snapshot and user preferences. The append-and-trim step
// is a critical section: concurrent flows (a user message and a
// proactive analysis in flight together) serialize on the mutex so the
// ordering and bounded-length invariants hold.
type ContextStore struct {
	mu              sync.Mutex
	log             Log
	maxContext      int
	messages        []Message
	currentState    map[string]any
	userPreferences map[string]any
	lastInteraction time.Time
}

// NewContextStore creates a context store over the given log. A
// non-positive maxContext falls back to 10.
func NewContextStore(log Log, maxContext int) *ContextStore {
	if maxContext <= 0 {
		maxContext = 10
	}
	return &ContextStore{
		log:             log,
		maxContext:      maxContext,
		currentState:    map[string]any{},
		userPreferences: map[string]any{},
	}
}

// Append adds a message to the tail, persists it, then trims the head
// until the window is within bounds. Trimming never errors;
// persistence failures are returned as *PersistenceError after the
// in-memory window has been updated, so the conversation stays
// coherent even when the disk does not.
func (s *ContextStore) Append(m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, m)
	s.lastInteraction = m.Timestamp

	err := s.log.Append(m)

	if excess := len(s.messages) - s.maxContext; excess > 0 {
		s.messages = append([]Message(nil), s.messages[excess:]...)
	}

	return err
}

// Load hydrates the window from the log, keeping at most maxContext of
// the most recent messages in insertion order.
func (s *ContextStore) Load() error {
	msgs, err := s.log.Recent(s.maxContext)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = msgs
	if n := len(msgs); n > 0 {
		s.lastInteraction = msgs[n-1].Timestamp
	}
	return nil
}

// Recent returns the last k messages without mutation. k larger than
// the window returns everything.
func (s *ContextStore) Recent(k int) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if k <= 0 {
		return nil
	}
	if k > len(s.messages) {
		k = len(s.messages)
	}
	out := make([]Message, k)
	copy(out, s.messages[len(s.messages)-k:])
	return out
}

// Len returns the current window length.
func (s *ContextStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// SetState replaces the current-state snapshot map.
func (s *ContextStore) SetState(state map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentState = state
}

// State returns the current-state snapshot map.
func (s *ContextStore) State() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentState
}

// LastInteraction returns the timestamp of the newest message seen.
func (s *ContextStore) LastInteraction() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastInteraction
}
