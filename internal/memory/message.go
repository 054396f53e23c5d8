// Package memory provides conversation storage: a persisted message
// log plus the bounded in-memory context window the agent reasons over.
package memory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleUser   = "user"
	RoleAgent  = "agent"
	RoleSystem = "system"
)

// Message is a single conversation entry. Messages are immutable once
// created; ordering is insertion order.
type Message struct {
	ID        string         `json:"id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewMessage creates a message with a fresh UUIDv7 id and the current
// time.
func NewMessage(role, content string, metadata map[string]any) Message {
	id, _ := uuid.NewV7()
	return Message{
		ID:        id.String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}

// PersistenceError wraps a failure reading or writing the message log.
// It is propagated to callers rather than swallowed: silently losing
// history would corrupt later context-window behavior.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("message log %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Log is the persisted message log collaborator.
type Log interface {
	// Append persists a message.
	Append(m Message) error
	// Recent returns up to limit messages ordered oldest to newest
	// within the returned window.
	Recent(limit int) ([]Message, error)
}
