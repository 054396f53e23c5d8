// Package llm provides the language model client: a small completion
// interface, an OpenAI-compatible implementation, and a bounded pool
// that caps in-flight calls.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrModelUnavailable means the model endpoint cannot be constructed,
// typically a missing API key. It is fatal at startup.
var ErrModelUnavailable = errors.New("language model unavailable")

// Roles for history messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one prior conversation turn passed to the model.
type Message struct {
	Role    string
	Content string
}

// Request is a single completion call. History carries prior turns in
// order; System and User bracket them.
type Request struct {
	System  string
	History []Message
	User    string
}

// Client produces a completion for a request. Implementations return
// *CallFailure for any provider-side problem; callers decide whether
// to degrade or surface it.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CallFailure wraps a failed or empty model call. The orchestration
// layer recovers from these with a fallback reply rather than
// propagating them to the user.
type CallFailure struct {
	Model string
	Err   error
}

func (e *CallFailure) Error() string {
	return fmt.Sprintf("model call failed (%s): %v", e.Model, e.Err)
}

func (e *CallFailure) Unwrap() error { return e.Err }
