// Package agent is the orchestration core: it decides when to speak,
// asks the model, extracts directives from the reply, and applies them.
package agent

import (
	"time"

	"github.com/hearthd/hearth/internal/directive"
)

// Suggestion is a proactive recommendation produced from a snapshot.
// Content is the user-facing text with action blocks already removed.
type Suggestion struct {
	ID        string                         `json:"id"`
	Content   string                         `json:"content"`
	Actions   map[string]directive.Directive `json:"suggested_actions,omitempty"`
	Results   []directive.ActionResult       `json:"action_results,omitempty"`
	Reasoning string                         `json:"reasoning"`
	Timestamp time.Time                      `json:"timestamp"`
}

// Response is the reply to one user interaction.
type Response struct {
	Message      string                   `json:"message"`
	ActionsTaken []directive.ActionResult `json:"actions_taken"`
	Timestamp    time.Time                `json:"timestamp"`
}

// Status is a point-in-time view of the agent, served by the status
// endpoint and mirrored to MQTT.
type Status struct {
	Active           bool      `json:"active"`
	Model            string    `json:"model"`
	ContextLength    int       `json:"context_length"`
	LastInteraction  time.Time `json:"last_interaction"`
	LastSuggestion   time.Time `json:"last_suggestion"`
	SuggestionsFired int64     `json:"suggestions_fired"`
	ActionsExecuted  int64     `json:"actions_executed"`
}
