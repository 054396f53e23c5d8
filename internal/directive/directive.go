// Package directive extracts device control blocks from model replies
// and applies them to the home.
package directive

// Directive is one requested device change. Status and Properties are
// both optional; an empty directive is legal and applies nothing new.
type Directive struct {
	Status     *string        `json:"status,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// ActionResult records the outcome of applying one directive. A batch
// yields one result per directive regardless of individual failures.
type ActionResult struct {
	DeviceID string    `json:"device_id"`
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
	Action   Directive `json:"action"`
}
