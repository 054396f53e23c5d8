package home

import "context"

// Controller is the device-control surface consumed by the agent's
// action dispatcher and the HTTP API. Implementations: *Registry
// (local SQLite-backed) and *RemoteController (external device
// service over HTTP).
type Controller interface {
	// Get returns a device by id, or ErrDeviceNotFound.
	Get(ctx context.Context, id string) (*Device, error)

	// List returns all devices ordered by room then name.
	List(ctx context.Context) ([]Device, error)

	// Update changes a device's status and/or properties. Either
	// argument may be nil/empty. Properties are validated against the
	// device kind's schema; on validation failure nothing is applied.
	Update(ctx context.Context, id string, status *Status, props map[string]any) (*Device, error)
}
