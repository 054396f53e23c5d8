package home

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hearthd/hearth/internal/httpkit"
)

// RemoteController drives an external device service over HTTP. It
// implements Controller against the same REST surface the local API
// exposes (GET /api/devices, PUT /api/devices/{id}).
type RemoteController struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewRemoteController creates a controller for the device service at
// baseURL.
func NewRemoteController(baseURL string, logger *slog.Logger) *RemoteController {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteController{
		baseURL: baseURL,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(10*time.Second),
			httpkit.WithRetry(2, time.Second),
			httpkit.WithLogger(logger),
		),
		logger: logger,
	}
}

// updateRequest mirrors the device service's PUT body.
type updateRequest struct {
	Status     *Status        `json:"status,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// deviceResponse mirrors the device service's mutation envelope.
type deviceResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Device  *Device `json:"device,omitempty"`
}

// Get returns a device by id, or ErrDeviceNotFound.
func (c *RemoteController) Get(ctx context.Context, id string) (*Device, error) {
	var d Device
	if err := c.do(ctx, http.MethodGet, "/api/devices/"+id, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// listResponse mirrors the device service's list envelope.
type listResponse struct {
	Devices []Device `json:"devices"`
	Count   int      `json:"count"`
}

// List returns all devices.
func (c *RemoteController) List(ctx context.Context) ([]Device, error) {
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, "/api/devices", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Devices, nil
}

// Update sends a status/property change to the remote service.
func (c *RemoteController) Update(ctx context.Context, id string, status *Status, props map[string]any) (*Device, error) {
	req := updateRequest{Status: status, Properties: props}

	var resp deviceResponse
	if err := c.do(ctx, http.MethodPut, "/api/devices/"+id, req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("device %s: update rejected: %s", id, resp.Message)
	}
	return resp.Device, nil
}

func (c *RemoteController) do(ctx context.Context, method, path string, body any, result any) error {
	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	// Drain and close to ensure connection reuse even when result is nil.
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, path)
	}
	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 512)
		return fmt.Errorf("device service error %d: %s", resp.StatusCode, errBody)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}
