package home

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Registry is a SQLite-backed device store implementing Controller.
type Registry struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRegistry creates a device registry on the given database,
// creating the schema if needed.
func NewRegistry(db *sql.DB, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		return nil, fmt.Errorf("migrate devices: %w", err)
	}
	return r, nil
}

func (r *Registry) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS devices (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		room TEXT NOT NULL,
		status TEXT NOT NULL,
		properties TEXT,
		last_updated TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_devices_room ON devices(room, name);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Save inserts or replaces a device row. Used by the simulator seed
// and by Update.
func (r *Registry) Save(ctx context.Context, d Device) error {
	props, err := json.Marshal(d.Properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO devices
		(id, name, kind, room, status, properties, last_updated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.Name, string(d.Kind), d.Room, string(d.Status), string(props),
		d.LastUpdated, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("save device %s: %w", d.ID, err)
	}
	return nil
}

// Get returns a device by id, or ErrDeviceNotFound.
func (r *Registry) Get(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, kind, room, status, properties, last_updated, created_at
		FROM devices WHERE id = ?
	`, id)

	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get device %s: %w", id, err)
	}
	return d, nil
}

// List returns all devices ordered by room then name.
func (r *Registry) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, kind, room, status, properties, last_updated, created_at
		FROM devices ORDER BY room, name
	`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

// ListRoom returns the devices in a single room.
func (r *Registry) ListRoom(ctx context.Context, room string) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, kind, room, status, properties, last_updated, created_at
		FROM devices WHERE room = ? ORDER BY name
	`, room)
	if err != nil {
		return nil, fmt.Errorf("list room %s: %w", room, err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

// Update changes status and/or properties on a device. Properties are
// validated by the device's kind; a validation failure applies nothing.
func (r *Registry) Update(ctx context.Context, id string, status *Status, props map[string]any) (*Device, error) {
	d, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := d.ApplyProperties(props); err != nil {
		return nil, err
	}
	if status != nil {
		d.Status = *status
	}
	d.LastUpdated = time.Now()

	if err := r.Save(ctx, *d); err != nil {
		return nil, err
	}

	r.logger.Debug("device updated",
		"device", id,
		"status", d.Status,
		"properties", len(props),
	)
	return d, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(s scanner) (*Device, error) {
	var d Device
	var kind, status string
	var props sql.NullString

	err := s.Scan(&d.ID, &d.Name, &kind, &d.Room, &status, &props,
		&d.LastUpdated, &d.CreatedAt)
	if err != nil {
		return nil, err
	}

	d.Kind = Kind(kind)
	d.Status = Status(status)
	if props.Valid && props.String != "" {
		if err := json.Unmarshal([]byte(props.String), &d.Properties); err != nil {
			return nil, fmt.Errorf("decode properties: %w", err)
		}
	}
	if d.Properties == nil {
		d.Properties = map[string]any{}
	}
	return &d, nil
}
