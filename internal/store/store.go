// internal/store/store.go

// Package store provides read access to device telemetry and the device
// registry. The analysis agents treat these as external collaborators and
// only ever pull bounded per-device batches.
package store

import (
	"context"
	"time"

	"github.com/vitalmesh/sentinel/api/schemas"
)

// TelemetryStore serves time-ordered sample windows for one device+metric.
type TelemetryStore interface {
	// Query returns samples for the device and metric recorded in
	// [from, to), ordered by RecordedAt ascending.
	Query(ctx context.Context, deviceID, metric string, from, to time.Time) ([]schemas.Sample, error)
}

// DeviceRegistry lists a user's registered devices.
type DeviceRegistry interface {
	// UserDevices returns the user's devices. When deviceID is non-empty the
	// result is narrowed to that single device (empty slice if not owned).
	UserDevices(ctx context.Context, userID, deviceID string) ([]schemas.Device, error)
}

// Store combines both read interfaces; the concrete backends implement it.
type Store interface {
	TelemetryStore
	DeviceRegistry
	Close()
}
