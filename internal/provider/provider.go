// Package provider defines the storage backend interface for the sensor API.
package provider

import (
	"context"

	"github.com/dwsmith1983/trashcan/pkg/types"
)

// Provider is the storage backend interface. Every returned error other than
// nil is a *types.Error carrying the failure-site code.
type Provider interface {
	// Register creates the device details and current status rows. Registering
	// an id that already exists is a successful no-op.
	Register(ctx context.Context, deviceID string, totalLevels int) error

	// Report appends a history row and updates the device's current status,
	// atomically.
	Report(ctx context.Context, deviceID string, fillLevel int) error

	// ListDevices returns every current status row.
	ListDevices(ctx context.Context) ([]types.Record, error)

	// GetDevice returns the device details row and its history, newest first.
	GetDevice(ctx context.Context, deviceID string) (types.Record, []types.Record, error)

	// Ping checks connectivity with the backing store.
	Ping(ctx context.Context) error
}
