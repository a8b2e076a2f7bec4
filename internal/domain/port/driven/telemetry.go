package driven

import (
	"context"

	"github.com/geotrack/geotrack/internal/domain/model"
)

// BatterySource reads the current battery charge state.
type BatterySource interface {
	Battery(ctx context.Context) (model.BatteryStatus, error)
}

// NetworkSource reads the current connectivity state.
type NetworkSource interface {
	Network(ctx context.Context) (model.NetworkStatus, error)
}

// StorageSource reports storage capacity in bytes.
type StorageSource interface {
	Storage(ctx context.Context) (availableBytes, totalBytes uint64, err error)
}

// HostSource describes the platform.
type HostSource interface {
	Host(ctx context.Context) (model.HostInfo, error)
}

// DeviceIDSource returns a stable per-install identifier.
type DeviceIDSource interface {
	DeviceID(ctx context.Context) (string, error)
}
