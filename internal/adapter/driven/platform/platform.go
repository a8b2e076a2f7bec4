// Package platform reads device telemetry from the host operating system.
package platform

import (
	"log/slog"
)

// Probe implements the telemetry ports against the local host. The zero
// value is not usable; construct with New.
type Probe struct {
	storagePath string
	deviceID    string
	logger      *slog.Logger
}

// New creates a Probe. storagePath selects the filesystem whose capacity is
// reported; deviceID, when non-empty, overrides the derived identifier.
func New(storagePath, deviceID string, logger *slog.Logger) *Probe {
	if storagePath == "" {
		storagePath = "/"
	}
	return &Probe{storagePath: storagePath, deviceID: deviceID, logger: logger}
}
