package model

import "errors"

// Error kinds shared across layers. Adapters wrap these with context so
// callers can classify failures with errors.Is.
var (
	// ErrConfig marks malformed schedule or interval values.
	ErrConfig = errors.New("invalid configuration")

	// ErrStorage marks a failed read or write against persistence.
	ErrStorage = errors.New("storage failure")

	// ErrAuth marks a missing, malformed or unknown bearer token.
	ErrAuth = errors.New("unauthorized")

	// ErrValidation marks bad request input.
	ErrValidation = errors.New("validation failed")

	// ErrTelemetryPartial marks a telemetry source that could not be read.
	ErrTelemetryPartial = errors.New("telemetry source unavailable")
)
