package driven

import "context"

// SettingsStore defines the driven port for persisted key/value settings.
type SettingsStore interface {
	// Get returns the raw value for key. ok is false if the key is unset.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// GetAll returns every stored setting keyed by name.
	GetAll(ctx context.Context) (map[string]string, error)

	// SetMany stores all pairs in a single transaction, replacing existing values.
	SetMany(ctx context.Context, values map[string]string) error
}
