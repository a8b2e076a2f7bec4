package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/geotrack/geotrack/internal/domain/model"
	"github.com/geotrack/geotrack/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SettingsStore = (*SettingsRepo)(nil)

// SettingsRepo is the SQLite implementation of the SettingsStore port interface.
type SettingsRepo struct {
	db *DB
}

// NewSettingsRepo creates a new SettingsRepo backed by the given DB.
func NewSettingsRepo(db *DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

// Get retrieves a single setting. ok is false when the key has never been set.
func (r *SettingsRepo) Get(ctx context.Context, key string) (string, bool, error) {
	const query = `SELECT value FROM settings WHERE key = ?`

	var value string
	err := r.db.Reader.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %q: %w: %w", key, model.ErrStorage, err)
	}

	return value, true, nil
}

// GetAll returns every stored setting.
func (r *SettingsRepo) GetAll(ctx context.Context) (map[string]string, error) {
	const query = `SELECT key, value FROM settings`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w: %w", model.ErrStorage, err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w: %w", model.ErrStorage, err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w: %w", model.ErrStorage, err)
	}

	return values, nil
}

// SetMany upserts all pairs inside one transaction so readers never observe a
// half-written schedule.
func (r *SettingsRepo) SetMany(ctx context.Context, values map[string]string) error {
	const query = `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings tx: %w: %w", model.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	for key, value := range values {
		if _, err := tx.ExecContext(ctx, query, key, value); err != nil {
			return fmt.Errorf("set setting %q: %w: %w", key, model.ErrStorage, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings: %w: %w", model.ErrStorage, err)
	}
	return nil
}
