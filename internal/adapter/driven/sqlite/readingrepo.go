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
var _ driven.ReadingStore = (*ReadingRepo)(nil)

// ReadingRepo is the SQLite implementation of the ReadingStore port interface.
// Rows are only ever inserted; there is no update or delete path.
type ReadingRepo struct {
	db *DB
}

// NewReadingRepo creates a new ReadingRepo backed by the given DB.
func NewReadingRepo(db *DB) *ReadingRepo {
	return &ReadingRepo{db: db}
}

// Append inserts a reading and returns its auto-increment ID.
func (r *ReadingRepo) Append(ctx context.Context, reading model.Reading) (int64, error) {
	const query = `
		INSERT INTO readings (latitude, longitude, captured_at_millis, device_id)
		VALUES (?, ?, ?, ?)
	`

	res, err := r.db.Writer.ExecContext(ctx, query,
		reading.Latitude, reading.Longitude, reading.CapturedAtMillis, reading.DeviceID,
	)
	if err != nil {
		return 0, fmt.Errorf("append reading: %w: %w", model.ErrStorage, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append reading: last insert id: %w: %w", model.ErrStorage, err)
	}

	return id, nil
}

// QueryRange returns readings captured within [startMillis, endMillis], newest
// first. Ties on the capture instant are broken by descending ID.
func (r *ReadingRepo) QueryRange(ctx context.Context, startMillis, endMillis int64) ([]model.Reading, error) {
	if startMillis > endMillis {
		return []model.Reading{}, nil
	}

	const query = `
		SELECT id, latitude, longitude, captured_at_millis, device_id
		FROM readings
		WHERE captured_at_millis BETWEEN ? AND ?
		ORDER BY captured_at_millis DESC, id DESC
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, startMillis, endMillis)
	if err != nil {
		return nil, fmt.Errorf("query readings %d..%d: %w: %w", startMillis, endMillis, model.ErrStorage, err)
	}
	defer rows.Close()

	readings := []model.Reading{}
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readings: %w: %w", model.ErrStorage, err)
	}

	return readings, nil
}

// Latest returns the newest reading, or (nil, nil) if the store is empty.
func (r *ReadingRepo) Latest(ctx context.Context) (*model.Reading, error) {
	const query = `
		SELECT id, latitude, longitude, captured_at_millis, device_id
		FROM readings
		ORDER BY captured_at_millis DESC, id DESC
		LIMIT 1
	`

	reading, err := scanReading(r.db.Reader.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &reading, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (model.Reading, error) {
	var reading model.Reading
	err := row.Scan(
		&reading.ID, &reading.Latitude, &reading.Longitude,
		&reading.CapturedAtMillis, &reading.DeviceID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reading{}, err
	}
	if err != nil {
		return model.Reading{}, fmt.Errorf("scan reading: %w: %w", model.ErrStorage, err)
	}
	return reading, nil
}
