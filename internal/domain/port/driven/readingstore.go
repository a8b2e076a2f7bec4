package driven

import (
	"context"

	"github.com/geotrack/geotrack/internal/domain/model"
)

// ReadingStore defines the driven port for append-only reading persistence.
// Failures are wrapped with model.ErrStorage.
type ReadingStore interface {
	// Append persists r and returns the store-assigned ID. r.ID is ignored.
	Append(ctx context.Context, r model.Reading) (int64, error)

	// QueryRange returns readings with CapturedAtMillis in [startMillis, endMillis],
	// newest first. An inverted range yields an empty slice and no error.
	QueryRange(ctx context.Context, startMillis, endMillis int64) ([]model.Reading, error)

	// Latest returns the most recently captured reading, or (nil, nil) when empty.
	Latest(ctx context.Context) (*model.Reading, error)
}
