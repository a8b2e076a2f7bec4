// Package static provides a location source that reports fixed coordinates.
package static

import (
	"context"
	"fmt"
	"time"

	"github.com/geotrack/geotrack/internal/domain/model"
)

// Source emits the same coordinates once per interval.
type Source struct {
	latitude  float64
	longitude float64
	now       func() time.Time
}

// New creates a Source at the given coordinates.
func New(latitude, longitude float64) *Source {
	return &Source{latitude: latitude, longitude: longitude, now: time.Now}
}

// Subscribe emits a fix immediately and then on every tick until ctx ends,
// at which point the channel is closed.
func (s *Source) Subscribe(ctx context.Context, interval time.Duration) (<-chan model.Fix, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("subscribe static location: interval %s: %w", interval, model.ErrConfig)
	}

	out := make(chan model.Fix)
	go func() {
		defer close(out)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			fix := model.Fix{Latitude: s.latitude, Longitude: s.longitude, Time: s.now()}
			select {
			case out <- fix:
			case <-ctx.Done():
				return
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
