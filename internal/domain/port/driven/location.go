package driven

import (
	"context"
	"time"

	"github.com/geotrack/geotrack/internal/domain/model"
)

// LocationSource delivers position fixes. The interval is a hint: sources
// may deliver more or less often depending on the provider.
type LocationSource interface {
	// Subscribe starts delivery. The returned channel is closed once ctx is
	// done and the subscription has been released.
	Subscribe(ctx context.Context, interval time.Duration) (<-chan model.Fix, error)
}
