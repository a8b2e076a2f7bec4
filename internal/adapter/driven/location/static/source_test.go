package static

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geotrack/geotrack/internal/domain/model"
)

func TestSource_EmitsImmediatelyThenEveryInterval(t *testing.T) {
	src := New(48.8584, 2.2945)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fixes, err := src.Subscribe(ctx, 20*time.Millisecond)
	require.NoError(t, err)

	for i := range 3 {
		select {
		case fix := <-fixes:
			assert.Equal(t, 48.8584, fix.Latitude, "fix %d", i)
			assert.Equal(t, 2.2945, fix.Longitude, "fix %d", i)
			assert.False(t, fix.Time.IsZero())
		case <-time.After(time.Second):
			t.Fatalf("fix %d not delivered", i)
		}
	}
}

func TestSource_ClosesOnCancel(t *testing.T) {
	src := New(0, 0)
	ctx, cancel := context.WithCancel(context.Background())

	fixes, err := src.Subscribe(ctx, time.Hour)
	require.NoError(t, err)
	<-fixes
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-fixes:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestSource_RejectsNonPositiveInterval(t *testing.T) {
	_, err := New(0, 0).Subscribe(context.Background(), 0)
	require.ErrorIs(t, err, model.ErrConfig)
}
