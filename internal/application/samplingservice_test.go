package application_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geotrack/geotrack/internal/application"
	"github.com/geotrack/geotrack/internal/domain/model"
)

// 2026-02-09 is a Monday.
var monday = time.Date(2026, 2, 9, 0, 0, 0, 0, time.Local)

type samplingHarness struct {
	svc      *application.SamplingService
	source   *mockLocationSource
	store    *mockReadingStore
	settings *application.SettingsService
	live     *application.LiveReadings
	clock    *fakeClock
}

func newSamplingHarness(t *testing.T, cfg model.ScheduleConfig) *samplingHarness {
	t.Helper()

	h := &samplingHarness{
		source:   newMockLocationSource(),
		store:    &mockReadingStore{},
		settings: application.NewSettingsService(newMockSettingsStore(), discardLogger()),
		live:     application.NewLiveReadings(8),
		clock:    &fakeClock{now: monday.Add(12 * time.Hour)},
	}
	require.NoError(t, h.settings.Save(context.Background(), cfg))

	h.svc = application.NewSamplingService(
		h.source, h.store, h.settings, h.live, "device-42", discardLogger(),
		application.WithClock(h.clock.Now),
		application.WithWriteTimeout(time.Second),
	)
	t.Cleanup(h.svc.Stop)
	return h
}

func (h *samplingHarness) push(t *testing.T, fix model.Fix) {
	t.Helper()
	if !h.source.send(fix, time.Second) {
		t.Fatal("sampling worker did not accept fix")
	}
}

func officeHours() model.ScheduleConfig {
	cfg := model.DefaultScheduleConfig()
	cfg.StartHour, cfg.StartMinute = 9, 0
	cfg.EndHour, cfg.EndMinute = 17, 0
	cfg.IntervalSeconds = 10
	return cfg
}

func TestSamplingService_PersistsFixInsideWindow(t *testing.T) {
	h := newSamplingHarness(t, officeHours())
	updates, cancel := h.live.Subscribe()
	defer cancel()

	require.NoError(t, h.svc.Start(context.Background()))

	h.push(t, model.Fix{Latitude: 40.4168, Longitude: -3.7038, Time: h.clock.Now()})

	got := receive(t, updates)
	assert.Equal(t, 40.4168, got.Latitude)
	assert.Equal(t, -3.7038, got.Longitude)
	assert.Equal(t, h.clock.Now().UnixMilli(), got.CapturedAtMillis)
	assert.Equal(t, "device-42", got.DeviceID)
	assert.NotZero(t, got.ID)

	stored, err := h.store.QueryRange(context.Background(), got.CapturedAtMillis, got.CapturedAtMillis)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, got, stored[0])

	stats := h.svc.Stats()
	assert.Equal(t, int64(1), stats.FixesReceived)
	assert.Equal(t, int64(1), stats.Stored)
	assert.Equal(t, h.clock.Now(), stats.LastStoredAt)
}

func TestSamplingService_DiscardsFixOutsideWindow(t *testing.T) {
	h := newSamplingHarness(t, officeHours())
	h.clock.Set(monday.Add(20 * time.Hour))
	updates, cancel := h.live.Subscribe()
	defer cancel()

	require.NoError(t, h.svc.Start(context.Background()))

	h.push(t, model.Fix{Latitude: 1, Longitude: 2})

	require.Eventually(t, func() bool { return h.svc.Stats().Discarded == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, h.store.count())
	assertNothingPending(t, updates)
}

func TestSamplingService_DiscardsFixOnInactiveDay(t *testing.T) {
	cfg := officeHours()
	cfg.ActiveDays = map[model.Weekday]bool{model.Tuesday: true}
	h := newSamplingHarness(t, cfg)

	require.NoError(t, h.svc.Start(context.Background()))

	h.push(t, model.Fix{Latitude: 1, Longitude: 2})

	require.Eventually(t, func() bool { return h.svc.Stats().Discarded == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, h.store.count())
}

func TestSamplingService_ScheduleChangeAppliesToNextFix(t *testing.T) {
	h := newSamplingHarness(t, officeHours())
	require.NoError(t, h.svc.Start(context.Background()))

	h.push(t, model.Fix{Latitude: 1, Longitude: 1})
	require.Eventually(t, func() bool { return h.store.count() == 1 }, time.Second, 5*time.Millisecond)

	closed := officeHours()
	closed.StartHour, closed.EndHour = 13, 14
	require.NoError(t, h.settings.Save(context.Background(), closed))

	h.push(t, model.Fix{Latitude: 2, Longitude: 2})
	require.Eventually(t, func() bool { return h.svc.Stats().Discarded == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.store.count())
}

func TestSamplingService_StoreErrorDoesNotStopLoop(t *testing.T) {
	h := newSamplingHarness(t, officeHours())
	h.store.setAppendErr(errDiskFull)
	updates, cancel := h.live.Subscribe()
	defer cancel()

	require.NoError(t, h.svc.Start(context.Background()))

	h.push(t, model.Fix{Latitude: 1, Longitude: 1})
	require.Eventually(t, func() bool { return h.svc.Stats().StoreErrors == 1 }, time.Second, 5*time.Millisecond)
	assertNothingPending(t, updates)

	h.store.setAppendErr(nil)
	h.push(t, model.Fix{Latitude: 2, Longitude: 2})

	got := receive(t, updates)
	assert.Equal(t, 2.0, got.Latitude)
	assert.True(t, h.svc.Running())
}

func TestSamplingService_StartIsIdempotent(t *testing.T) {
	h := newSamplingHarness(t, officeHours())
	ctx := context.Background()

	require.NoError(t, h.svc.Start(ctx))
	require.NoError(t, h.svc.Start(ctx))

	intervals, _ := h.source.subscriptions()
	assert.Equal(t, []time.Duration{10 * time.Second}, intervals)
	assert.True(t, h.svc.Running())
}

func TestSamplingService_StopReleasesSubscription(t *testing.T) {
	h := newSamplingHarness(t, officeHours())

	h.svc.Stop() // not running: no-op
	require.NoError(t, h.svc.Start(context.Background()))
	h.svc.Stop()
	h.svc.Stop()

	assert.False(t, h.svc.Running())
	require.Eventually(t, func() bool {
		_, released := h.source.subscriptions()
		return released == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSamplingService_RestartAfterStop(t *testing.T) {
	h := newSamplingHarness(t, officeHours())
	ctx := context.Background()

	require.NoError(t, h.svc.Start(ctx))
	h.svc.Stop()
	require.NoError(t, h.svc.Start(ctx))

	h.push(t, model.Fix{Latitude: 3, Longitude: 3})
	require.Eventually(t, func() bool { return h.store.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSamplingService_RestartStoresEveryFix(t *testing.T) {
	h := newSamplingHarness(t, officeHours())
	ctx := context.Background()

	for i := range 20 {
		require.NoError(t, h.svc.Start(ctx))
		h.svc.Stop()
		require.NoError(t, h.svc.Start(ctx))

		h.push(t, model.Fix{Latitude: float64(i), Longitude: 1})
		want := i + 1
		require.Eventually(t, func() bool { return h.store.count() == want }, time.Second, 5*time.Millisecond)
		h.svc.Stop()
	}
}

func TestSamplingService_ParentContextCancelStopsWorker(t *testing.T) {
	h := newSamplingHarness(t, officeHours())
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, h.svc.Start(ctx))
	cancel()

	require.Eventually(t, func() bool {
		_, released := h.source.subscriptions()
		return released == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSamplingService_SubscribeErrorFailsStart(t *testing.T) {
	h := newSamplingHarness(t, officeHours())
	h.source.subErr = errors.New("location permission denied")

	err := h.svc.Start(context.Background())
	require.Error(t, err)
	assert.False(t, h.svc.Running())
}

func TestSamplingService_IntervalChangeResubscribes(t *testing.T) {
	cfg := officeHours()
	cfg.IntervalSeconds = 1
	h := newSamplingHarness(t, cfg)

	require.NoError(t, h.svc.Start(context.Background()))

	cfg.IntervalSeconds = 2
	require.NoError(t, h.settings.Save(context.Background(), cfg))

	require.Eventually(t, func() bool {
		intervals, released := h.source.subscriptions()
		return len(intervals) == 2 && intervals[1] == 2*time.Second && released == 1
	}, 3*time.Second, 10*time.Millisecond)
}

// blockingReadingStore blocks Append until its context ends.
type blockingReadingStore struct {
	mockReadingStore
	entered  chan struct{}
	canceled atomic.Bool
}

func (b *blockingReadingStore) Append(ctx context.Context, _ model.Reading) (int64, error) {
	close(b.entered)
	<-ctx.Done()
	b.canceled.Store(true)
	return 0, ctx.Err()
}

func TestSamplingService_StopCancelsInFlightWrite(t *testing.T) {
	source := newMockLocationSource()
	store := &blockingReadingStore{entered: make(chan struct{})}
	settings := application.NewSettingsService(newMockSettingsStore(), discardLogger())
	require.NoError(t, settings.Save(context.Background(), officeHours()))
	clock := &fakeClock{now: monday.Add(12 * time.Hour)}

	svc := application.NewSamplingService(source, store, settings, application.NewLiveReadings(1), "d", discardLogger(),
		application.WithClock(clock.Now),
		application.WithWriteTimeout(time.Minute),
	)
	require.NoError(t, svc.Start(context.Background()))

	require.True(t, source.send(model.Fix{Latitude: 1, Longitude: 1}, time.Second))
	<-store.entered

	stopped := make(chan struct{})
	go func() {
		svc.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop waited for the blocked write")
	}
	assert.True(t, store.canceled.Load())
	assert.Equal(t, int64(0), svc.Stats().StoreErrors)
}
