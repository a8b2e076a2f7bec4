package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/geotrack/geotrack/internal/domain/model"
	"github.com/geotrack/geotrack/internal/domain/port/driven"
)

// defaultWriteTimeout bounds a single store write.
const defaultWriteTimeout = 5 * time.Second

// ScheduleProvider supplies the current collection schedule. The returned
// config is always usable even when err reports a fallback.
type ScheduleProvider interface {
	Schedule(ctx context.Context) (model.ScheduleConfig, error)
}

// SamplingMetrics receives per-fix outcomes. Implementations must be safe for
// concurrent use.
type SamplingMetrics interface {
	FixReceived()
	FixDiscarded()
	ReadingStored()
	StoreFailed()
}

// SamplingStats is a snapshot of the loop's counters.
type SamplingStats struct {
	FixesReceived int64
	Discarded     int64
	Stored        int64
	StoreErrors   int64
	LastStoredAt  time.Time
}

// SamplingOption configures optional SamplingService behaviour.
type SamplingOption func(*SamplingService)

// WithClock replaces time.Now as the source of capture timestamps and
// schedule evaluation.
func WithClock(now func() time.Time) SamplingOption {
	return func(s *SamplingService) { s.now = now }
}

// WithSamplingMetrics attaches a metrics sink.
func WithSamplingMetrics(m SamplingMetrics) SamplingOption {
	return func(s *SamplingService) { s.metrics = m }
}

// WithWriteTimeout bounds each store write.
func WithWriteTimeout(d time.Duration) SamplingOption {
	return func(s *SamplingService) { s.writeTimeout = d }
}

// SamplingService consumes location fixes, gates them on the collection
// schedule, persists the ones that pass and publishes each saved reading.
// It is the only producer of readings.
type SamplingService struct {
	source       driven.LocationSource
	readings     driven.ReadingStore
	schedule     ScheduleProvider
	live         *LiveReadings
	deviceID     string
	metrics      SamplingMetrics
	logger       *slog.Logger
	now          func() time.Time
	writeTimeout time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	statsMu sync.Mutex
	stats   SamplingStats
}

// NewSamplingService creates a SamplingService with all required dependencies.
func NewSamplingService(
	source driven.LocationSource,
	readings driven.ReadingStore,
	schedule ScheduleProvider,
	live *LiveReadings,
	deviceID string,
	logger *slog.Logger,
	opts ...SamplingOption,
) *SamplingService {
	s := &SamplingService{
		source:       source,
		readings:     readings,
		schedule:     schedule,
		live:         live,
		deviceID:     deviceID,
		metrics:      noopSamplingMetrics{},
		logger:       logger,
		now:          time.Now,
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start subscribes to the location source and launches the sampling worker.
// It returns once the subscription is established. Calling Start on a
// running service does nothing. The worker stops when ctx is canceled or
// Stop is called.
func (s *SamplingService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.logger.Debug("sampling already running")
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	cfg := s.loadSchedule(workerCtx)

	sub, err := s.subscribe(workerCtx, cfg.Interval())
	if err != nil {
		cancel()
		return err
	}

	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		s.run(workerCtx, sub, cfg)
	}()

	s.logger.Info("sampling started",
		"device_id", s.deviceID,
		"interval", cfg.Interval(),
		"days", model.FormatWeekdays(cfg.ActiveDays),
		"window", model.FormatClock(cfg.StartHour, cfg.StartMinute)+"-"+model.FormatClock(cfg.EndHour, cfg.EndMinute),
	)
	return nil
}

// Stop halts the worker, releases the location subscription and waits for
// any in-flight write to be canceled. Stop on a stopped service does nothing.
func (s *SamplingService) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
	s.logger.Info("sampling stopped")
}

// Running reports whether the worker is active.
func (s *SamplingService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Stats returns a copy of the loop counters.
func (s *SamplingService) Stats() SamplingStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// subscription is one live location subscription with its own cancel.
type subscription struct {
	fixes    <-chan model.Fix
	cancel   context.CancelFunc
	interval time.Duration
}

func (s *SamplingService) subscribe(ctx context.Context, interval time.Duration) (*subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	fixes, err := s.source.Subscribe(subCtx, interval)
	if err != nil {
		cancel()
		return nil, err
	}
	return &subscription{fixes: fixes, cancel: cancel, interval: interval}, nil
}

// run is the worker loop. The ticker re-reads the schedule every interval;
// an interval change replaces the subscription and the ticker so the new
// cadence applies from the next tick.
func (s *SamplingService) run(ctx context.Context, sub *subscription, cfg model.ScheduleConfig) {
	ticker := time.NewTicker(cfg.Interval())
	defer ticker.Stop()

	defer func() {
		if sub != nil {
			sub.cancel()
		}
	}()

	var fixes <-chan model.Fix
	if sub != nil {
		fixes = sub.fixes
	}

	for {
		select {
		case <-ctx.Done():
			return

		case fix, ok := <-fixes:
			if !ok {
				s.logger.Warn("location subscription ended, resubscribing on next tick")
				fixes = nil
				continue
			}
			s.handleFix(ctx, fix)

		case <-ticker.C:
			next := s.loadSchedule(ctx)
			if sub != nil && fixes != nil && next.Interval() == sub.interval {
				continue
			}

			if sub != nil {
				sub.cancel()
				sub = nil
				fixes = nil
			}

			newSub, err := s.subscribe(ctx, next.Interval())
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Error("location resubscribe failed", "error", err)
				}
				continue
			}
			sub = newSub
			fixes = newSub.fixes
			ticker.Reset(next.Interval())
			s.logger.Info("sampling interval applied", "interval", next.Interval())
		}
	}
}

// handleFix gates one fix on the current schedule and, if allowed, stores
// and publishes it. Store failures are logged and counted; the loop goes on.
func (s *SamplingService) handleFix(ctx context.Context, fix model.Fix) {
	s.metrics.FixReceived()
	s.bump(func(st *SamplingStats) { st.FixesReceived++ })

	now := s.now()
	cfg := s.loadSchedule(ctx)

	if !IsActiveNow(cfg, now) {
		s.metrics.FixDiscarded()
		s.bump(func(st *SamplingStats) { st.Discarded++ })
		s.logger.Debug("fix outside collection schedule, discarded", "at", now.Format(time.DateTime))
		return
	}

	reading := model.Reading{
		Latitude:         fix.Latitude,
		Longitude:        fix.Longitude,
		CapturedAtMillis: now.UnixMilli(),
		DeviceID:         s.deviceID,
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	id, err := s.readings.Append(writeCtx, reading)
	cancel()
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
		s.metrics.StoreFailed()
		s.bump(func(st *SamplingStats) { st.StoreErrors++ })
		s.logger.Error("store reading failed", "error", err)
		return
	}
	reading.ID = id

	s.metrics.ReadingStored()
	s.bump(func(st *SamplingStats) {
		st.Stored++
		st.LastStoredAt = now
	})
	s.live.Publish(reading)

	s.logger.Debug("reading stored",
		"id", id,
		"latitude", reading.Latitude,
		"longitude", reading.Longitude,
		"captured_at", reading.CapturedAtMillis,
	)
}

// loadSchedule reads the schedule, logging any fallback to defaults.
func (s *SamplingService) loadSchedule(ctx context.Context) model.ScheduleConfig {
	cfg, err := s.schedule.Schedule(ctx)
	if err != nil && ctx.Err() == nil {
		s.logger.Warn("schedule fell back to defaults", "error", err)
	}
	return cfg
}

func (s *SamplingService) bump(f func(*SamplingStats)) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	f(&s.stats)
}

type noopSamplingMetrics struct{}

func (noopSamplingMetrics) FixReceived()   {}
func (noopSamplingMetrics) FixDiscarded()  {}
func (noopSamplingMetrics) ReadingStored() {}
func (noopSamplingMetrics) StoreFailed()   {}
