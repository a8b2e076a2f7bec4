package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/geotrack/geotrack/internal/domain/model"
	"github.com/geotrack/geotrack/internal/domain/port/driven"
)

const (
	defaultProbeTimeout = 2 * time.Second
	bytesPerGB          = 1024 * 1024 * 1024
)

// TelemetrySources groups the platform probes a snapshot reads. A nil probe
// reports its sentinel.
type TelemetrySources struct {
	Battery driven.BatterySource
	Network driven.NetworkSource
	Storage driven.StorageSource
	Host    driven.HostSource
}

// TelemetryService assembles a DeviceStatus from independent platform
// probes. Nothing is cached; every call reads the platform again.
type TelemetryService struct {
	sources TelemetrySources
	timeout time.Duration
	logger  *slog.Logger
}

// NewTelemetryService creates a TelemetryService. A non-positive timeout
// selects the default per-probe bound.
func NewTelemetryService(sources TelemetrySources, timeout time.Duration, logger *slog.Logger) *TelemetryService {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &TelemetryService{sources: sources, timeout: timeout, logger: logger}
}

// Snapshot reads every probe concurrently. A probe that fails or exceeds the
// timeout contributes its sentinel value; the rest of the snapshot is still
// returned.
func (s *TelemetryService) Snapshot(ctx context.Context) model.DeviceStatus {
	status := model.DeviceStatus{
		Battery: model.UnknownBattery,
		Network: model.UnknownNetwork,
		Storage: model.UnknownStorage,
		Host:    model.UnknownHost,
	}
	errs := make([]error, 4)

	var g errgroup.Group

	g.Go(func() error {
		if s.sources.Battery == nil {
			return nil
		}
		b, err := probe(ctx, s.timeout, s.sources.Battery.Battery)
		if err != nil {
			errs[0] = fmt.Errorf("battery: %w", err)
			return nil
		}
		status.Battery = b
		return nil
	})

	g.Go(func() error {
		if s.sources.Network == nil {
			return nil
		}
		n, err := probe(ctx, s.timeout, s.sources.Network.Network)
		if err != nil {
			errs[1] = fmt.Errorf("network: %w", err)
			return nil
		}
		status.Network = n
		return nil
	})

	g.Go(func() error {
		if s.sources.Storage == nil {
			return nil
		}
		st, err := probe(ctx, s.timeout, func(ctx context.Context) (model.StorageStatus, error) {
			available, total, err := s.sources.Storage.Storage(ctx)
			if err != nil {
				return model.StorageStatus{}, err
			}
			return StorageFromBytes(available, total), nil
		})
		if err != nil {
			errs[2] = fmt.Errorf("storage: %w", err)
			return nil
		}
		status.Storage = st
		return nil
	})

	g.Go(func() error {
		if s.sources.Host == nil {
			return nil
		}
		h, err := probe(ctx, s.timeout, s.sources.Host.Host)
		if err != nil {
			errs[3] = fmt.Errorf("host: %w", err)
			return nil
		}
		status.Host = h
		return nil
	})

	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		s.logger.Warn("device status incomplete",
			"error", fmt.Errorf("%w: %w", model.ErrTelemetryPartial, err))
	}
	return status
}

// StorageFromBytes renders byte counts as gigabytes with two decimals.
func StorageFromBytes(available, total uint64) model.StorageStatus {
	return model.StorageStatus{
		AvailableGB: fmt.Sprintf("%.2f", float64(available)/bytesPerGB),
		TotalGB:     fmt.Sprintf("%.2f", float64(total)/bytesPerGB),
	}
}

// probe runs fn under its own deadline. A probe that ignores its context is
// abandoned once the deadline passes.
func probe[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
