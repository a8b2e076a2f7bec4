package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/geotrack/geotrack/internal/domain/model"
	"github.com/geotrack/geotrack/internal/domain/port/driven"
)

// Keys of the schedule settings in the SettingsStore.
const (
	KeyActiveDays      = "schedule.days"
	KeyStartTime       = "schedule.start"
	KeyEndTime         = "schedule.end"
	KeyIntervalSeconds = "schedule.interval_seconds"
)

// SettingsService reads and writes the collection schedule. Reads never fail
// outright: a missing key takes its default, a malformed value takes its
// default and is reported as model.ErrConfig, and an unreadable store yields
// the full default schedule.
type SettingsService struct {
	store  driven.SettingsStore
	logger *slog.Logger
}

// NewSettingsService creates a SettingsService backed by store.
func NewSettingsService(store driven.SettingsStore, logger *slog.Logger) *SettingsService {
	return &SettingsService{store: store, logger: logger}
}

// Schedule returns the current schedule. The returned config is always
// usable; a non-nil error describes what fell back to defaults.
func (s *SettingsService) Schedule(ctx context.Context) (model.ScheduleConfig, error) {
	cfg := model.DefaultScheduleConfig()

	values, err := s.store.GetAll(ctx)
	if err != nil {
		return cfg, fmt.Errorf("load schedule: %w", err)
	}

	var errs []error

	if v, ok := values[KeyActiveDays]; ok {
		days, err := model.ParseWeekdays(v)
		if err != nil {
			errs = append(errs, err)
		} else {
			cfg.ActiveDays = days
		}
	}

	if v, ok := values[KeyStartTime]; ok {
		h, m, err := model.ParseClock(v)
		if err != nil {
			errs = append(errs, err)
		} else {
			cfg.StartHour, cfg.StartMinute = h, m
		}
	}

	if v, ok := values[KeyEndTime]; ok {
		h, m, err := model.ParseClock(v)
		if err != nil {
			errs = append(errs, err)
		} else {
			cfg.EndHour, cfg.EndMinute = h, m
		}
	}

	if v, ok := values[KeyIntervalSeconds]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			errs = append(errs, fmt.Errorf("%w: interval %q is not a positive integer", model.ErrConfig, v))
		} else {
			cfg.IntervalSeconds = n
		}
	}

	return cfg, errors.Join(errs...)
}

// Save validates cfg and persists every schedule field atomically.
func (s *SettingsService) Save(ctx context.Context, cfg model.ScheduleConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	err := s.store.SetMany(ctx, map[string]string{
		KeyActiveDays:      model.FormatWeekdays(cfg.ActiveDays),
		KeyStartTime:       model.FormatClock(cfg.StartHour, cfg.StartMinute),
		KeyEndTime:         model.FormatClock(cfg.EndHour, cfg.EndMinute),
		KeyIntervalSeconds: strconv.Itoa(cfg.IntervalSeconds),
	})
	if err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}

	s.logger.Info("schedule saved",
		"days", model.FormatWeekdays(cfg.ActiveDays),
		"start", model.FormatClock(cfg.StartHour, cfg.StartMinute),
		"end", model.FormatClock(cfg.EndHour, cfg.EndMinute),
		"interval_seconds", cfg.IntervalSeconds,
	)
	return nil
}
