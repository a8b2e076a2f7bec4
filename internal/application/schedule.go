// Package application contains use-case orchestration services.
package application

import (
	"time"

	"github.com/geotrack/geotrack/internal/domain/model"
)

// IsActiveNow reports whether a fix taken at now may be persisted under cfg.
// It is a pure function: the day of week and hour:minute are read from now
// in whatever location now carries, with no timezone conversion.
//
// A window whose start equals its end is a single active minute.
func IsActiveNow(cfg model.ScheduleConfig, now time.Time) bool {
	return cfg.IsActiveAt(now)
}
