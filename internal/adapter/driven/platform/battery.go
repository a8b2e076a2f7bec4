package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/distatus/battery"

	"github.com/geotrack/geotrack/internal/domain/model"
)

// ErrNoBattery is returned when the host exposes no battery.
var ErrNoBattery = errors.New("no battery present")

// Battery reports the charge of the first readable battery.
func (p *Probe) Battery(ctx context.Context) (model.BatteryStatus, error) {
	if err := ctx.Err(); err != nil {
		return model.UnknownBattery, err
	}

	batteries, err := battery.GetAll()
	status, serr := batteryStatus(batteries)
	if serr != nil {
		if err != nil {
			return model.UnknownBattery, fmt.Errorf("read battery: %w", err)
		}
		return model.UnknownBattery, serr
	}
	if err != nil {
		p.logger.Debug("battery read partially failed", "error", err)
	}
	return status, nil
}

// batteryStatus picks the first battery with a usable capacity.
func batteryStatus(batteries []*battery.Battery) (model.BatteryStatus, error) {
	for _, b := range batteries {
		if b == nil || b.Full <= 0 {
			continue
		}
		level := int(b.Current / b.Full * 100)
		level = max(0, min(level, 100))

		return model.BatteryStatus{
			LevelPercent: level,
			IsCharging:   b.State.Raw == battery.Charging || b.State.Raw == battery.Full,
		}, nil
	}
	return model.UnknownBattery, ErrNoBattery
}
