package platform

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/geotrack/geotrack/internal/domain/model"
)

// modelFiles are read in order; the first non-empty one names the hardware.
var modelFiles = []string{
	"/sys/firmware/devicetree/base/model",
	"/sys/devices/virtual/dmi/id/product_name",
}

// Host describes the operating system and hardware.
func (p *Probe) Host(ctx context.Context) (model.HostInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return model.UnknownHost, fmt.Errorf("host info: %w", err)
	}
	return hostInfo(info, readModel(modelFiles)), nil
}

// DeviceID returns the configured id, else the host's machine id, else its
// hostname.
func (p *Probe) DeviceID(ctx context.Context) (string, error) {
	if p.deviceID != "" {
		return p.deviceID, nil
	}

	id, err := host.HostIDWithContext(ctx)
	if err == nil && strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id), nil
	}
	if err != nil {
		p.logger.Debug("host id unavailable, using hostname", "error", err)
	}

	name, herr := os.Hostname()
	if herr != nil {
		return "", fmt.Errorf("derive device id: %w", herr)
	}
	return name, nil
}

func hostInfo(info *host.InfoStat, hardware string) model.HostInfo {
	out := model.UnknownHost

	if v := strings.TrimSpace(info.Platform + " " + info.PlatformVersion); v != "" {
		out.OSVersion = v
	}
	if info.OS != "" {
		out.Platform = info.OS
	}
	switch {
	case hardware != "":
		out.DeviceModel = hardware
	case info.KernelArch != "":
		out.DeviceModel = info.KernelArch
	}
	return out
}

func readModel(paths []string) string {
	for _, path := range paths {
		b, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if m := strings.TrimSpace(strings.TrimRight(string(b), "\x00")); m != "" {
			return m
		}
	}
	return ""
}
