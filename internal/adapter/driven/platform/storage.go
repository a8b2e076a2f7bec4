package platform

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
)

// Storage reports free and total bytes of the configured filesystem.
func (p *Probe) Storage(ctx context.Context) (uint64, uint64, error) {
	usage, err := disk.UsageWithContext(ctx, p.storagePath)
	if err != nil {
		return 0, 0, fmt.Errorf("disk usage %s: %w", p.storagePath, err)
	}
	return usage.Free, usage.Total, nil
}
