package observability

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/disk"
	"github.com/shirou/gopsutil/mem"
)

// ResourceMonitor periodically samples the host: free space under the work
// root and system memory. Transfers stage up to 2GB files on local disk,
// so a full volume is the most likely way for the relay to degrade.
type ResourceMonitor struct {
	log      *slog.Logger
	workRoot string
	interval time.Duration

	// LowDiskBytes is the free-space floor below which the monitor warns.
	LowDiskBytes uint64

	lowDisk atomic.Bool
}

func NewResourceMonitor(log *slog.Logger, workRoot string, interval time.Duration, lowDiskBytes uint64) *ResourceMonitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ResourceMonitor{
		log:          log,
		workRoot:     workRoot,
		interval:     interval,
		LowDiskBytes: lowDiskBytes,
	}
}

// LowDisk reports whether the last sample saw free space under the floor.
func (m *ResourceMonitor) LowDisk() bool {
	return m.lowDisk.Load()
}

func (m *ResourceMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.sample()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *ResourceMonitor) sample() {
	usage, err := disk.Usage(m.workRoot)
	if err != nil {
		m.log.Warn("Disk sample failed", "path", m.workRoot, "error", err)
	} else {
		low := m.LowDiskBytes > 0 && usage.Free < m.LowDiskBytes
		m.lowDisk.Store(low)
		if low {
			m.log.Warn("Low disk space under work root",
				"path", m.workRoot, "free", usage.Free, "floor", m.LowDiskBytes)
		} else {
			m.log.Debug("Disk sample", "path", m.workRoot, "free", usage.Free, "used_percent", usage.UsedPercent)
		}
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		m.log.Warn("Memory sample failed", "error", err)
		return
	}
	m.log.Debug("Memory sample", "used_percent", vm.UsedPercent, "available", vm.Available)
}
