package system

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStats is a snapshot of the machine an export ran on.
type HostStats struct {
	CPUModel    string
	LogicalCPUs int
	CPUPercent  float64
	MemTotal    uint64
	MemUsed     uint64
	MemPercent  float64
	HeapAlloc   uint64
}

// CollectHostStats samples CPU and memory usage. Fields that cannot be read
// on this platform stay zero.
func CollectHostStats(ctx context.Context) HostStats {
	var s HostStats

	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		s.CPUModel = infos[0].ModelName
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		s.LogicalCPUs = n
	}
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.MemTotal = vm.Total
		s.MemUsed = vm.Used
		s.MemPercent = vm.UsedPercent
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.HeapAlloc = ms.HeapAlloc
	return s
}

// String formats the snapshot for the CLI stats report.
func (s HostStats) String() string {
	return fmt.Sprintf("CPU: %s (%d потоков, %.1f%%), RAM: %s / %s (%.1f%%), heap: %s",
		orUnknown(s.CPUModel), s.LogicalCPUs, s.CPUPercent,
		FormatBytes(s.MemUsed), FormatBytes(s.MemTotal), s.MemPercent, FormatBytes(s.HeapAlloc))
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
