package health

import (
	"context"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// GopsutilProvider implements [StatsProvider] using the host's real
// process and system counters.
type GopsutilProvider struct {
	proc *process.Process
}

// Compile-time assertion that GopsutilProvider implements StatsProvider.
var _ StatsProvider = (*GopsutilProvider)(nil)

// NewGopsutilProvider creates a provider bound to the current process.
func NewGopsutilProvider() (*GopsutilProvider, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("open process handle: %w", err)
	}
	return &GopsutilProvider{proc: proc}, nil
}

// Process samples the relay's own memory, CPU, and thread count.
// CPU percent is measured since the previous call, so the first sample
// reports zero.
func (g *GopsutilProvider) Process(ctx context.Context) (ProcessStats, error) {
	memInfo, err := g.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return ProcessStats{}, fmt.Errorf("process memory: %w", err)
	}
	cpuPct, err := g.proc.CPUPercentWithContext(ctx)
	if err != nil {
		return ProcessStats{}, fmt.Errorf("process cpu: %w", err)
	}
	threads, err := g.proc.NumThreadsWithContext(ctx)
	if err != nil {
		return ProcessStats{}, fmt.Errorf("process threads: %w", err)
	}
	return ProcessStats{
		MemoryMB:   float64(memInfo.RSS) / 1024 / 1024,
		CPUPercent: cpuPct,
		Threads:    int(threads),
	}, nil
}

// System samples host-wide CPU and memory utilization. The CPU sample is
// non-blocking (measured since the previous call).
func (g *GopsutilProvider) System(ctx context.Context) (SystemStats, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return SystemStats{}, fmt.Errorf("system cpu: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return SystemStats{}, fmt.Errorf("system memory: %w", err)
	}
	stats := SystemStats{MemoryPercent: vm.UsedPercent}
	if len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}
	return stats, nil
}
