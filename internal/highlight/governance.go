package highlight

import (
	"context"
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/process"

	"contentcore/internal/observability"
)

// Governor polls CPU and RSS and gates pipeline advancement: WaitUntilSafe
// blocks between stages while either resource is above its limit.
type Governor struct {
	MaxCPUPercent float64
	MaxMemoryMB   float64
	PollInterval  time.Duration
	NicePriority  int

	metrics *observability.Metrics
	proc    *process.Process
}

// NewGovernor builds a governor for the current process.
func NewGovernor(tuning GovernanceTuning, metrics *observability.Metrics) *Governor {
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &Governor{
		MaxCPUPercent: float64(tuning.MaxCPUPercent),
		MaxMemoryMB:   float64(tuning.MaxMemoryMB),
		PollInterval:  time.Duration(tuning.PollInterval) * time.Second,
		NicePriority:  tuning.NicePriority,
		metrics:       metrics,
		proc:          proc,
	}
}

// ApplyNice lowers the scheduling priority of the process. Best effort.
func (g *Governor) ApplyNice() {
	if err := syscall.Setpriority(syscall.PRIO_PROCESS, 0, g.NicePriority); err != nil {
		log.Warn().Err(err).Int("nice", g.NicePriority).Msg("could not set nice priority")
		return
	}
	log.Info().Int("nice", g.NicePriority).Msg("applied nice priority")
}

// CheckOnce samples resources and reports whether throttling is needed.
func (g *Governor) CheckOnce(ctx context.Context) bool {
	cpuPct := 0.0
	if pcts, err := cpu.PercentWithContext(ctx, time.Second, false); err == nil && len(pcts) > 0 {
		cpuPct = pcts[0]
	}
	memMB := 0.0
	if g.proc != nil {
		if mem, err := g.proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
			memMB = float64(mem.RSS) / (1024 * 1024)
		}
	}

	g.metrics.CPUPercent.Set(cpuPct)
	g.metrics.MemoryMB.Set(memMB)

	if cpuPct > g.MaxCPUPercent || memMB > g.MaxMemoryMB {
		log.Warn().
			Float64("cpu", cpuPct).Float64("maxCpu", g.MaxCPUPercent).
			Float64("memMb", memMB).Float64("maxMemMb", g.MaxMemoryMB).
			Msg("resource limit breached")
		g.metrics.ThrottleCount.Inc()
		return true
	}
	return false
}

// WaitUntilSafe blocks until both resources are back under their limits or
// the context is cancelled.
func (g *Governor) WaitUntilSafe(ctx context.Context) error {
	for g.CheckOnce(ctx) {
		log.Info().Dur("wait", g.PollInterval).Msg("throttling until resources free up")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.PollInterval):
		}
	}
	return ctx.Err()
}
