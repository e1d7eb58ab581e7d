package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hostwatch/hostwatch/internal/types"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

const (
	defaultCPUInterval = time.Second
	defaultDiskPath    = "/"
)

// ErrSamplingFailed is returned when no resource at all could be read.
var ErrSamplingFailed = errors.New("sampling failed for every resource")

// Sampler reads host utilization
type Sampler interface {
	Sample(ctx context.Context) (types.ResourceSnapshot, error)
	TopProcesses(ctx context.Context, n int) ([]types.ProcessInfo, error)
}

// probe reads one percentage
type probe func(ctx context.Context) (float64, error)

// HostSampler samples the local host through gopsutil
type HostSampler struct {
	diskPath    string
	cpuInterval time.Duration
	logger      zerolog.Logger

	probes map[types.ResourceKind]probe
	now    func() time.Time
}

// NewHostSampler creates a sampler reading disk usage for diskPath
func NewHostSampler(diskPath string, logger zerolog.Logger) *HostSampler {
	if diskPath == "" {
		diskPath = defaultDiskPath
	}
	s := &HostSampler{
		diskPath:    diskPath,
		cpuInterval: defaultCPUInterval,
		logger:      logger.With().Str("component", "sampler").Logger(),
		now:         time.Now,
	}
	s.probes = map[types.ResourceKind]probe{
		types.CPU:    s.cpuPercent,
		types.Memory: memoryPercent,
		types.Swap:   swapPercent,
		types.Disk:   s.diskPercent,
	}
	return s
}

// Sample reads all four resources. A resource that cannot be read is set to
// types.Unavailable; ErrSamplingFailed is returned only if none could be read.
func (s *HostSampler) Sample(ctx context.Context) (types.ResourceSnapshot, error) {
	snap := types.ResourceSnapshot{
		CPU:    types.Unavailable,
		Memory: types.Unavailable,
		Swap:   types.Unavailable,
		Disk:   types.Unavailable,
	}

	for _, kind := range types.AllKinds {
		value, err := s.probes[kind](ctx)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("resource", kind.Key()).
				Msg("Failed to sample resource")
			continue
		}
		switch kind {
		case types.CPU:
			snap.CPU = value
		case types.Memory:
			snap.Memory = value
		case types.Swap:
			snap.Swap = value
		case types.Disk:
			snap.Disk = value
		}
	}
	snap.Timestamp = s.now()

	if snap.Empty() {
		return snap, ErrSamplingFailed
	}

	s.logger.Debug().
		Float64("cpu", snap.CPU).
		Float64("memory", snap.Memory).
		Float64("swap", snap.Swap).
		Float64("disk", snap.Disk).
		Msg("Resources sampled")
	return snap, nil
}

func (s *HostSampler) cpuPercent(ctx context.Context) (float64, error) {
	percents, err := cpu.PercentWithContext(ctx, s.cpuInterval, false)
	if err != nil {
		return 0, fmt.Errorf("cpu percent: %w", err)
	}
	if len(percents) == 0 {
		return 0, fmt.Errorf("cpu percent: no data")
	}
	return percents[0], nil
}

func memoryPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("virtual memory: %w", err)
	}
	return vm.UsedPercent, nil
}

func swapPercent(ctx context.Context) (float64, error) {
	sw, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("swap memory: %w", err)
	}
	// hosts without swap report zero usage
	return sw.UsedPercent, nil
}

func (s *HostSampler) diskPercent(ctx context.Context) (float64, error) {
	usage, err := disk.UsageWithContext(ctx, s.diskPath)
	if err != nil {
		return 0, fmt.Errorf("disk usage %s: %w", s.diskPath, err)
	}
	return usage.UsedPercent, nil
}

// TopProcesses returns the n processes using the most memory. Processes that
// exit or deny access while being inspected are skipped.
func (s *HostSampler) TopProcesses(ctx context.Context, n int) ([]types.ProcessInfo, error) {
	if n <= 0 {
		return nil, nil
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	infos := make([]types.ProcessInfo, 0, len(procs))
	for _, p := range procs {
		memPct, err := p.MemoryPercentWithContext(ctx)
		if err != nil {
			continue
		}
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		cpuPct, _ := p.CPUPercentWithContext(ctx)
		infos = append(infos, types.ProcessInfo{
			PID:           p.Pid,
			Name:          name,
			MemoryPercent: memPct,
			CPUPercent:    cpuPct,
		})
	}

	sortProcesses(infos)
	if len(infos) > n {
		infos = infos[:n]
	}
	return infos, nil
}

func sortProcesses(infos []types.ProcessInfo) {
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].MemoryPercent > infos[j].MemoryPercent
	})
}

// Hostname returns the host name reported by the OS
func Hostname(ctx context.Context) (string, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("host info: %w", err)
	}
	return info.Hostname, nil
}
