package metrics

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Snapshot holds one system metrics sample. A decode over a memory-mapped
// file shows up here as process CPU (inflate + decode) and disk read rate
// (page-ins), which is usually enough to tell whether a run is CPU- or
// I/O-bound.
type Snapshot struct {
	CPUPercent        float64
	ProcessCPUPercent float64
	MemoryUsedGB      float64
	MemoryPercent     float64
	DiskReadMBps      float64
	Timestamp         time.Time
}

// Collector periodically samples and logs system metrics while a decode or
// export is running.
type Collector struct {
	interval time.Duration
	logger   *zap.Logger
	proc     *process.Process

	mu            sync.RWMutex
	last          *Snapshot
	lastDiskStats map[string]disk.IOCountersStat
	lastDiskTime  time.Time
}

// NewCollector creates a collector sampling at the given interval. Intervals
// under one second fall back to 30 seconds.
func NewCollector(interval time.Duration, logger *zap.Logger) *Collector {
	if interval < time.Second {
		interval = 30 * time.Second
	}
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &Collector{
		interval: interval,
		logger:   logger,
		proc:     proc,
	}
}

// Start samples until the context is cancelled. The first sample primes the
// disk baseline and reports zero rates.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect()
	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("metrics collection stopped")
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

// Last returns the most recent sample, or nil before the first one.
func (c *Collector) Last() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

func (c *Collector) collect() {
	s := &Snapshot{Timestamp: time.Now()}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	}
	if c.proc != nil {
		if pct, err := c.proc.Percent(0); err == nil {
			s.ProcessCPUPercent = pct
		}
	}
	if vmem, err := mem.VirtualMemory(); err == nil {
		s.MemoryPercent = vmem.UsedPercent
		s.MemoryUsedGB = float64(vmem.Used) / (1 << 30)
	}
	s.DiskReadMBps = c.diskReadRate(s.Timestamp)

	c.mu.Lock()
	c.last = s
	c.mu.Unlock()

	c.logger.Info("system metrics",
		zap.Float64("sys_cpu", s.CPUPercent),
		zap.Float64("proc_cpu", s.ProcessCPUPercent),
		zap.Float64("mem_pct", s.MemoryPercent),
		zap.String("mem_used", fmt.Sprintf("%.1fGB", s.MemoryUsedGB)),
		zap.String("disk_r", fmt.Sprintf("%.1fMB/s", s.DiskReadMBps)),
	)
}

func (c *Collector) diskReadRate(now time.Time) float64 {
	counters, err := disk.IOCounters()
	if err != nil {
		return 0
	}
	if c.lastDiskStats == nil {
		c.lastDiskStats = counters
		c.lastDiskTime = now
		return 0
	}
	elapsed := now.Sub(c.lastDiskTime).Seconds()
	if elapsed < 0.1 {
		return 0
	}
	var readDelta uint64
	for name, counter := range counters {
		if last, ok := c.lastDiskStats[name]; ok && counter.ReadBytes >= last.ReadBytes {
			readDelta += counter.ReadBytes - last.ReadBytes
		}
	}
	c.lastDiskStats = counters
	c.lastDiskTime = now
	return float64(readDelta) / elapsed / (1 << 20)
}
