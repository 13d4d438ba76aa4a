// Package memory samples process RSS and exposes warn/pause thresholds
// gating new work, plus opportunistic and forced GC hooks.
package memory

import (
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries the MemoryManagement section of the configuration surface.
type Config struct {
	MaxWorkerMemoryMB       int
	WarningThresholdPercent float64
	PauseThresholdPercent   float64
	CheckIntervalSeconds    int
}

// DefaultConfig mirrors spec.md §6 MemoryManagement defaults.
func DefaultConfig() Config {
	return Config{
		MaxWorkerMemoryMB:       4096,
		WarningThresholdPercent: 80,
		PauseThresholdPercent:   90,
		CheckIntervalSeconds:    1,
	}
}

// Monitor periodically samples the process's resident set size. It is
// a process-wide singleton with an explicit Start/Stop lifecycle.
type Monitor struct {
	cfg Config

	currentMB int64 // atomic, holds a float64 bit pattern via math.Float64bits would be overkill; store as whole MB

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup

	gauge    prometheus.Gauge
	pctGauge prometheus.Gauge
}

// New builds a Monitor and registers its gauges with reg (pass nil to
// skip registration, e.g. in tests).
func New(cfg Config, reg prometheus.Registerer) *Monitor {
	m := &Monitor{
		cfg:    cfg,
		stopCh: make(chan struct{}),
		gauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orchestrator_memory_rss_mb",
			Help: "Current process RSS in megabytes.",
		}),
		pctGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orchestrator_memory_usage_percent",
			Help: "Current RSS as a percent of MaxWorkerMemoryMB.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.gauge, m.pctGauge)
	}
	return m
}

// Start begins periodic sampling in a background goroutine.
func (m *Monitor) Start() {
	m.sample()
	interval := time.Duration(m.cfg.CheckIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sample()
			case <-m.stopCh:
				return
			}
		}
	}()
}

// Stop halts sampling and waits for the background goroutine to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *Monitor) sample() {
	var rt runtime.MemStats
	runtime.ReadMemStats(&rt)
	// Resident pages come from /proc/self/statm; where that file is not
	// available, the memory the Go runtime obtained from the OS is used.
	mb := int64(rt.Sys / 1024 / 1024)
	if data, err := os.ReadFile("/proc/self/statm"); err == nil {
		if fields := strings.Fields(string(data)); len(fields) > 1 {
			if pages, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
				mb = pages * int64(os.Getpagesize()) / 1024 / 1024
			}
		}
	}
	atomic.StoreInt64(&m.currentMB, mb)
	m.gauge.Set(float64(mb))
	m.pctGauge.Set(m.MemoryUsagePercent())
}

// CurrentMemoryMB returns the most recently sampled RSS, in megabytes.
func (m *Monitor) CurrentMemoryMB() int64 {
	return atomic.LoadInt64(&m.currentMB)
}

// MemoryUsagePercent returns CurrentMemoryMB as a percent of MaxWorkerMemoryMB.
func (m *Monitor) MemoryUsagePercent() float64 {
	if m.cfg.MaxWorkerMemoryMB <= 0 {
		return 0
	}
	return float64(m.CurrentMemoryMB()) / float64(m.cfg.MaxWorkerMemoryMB) * 100
}

// IsMemoryWarning reports whether usage has crossed WarningThresholdPercent.
func (m *Monitor) IsMemoryWarning() bool {
	return m.MemoryUsagePercent() >= m.cfg.WarningThresholdPercent
}

// ShouldPauseProcessing reports whether usage has crossed PauseThresholdPercent.
func (m *Monitor) ShouldPauseProcessing() bool {
	return m.MemoryUsagePercent() >= m.cfg.PauseThresholdPercent
}

// RequestGCIfNeeded runs an opportunistic GC when usage is already in
// the warning band, re-sampling afterward.
func (m *Monitor) RequestGCIfNeeded() {
	if m.IsMemoryWarning() {
		runtime.GC()
		m.sample()
	}
}

// ForceAggressiveGC runs a GC plus a free-memory return to the OS; used
// right before a pause decision to get the most accurate possible
// reading and reclaim as much as is reasonably achievable.
func (m *Monitor) ForceAggressiveGC() {
	runtime.GC()
	debug.FreeOSMemory()
	m.sample()
}
