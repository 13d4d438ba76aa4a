// Package watchdog tracks per-project heartbeats and cancels jobs that
// stop making progress, grounded on the teacher corpus's stall-recovery
// watchdog shape (mutex-guarded registry, logger, stall counter) but
// restructured around a periodic scan loop instead of per-call timeouts.
package watchdog

import (
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries the Watchdog section of the Configuration Surface.
type Config struct {
	CheckIntervalSeconds        int
	MaxHeartbeatIntervalSeconds int
	MaxProjectDurationSeconds   int
	StuckDetectionThreshold     int
	AutoCancelStuck             bool
}

// DefaultConfig mirrors spec.md §4.11's defaults.
func DefaultConfig() Config {
	return Config{
		CheckIntervalSeconds:        30,
		MaxHeartbeatIntervalSeconds: 120,
		MaxProjectDurationSeconds:   600,
		StuckDetectionThreshold:     2,
		AutoCancelStuck:             true,
	}
}

type registration struct {
	cancel            func()
	phase             string
	startedAt         time.Time
	lastHeartbeatAt   time.Time
	stuckObservations int
}

// Watchdog periodically scans registered jobs, cancelling ones that
// have gone quiet or run too long. Disabling it (by never calling
// Start) leaves Register/Heartbeat/Complete as inert bookkeeping, so
// the healthy path never depends on the scan loop running.
type Watchdog struct {
	mu      sync.Mutex
	cfg     Config
	entries map[string]*registration
	logger  *slog.Logger

	stuckCounter    prometheus.Counter
	cancelledCounter prometheus.Counter

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds a Watchdog. Pass nil for reg to skip metrics registration
// (e.g. in tests).
func New(cfg Config, reg prometheus.Registerer, logger *slog.Logger) *Watchdog {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watchdog{
		cfg:     cfg,
		entries: make(map[string]*registration),
		logger:  logger,
		stopCh:  make(chan struct{}),
		stuckCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_watchdog_stuck_total",
			Help: "Number of times a registered job was observed stuck.",
		}),
		cancelledCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orchestrator_watchdog_cancelled_total",
			Help: "Number of jobs the watchdog cancelled as stuck.",
		}),
	}
	if reg != nil {
		reg.MustRegister(w.stuckCounter, w.cancelledCounter)
	}
	return w
}

// Register begins tracking projectID; cancel is invoked if the job is
// later deemed stuck and AutoCancelStuck is set.
func (w *Watchdog) Register(projectID string, cancel func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	w.entries[projectID] = &registration{
		cancel:          cancel,
		startedAt:       now,
		lastHeartbeatAt: now,
	}
}

// Heartbeat records that projectID made progress in phase.
func (w *Watchdog) Heartbeat(projectID, phase string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entries[projectID]
	if !ok {
		return
	}
	e.lastHeartbeatAt = time.Now()
	e.phase = phase
	e.stuckObservations = 0
}

// Complete stops tracking projectID.
func (w *Watchdog) Complete(projectID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entries, projectID)
}

// Start begins the periodic stuck-detection scan in the background.
func (w *Watchdog) Start() {
	interval := time.Duration(w.cfg.CheckIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.scan()
			case <-w.stopCh:
				return
			}
		}
	}()
}

// Stop halts the scan loop and waits for it to exit.
func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// scan runs one stuck-detection pass over every registered job.
func (w *Watchdog) scan() {
	now := time.Now()
	maxHeartbeat := time.Duration(w.cfg.MaxHeartbeatIntervalSeconds) * time.Second
	maxDuration := time.Duration(w.cfg.MaxProjectDurationSeconds) * time.Second

	w.mu.Lock()
	var toCancel []string
	for projectID, e := range w.entries {
		stuck := now.Sub(e.lastHeartbeatAt) > maxHeartbeat || now.Sub(e.startedAt) > maxDuration
		if !stuck {
			e.stuckObservations = 0
			continue
		}

		e.stuckObservations++
		w.stuckCounter.Inc()
		w.logger.Warn("watchdog: job stuck",
			"project", projectID,
			"phase", e.phase,
			"since_heartbeat", now.Sub(e.lastHeartbeatAt),
			"elapsed", now.Sub(e.startedAt),
			"observations", e.stuckObservations,
		)

		if w.cfg.AutoCancelStuck && e.stuckObservations >= w.cfg.StuckDetectionThreshold {
			toCancel = append(toCancel, projectID)
		}
	}

	var cancels []func()
	for _, projectID := range toCancel {
		e := w.entries[projectID]
		cancels = append(cancels, e.cancel)
		delete(w.entries, projectID)
	}
	w.mu.Unlock()

	for i, cancel := range cancels {
		w.cancelledCounter.Inc()
		w.logger.Error("watchdog: cancelling stuck job", "project", toCancel[i])
		if cancel != nil {
			cancel()
		}
	}
}

// IsRegistered reports whether projectID is currently tracked, for tests.
func (w *Watchdog) IsRegistered(projectID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.entries[projectID]
	return ok
}
