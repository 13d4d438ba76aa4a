package watchdog

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		CheckIntervalSeconds:        1,
		MaxHeartbeatIntervalSeconds: 0,
		MaxProjectDurationSeconds:   3600,
		StuckDetectionThreshold:     2,
		AutoCancelStuck:             true,
	}
}

func TestHeartbeatResetsStuckObservationCounter(t *testing.T) {
	w := New(testConfig(), nil, nil)
	w.Register("proj-1", func() {})

	w.mu.Lock()
	w.entries["proj-1"].stuckObservations = 1
	w.mu.Unlock()

	w.Heartbeat("proj-1", "chunking")

	w.mu.Lock()
	obs := w.entries["proj-1"].stuckObservations
	w.mu.Unlock()
	assert.Equal(t, 0, obs)
}

func TestScanDetectsStuckAfterThresholdObservations(t *testing.T) {
	cfg := testConfig()
	cfg.MaxHeartbeatIntervalSeconds = 0 // every project is immediately "stale"
	var cancelled int32
	w := New(cfg, nil, nil)
	w.Register("proj-1", func() { atomic.AddInt32(&cancelled, 1) })

	// Back-date the heartbeat so the elapsed check trips.
	w.mu.Lock()
	w.entries["proj-1"].lastHeartbeatAt = time.Now().Add(-time.Hour)
	w.mu.Unlock()

	w.scan()
	assert.True(t, w.IsRegistered("proj-1"), "should not cancel before reaching the threshold")
	assert.Equal(t, int32(0), atomic.LoadInt32(&cancelled))

	w.scan()
	assert.False(t, w.IsRegistered("proj-1"), "should cancel once threshold observations reached")
	assert.Equal(t, int32(1), atomic.LoadInt32(&cancelled))
}

func TestAutoCancelStuckFalseLogsOnlyNeverCancels(t *testing.T) {
	cfg := testConfig()
	cfg.AutoCancelStuck = false
	var cancelled int32
	w := New(cfg, nil, nil)
	w.Register("proj-1", func() { atomic.AddInt32(&cancelled, 1) })

	w.mu.Lock()
	w.entries["proj-1"].lastHeartbeatAt = time.Now().Add(-time.Hour)
	w.mu.Unlock()

	for i := 0; i < 5; i++ {
		w.scan()
	}

	assert.True(t, w.IsRegistered("proj-1"))
	assert.Equal(t, int32(0), atomic.LoadInt32(&cancelled))
}

func TestCompleteRemovesProjectFromTracking(t *testing.T) {
	w := New(testConfig(), nil, nil)
	w.Register("proj-1", func() {})
	require.True(t, w.IsRegistered("proj-1"))

	w.Complete("proj-1")
	assert.False(t, w.IsRegistered("proj-1"))

	// Heartbeat after Complete is a no-op, not a panic.
	w.Heartbeat("proj-1", "chunking")
}

func TestHealthyProjectIsNeverFlaggedStuck(t *testing.T) {
	cfg := testConfig()
	cfg.MaxHeartbeatIntervalSeconds = 120
	cfg.MaxProjectDurationSeconds = 600
	var cancelled int32
	w := New(cfg, nil, nil)
	w.Register("proj-1", func() { atomic.AddInt32(&cancelled, 1) })
	w.Heartbeat("proj-1", "embedding")

	for i := 0; i < 3; i++ {
		w.scan()
	}

	assert.True(t, w.IsRegistered("proj-1"))
	assert.Equal(t, int32(0), atomic.LoadInt32(&cancelled))
}
