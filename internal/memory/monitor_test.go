package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThresholdsDeriveFromCurrentUsage(t *testing.T) {
	m := New(Config{MaxWorkerMemoryMB: 100, WarningThresholdPercent: 80, PauseThresholdPercent: 90, CheckIntervalSeconds: 1}, nil)

	m.currentMB = 50
	assert.False(t, m.IsMemoryWarning())
	assert.False(t, m.ShouldPauseProcessing())

	m.currentMB = 85
	assert.True(t, m.IsMemoryWarning())
	assert.False(t, m.ShouldPauseProcessing())

	m.currentMB = 95
	assert.True(t, m.IsMemoryWarning())
	assert.True(t, m.ShouldPauseProcessing())
}

func TestMemoryUsagePercentZeroMax(t *testing.T) {
	m := New(Config{MaxWorkerMemoryMB: 0}, nil)
	assert.Equal(t, float64(0), m.MemoryUsagePercent())
}
