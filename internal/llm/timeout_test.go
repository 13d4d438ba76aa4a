package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func s4Strategy() TimeoutStrategy {
	return TimeoutStrategy{
		BaseTimeoutSeconds:         60,
		PerTokenTimeoutMs:          10.0,
		MinTimeoutSeconds:          30,
		MaxTimeoutSeconds:          600,
		StreamingTimeoutMultiplier: 1.5,
		RetryTimeoutMultiplier:     1.2,
		UseAdaptiveTimeout:         true,
	}
}

func TestAdaptiveTimeoutScenarioS4(t *testing.T) {
	strat := s4Strategy()

	assert.Equal(t, 61*time.Second, strat.AdaptiveTimeout(100, false, 0))

	got := strat.AdaptiveTimeout(2048, false, 0)
	assert.InDelta(t, 80.48, got.Seconds(), 0.01)

	assert.Equal(t, 600*time.Second, strat.AdaptiveTimeout(100_000, false, 0))

	streaming := strat.AdaptiveTimeout(100, true, 0)
	assert.InDelta(t, 91.5, streaming.Seconds(), 0.01)
}

func TestAdaptiveTimeoutMonotonicInMaxTokens(t *testing.T) {
	strat := s4Strategy()
	prev := time.Duration(0)
	for _, mt := range []int{0, 10, 100, 1000, 10000, 100000} {
		got := strat.AdaptiveTimeout(mt, false, 0)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}

func TestAdaptiveTimeoutBoundedByLaw(t *testing.T) {
	strat := s4Strategy()
	for retryIdx := 0; retryIdx < 4; retryIdx++ {
		got := strat.AdaptiveTimeout(5000, true, retryIdx)
		min := time.Duration(strat.MinTimeoutSeconds * float64(time.Second))
		max := time.Duration(strat.MaxTimeoutSeconds * strat.StreamingTimeoutMultiplier * pow(strat.RetryTimeoutMultiplier, retryIdx) * float64(time.Second))
		assert.GreaterOrEqual(t, got, min)
		assert.LessOrEqual(t, got, max)
	}
}

func pow(base float64, exp int) float64 {
	r := 1.0
	for i := 0; i < exp; i++ {
		r *= base
	}
	return r
}

func TestStaticTimeoutPrecedence(t *testing.T) {
	strat := s4Strategy()
	strat.UseAdaptiveTimeout = false
	strat.StaticTimeoutSeconds = 45
	assert.Equal(t, 45*time.Second, strat.AdaptiveTimeout(9999, false, 0))

	strat.StaticTimeoutSeconds = 0
	assert.Equal(t, strat.MaxTimeoutSeconds, strat.AdaptiveTimeout(9999, false, 0).Seconds())
}
