package llm

import (
	"math"
	"time"
)

// TimeoutStrategy mirrors the Configuration Surface's TimeoutStrategy
// section (spec.md §6), including the open-question resolution: when
// UseAdaptiveTimeout is false, an explicit StaticTimeoutSeconds (if
// non-zero) is honored before falling back to MaxTimeoutSeconds.
type TimeoutStrategy struct {
	BaseTimeoutSeconds         float64
	PerTokenTimeoutMs          float64
	MinTimeoutSeconds          float64
	MaxTimeoutSeconds          float64
	StreamingTimeoutMultiplier float64
	RetryTimeoutMultiplier     float64
	EnableGracefulDegradation  bool
	EnableConnectionPooling    bool
	KeepAliveTimeoutSeconds    float64
	UseAdaptiveTimeout         bool
	StaticTimeoutSeconds       float64 // 0 means unset
}

// DefaultTimeoutStrategy mirrors spec.md §6's defaults.
func DefaultTimeoutStrategy() TimeoutStrategy {
	return TimeoutStrategy{
		BaseTimeoutSeconds:         60,
		PerTokenTimeoutMs:          10.0,
		MinTimeoutSeconds:          30,
		MaxTimeoutSeconds:          600,
		StreamingTimeoutMultiplier: 1.5,
		RetryTimeoutMultiplier:     1.2,
		EnableGracefulDegradation:  true,
		EnableConnectionPooling:    true,
		KeepAliveTimeoutSeconds:    300,
		UseAdaptiveTimeout:         true,
	}
}

// AdaptiveTimeout implements the central timeout contract from
// spec.md §4.4:
//
//	timeout_s = clamp(Base + MaxTokens*PerTokenMs/1000, Min, Max)
//
// then multiplied by StreamingTimeoutMultiplier when streaming, and by
// RetryTimeoutMultiplier^retryIndex per retry attempt.
func (t TimeoutStrategy) AdaptiveTimeout(maxTokens int, streaming bool, retryIndex int) time.Duration {
	var base float64
	if !t.UseAdaptiveTimeout {
		if t.StaticTimeoutSeconds > 0 {
			base = t.StaticTimeoutSeconds
		} else {
			base = t.MaxTimeoutSeconds
		}
	} else {
		computed := t.BaseTimeoutSeconds + float64(maxTokens)*t.PerTokenTimeoutMs/1000
		base = clamp(computed, t.MinTimeoutSeconds, t.MaxTimeoutSeconds)
	}

	result := base
	if streaming {
		result *= t.StreamingTimeoutMultiplier
	}
	if retryIndex > 0 {
		result *= math.Pow(t.RetryTimeoutMultiplier, float64(retryIndex))
	}
	return time.Duration(result * float64(time.Second))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
