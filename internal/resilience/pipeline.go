// Package resilience composes named retry -> circuit-breaker -> timeout
// pipelines for every external dependency the orchestrator calls
// through, per the resilience layer design.
package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/iasik/orchestrator/internal/errs"
)

// RetryConfig configures the backoff policy for one pipeline.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// BreakerConfig configures the circuit breaker for one pipeline.
type BreakerConfig struct {
	FailureThreshold int
	OpenDuration     time.Duration
}

// Pipeline is one named retry->breaker->timeout composition (e.g.
// "LLMPipeline", "EmbeddingPipeline").
type Pipeline struct {
	Name    string
	retry   RetryConfig
	breaker *Breaker
	timeout time.Duration
}

// NewPipeline builds a named pipeline.
func NewPipeline(name string, retry RetryConfig, breaker BreakerConfig, timeout time.Duration) *Pipeline {
	return &Pipeline{
		Name:    name,
		retry:   retry,
		breaker: NewBreaker(breaker.FailureThreshold, breaker.OpenDuration),
		timeout: timeout,
	}
}

// retriable marks errors the retry loop should keep retrying. Errors of
// kind SchemaInvalid or Fatal are wrapped as backoff.Permanent so a
// single attempt is charged; every other error, including an
// authentication failure, is retried.
func retriable(err error) bool {
	switch {
	case errs.Kind(err) == "SchemaInvalid":
		return false
	case errs.Kind(err) == "Fatal":
		return false
	default:
		return true
	}
}

// Do runs fn under this pipeline's timeout, breaker, and retry policy.
// fn must itself respect ctx for cancellation. fn's attempt argument is
// the 0-based retry index (0 on the first try), so callers that compute
// a per-retry adaptive timeout can fold it in directly.
func (p *Pipeline) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	if !p.breaker.Allow() {
		return fmt.Errorf("%s: %w", p.Name, errs.ErrCircuitOpen)
	}

	opCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.retry.InitialInterval
	bo.MaxInterval = p.retry.MaxInterval

	attempt := 0
	_, err := backoff.Retry(opCtx, func() (struct{}, error) {
		if opCtx.Err() != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("%s: %w", p.Name, errs.ErrCancelled))
		}
		callErr := fn(opCtx, attempt)
		attempt++
		if callErr == nil {
			return struct{}{}, nil
		}
		if !retriable(callErr) {
			return struct{}{}, backoff.Permanent(callErr)
		}
		return struct{}{}, callErr
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(p.retry.MaxRetries+1)))

	if err != nil {
		p.breaker.RecordFailure(time.Now())
		// A permanent/cancelled exit already carries its own kind
		// (Cancelled, SchemaInvalid, Fatal, ...) — surface it as-is
		// rather than collapsing every error into ExternalUnavailable.
		if errs.Kind(err) != "Unknown" {
			return err
		}
		if opCtx.Err() != nil {
			return fmt.Errorf("%s: %w", p.Name, errs.ErrCancelled)
		}
		return fmt.Errorf("%s: %w", p.Name, errs.ErrExternalUnavailable)
	}
	p.breaker.RecordSuccess()
	return nil
}

// State exposes the breaker state for metrics export.
func (p *Pipeline) State() BreakerState { return p.breaker.State() }
