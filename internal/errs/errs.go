// Package errs defines the sentinel error kinds the orchestrator
// distinguishes in logs and JobCompletion events. Callers should wrap
// these with fmt.Errorf("...: %w", ErrX) and unwrap with errors.Is.
package errs

import "errors"

var (
	// ErrExternalUnavailable marks a transient external failure whose
	// retries have been exhausted.
	ErrExternalUnavailable = errors.New("external dependency unavailable")

	// ErrNonStreamingTimeout marks a non-streaming LLM call that exceeded
	// its adaptive timeout with no partial content to salvage.
	ErrNonStreamingTimeout = errors.New("non-streaming call timed out")

	// ErrStreamingTimeoutPartial marks a streaming call that exceeded its
	// timeout while graceful degradation was disabled. With degradation
	// enabled, the partial content is returned with FinishReason length
	// and no error.
	ErrStreamingTimeoutPartial = errors.New("streaming call timed out with partial content")

	// ErrCircuitOpen is returned when a resilience pipeline's breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrSchemaInvalid marks an agent response that failed finding-schema validation.
	ErrSchemaInvalid = errors.New("finding does not satisfy schema")

	// ErrEvidenceMissing marks a finding discarded pre-persist for lacking evidence.
	ErrEvidenceMissing = errors.New("finding missing required evidence")

	// ErrMemoryPause marks a run halted because the memory monitor's pause
	// threshold was reached.
	ErrMemoryPause = errors.New("paused on resource pressure")

	// ErrCancelled marks cooperative cancellation of a job or sub-operation.
	ErrCancelled = errors.New("operation cancelled")

	// ErrFatal marks an unrecoverable invariant violation or storage corruption.
	ErrFatal = errors.New("fatal error")

	// ErrNotFound is returned by stores when a lookup key does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDeadLettered marks a job that exhausted its retry budget.
	ErrDeadLettered = errors.New("dead lettered")
)

// Kind returns the short errorKind string surfaced on JobCompletion
// events for a given sentinel, matching spec.md §7's enumerated names.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrExternalUnavailable):
		return "ExternalUnavailable"
	case errors.Is(err, ErrNonStreamingTimeout):
		return "NonStreamingTimeout"
	case errors.Is(err, ErrStreamingTimeoutPartial):
		return "StreamingTimeoutWithPartial"
	case errors.Is(err, ErrCircuitOpen):
		return "CircuitOpen"
	case errors.Is(err, ErrSchemaInvalid):
		return "SchemaInvalid"
	case errors.Is(err, ErrEvidenceMissing):
		return "EvidenceMissing"
	case errors.Is(err, ErrMemoryPause):
		return "MemoryPause"
	case errors.Is(err, ErrCancelled):
		return "Cancelled"
	case errors.Is(err, ErrFatal):
		return "Fatal"
	case errors.Is(err, ErrDeadLettered):
		return "DeadLettered"
	default:
		return "Unknown"
	}
}
