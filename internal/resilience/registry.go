package resilience

import "time"

// Registry holds the four named pipelines spec.md §4.7 requires, one
// per external dependency kind.
type Registry struct {
	LLM         *Pipeline
	Embedding   *Pipeline
	VectorStore *Pipeline
	BlobStorage *Pipeline
}

// DefaultRegistry builds the registry with the defaults spec.md
// describes: LLM uses the adaptive per-call timeout (passed in by
// callers via context, not baked into the pipeline); Embedding has a
// flat 5-minute budget; VectorStore and BlobStorage retry harder for
// network flaps with a 30s per-op timeout.
func DefaultRegistry() *Registry {
	return &Registry{
		LLM: NewPipeline("LLMPipeline",
			RetryConfig{MaxRetries: 3, InitialInterval: 500 * time.Millisecond, MaxInterval: 10 * time.Second},
			BreakerConfig{FailureThreshold: 5, OpenDuration: 30 * time.Second},
			10*time.Minute, // upper bound; actual per-call timeout is adaptive and enforced by the caller's context
		),
		Embedding: NewPipeline("EmbeddingPipeline",
			RetryConfig{MaxRetries: 3, InitialInterval: 250 * time.Millisecond, MaxInterval: 5 * time.Second},
			BreakerConfig{FailureThreshold: 5, OpenDuration: 20 * time.Second},
			5*time.Minute,
		),
		VectorStore: NewPipeline("VectorStorePipeline",
			RetryConfig{MaxRetries: 5, InitialInterval: 200 * time.Millisecond, MaxInterval: 5 * time.Second},
			BreakerConfig{FailureThreshold: 8, OpenDuration: 15 * time.Second},
			30*time.Second,
		),
		BlobStorage: NewPipeline("BlobStoragePipeline",
			RetryConfig{MaxRetries: 5, InitialInterval: 200 * time.Millisecond, MaxInterval: 5 * time.Second},
			BreakerConfig{FailureThreshold: 8, OpenDuration: 15 * time.Second},
			30*time.Second,
		),
	}
}
