package embedder

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/time/rate"

	"github.com/iasik/orchestrator/internal/concurrency"
	"github.com/iasik/orchestrator/internal/resilience"
)

// DefaultBatchSize is the bound spec.md §4.3 names for embedding sub-batches.
const DefaultBatchSize = 16

// Resilient wraps a Provider with the concerns spec.md §9 says should be
// composed at construction time rather than via subclassing: batch-size
// bounding, L2 normalization of returned vectors, rate limiting, the
// Embedding resilience pipeline, and the Embedding concurrency slot.
type Resilient struct {
	inner     Provider
	batchSize int
	limiter   *rate.Limiter
	pipeline  *resilience.Pipeline
	slot      *concurrency.Slot
}

// ResilientOption configures a Resilient wrapper.
type ResilientOption func(*Resilient)

func WithBatchSize(n int) ResilientOption {
	return func(r *Resilient) { r.batchSize = n }
}

func WithRateLimit(rps float64, burst int) ResilientOption {
	return func(r *Resilient) { r.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

func WithPipeline(p *resilience.Pipeline) ResilientOption {
	return func(r *Resilient) { r.pipeline = p }
}

func WithSlot(s *concurrency.Slot) ResilientOption {
	return func(r *Resilient) { r.slot = s }
}

// NewResilient wraps inner.
func NewResilient(inner Provider, opts ...ResilientOption) *Resilient {
	r := &Resilient{
		inner:     inner,
		batchSize: DefaultBatchSize,
		pipeline:  resilience.DefaultRegistry().Embedding,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Resilient) ModelInfo() ModelInfo           { return r.inner.ModelInfo() }
func (r *Resilient) Health(ctx context.Context) error { return r.inner.Health(ctx) }
func (r *Resilient) Close() error                   { return r.inner.Close() }

// Embed embeds a single text under the slot, rate limiter, and pipeline,
// L2-normalizing the result.
func (r *Resilient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := r.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in sub-batches of at most batchSize, each
// gated by the Embedding slot, rate limiter, and resilience pipeline;
// every returned vector is L2-normalized.
func (r *Resilient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += r.batchSize {
		end := start + r.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		sub := texts[start:end]

		if r.slot != nil {
			if err := r.slot.Acquire(ctx); err != nil {
				return nil, err
			}
		}

		var vectors [][]float32
		pipelineErr := r.pipeline.Do(ctx, func(pctx context.Context, attempt int) error {
			if r.limiter != nil {
				if err := r.limiter.Wait(pctx); err != nil {
					return err
				}
			}
			v, embedErr := r.inner.EmbedBatch(pctx, sub)
			if embedErr != nil {
				return embedErr
			}
			vectors = v
			return nil
		})

		if r.slot != nil {
			r.slot.Release()
		}
		if pipelineErr != nil {
			return nil, pipelineErr
		}
		if len(vectors) != len(sub) {
			return nil, fmt.Errorf("embedder: expected %d vectors, got %d", len(sub), len(vectors))
		}
		for _, v := range vectors {
			out = append(out, normalize(v))
		}
	}
	return out, nil
}

// normalize returns an L2-normalized copy of v, satisfying the |‖v‖-1| <= 1e-3
// invariant; a zero vector is returned unchanged.
func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
