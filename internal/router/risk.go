package router

import (
	"context"

	"github.com/iasik/orchestrator/internal/embedder"
	"github.com/iasik/orchestrator/internal/vectordb"
)

// RiskScorer computes a RiskScore in [0, 1] for a file's content. The
// router marks a file IsHighRisk when the score is at least
// Config.RiskThreshold.
type RiskScorer interface {
	Score(ctx context.Context, filePath string, content []byte) (float64, error)
}

// NoopRiskScorer always returns 0, used when no risk fingerprint
// collection has been configured; every file is then treated as
// non-high-risk and the plan keeps stable FilePath order.
type NoopRiskScorer struct{}

func (NoopRiskScorer) Score(ctx context.Context, filePath string, content []byte) (float64, error) {
	return 0, nil
}

// VectorRiskScorer scores a file by embedding its content and searching
// a fingerprint collection of previously-flagged risky code, taking the
// highest similarity among the top RiskTopK matches as the RiskScore.
type VectorRiskScorer struct {
	Embedder   embedder.Provider
	Store      vectordb.Provider
	TopK       int
	Collection string
}

// NewVectorRiskScorer builds a scorer against the given fingerprint store.
func NewVectorRiskScorer(emb embedder.Provider, store vectordb.Provider, topK int) *VectorRiskScorer {
	if topK <= 0 {
		topK = 20
	}
	return &VectorRiskScorer{Embedder: emb, Store: store, TopK: topK}
}

// Score embeds content and returns the best cosine similarity against
// the fingerprint collection, or 0 if the collection is empty.
func (v *VectorRiskScorer) Score(ctx context.Context, filePath string, content []byte) (float64, error) {
	if v.Embedder == nil || v.Store == nil {
		return 0, nil
	}
	vec, err := v.Embedder.Embed(ctx, string(content))
	if err != nil {
		return 0, err
	}
	results, err := v.Store.Search(ctx, vectordb.SearchQuery{
		Vector: vec,
		TopK:   v.TopK,
		Filter: vectordb.Filter{ProjectID: "risk-fingerprints"},
	})
	if err != nil {
		return 0, err
	}
	var best float32
	for _, r := range results {
		if r.Score > best {
			best = r.Score
		}
	}
	return float64(best), nil
}
