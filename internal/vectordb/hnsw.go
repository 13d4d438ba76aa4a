// In-memory ANN vector store backed by github.com/coder/hnsw, used for
// local/dev configuration where standing up Qdrant is unwanted.
package vectordb

import (
	"context"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWClient is an in-process Provider backed by a single graph; project
// scoping happens via the stored Payload rather than one graph per
// project, matching how Search filters Qdrant results.
//
// Deletes are lazy: the node stays in the graph but is dropped from
// points, so it can never again satisfy a lookup. Calling graph.Delete
// directly can corrupt the graph when the deleted node was the last one
// added, so membership in points is the only source of truth for what
// is "in" the store.
type HNSWClient struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[string]
	points map[string]Point
}

// NewHNSWClient constructs an empty in-memory store.
func NewHNSWClient() *HNSWClient {
	g := hnsw.NewGraph[string]()
	g.Distance = hnsw.CosineDistance
	return &HNSWClient{
		graph:  g,
		points: make(map[string]Point),
	}
}

// EnsureCollection is a no-op: the graph accepts whatever dimension
// vectors arrive with, there being no schema to pre-declare.
func (h *HNSWClient) EnsureCollection(ctx context.Context, dimensions int) error {
	return nil
}

// Upsert adds or replaces points in the graph.
func (h *HNSWClient) Upsert(ctx context.Context, pts []Point) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range pts {
		h.graph.Add(hnsw.MakeNode(p.ID, p.Vector))
		h.points[p.ID] = p
	}
	return nil
}

// Search runs an approximate k-NN search, then applies Filter and
// ScoreThreshold in-process since hnsw has no native payload filter.
func (h *HNSWClient) Search(ctx context.Context, query SearchQuery) ([]SearchResult, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph.Len() == 0 {
		return []SearchResult{}, nil
	}

	// Over-fetch to compensate for post-filtering and lazily deleted nodes.
	fetch := query.TopK * 4
	if fetch < query.TopK {
		fetch = query.TopK
	}
	neighbors := h.graph.Search(query.Vector, fetch)

	out := make([]SearchResult, 0, query.TopK)
	for _, n := range neighbors {
		p, ok := h.points[n.Key]
		if !ok {
			continue // lazily deleted
		}
		if !matchesFilter(p.Payload, query.Filter) {
			continue
		}
		distance := h.graph.Distance(query.Vector, n.Value)
		score := distanceToScore(distance)
		if score < query.ScoreThreshold {
			continue
		}
		out = append(out, SearchResult{ID: p.ID, Score: score, Payload: p.Payload})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > query.TopK {
		out = out[:query.TopK]
	}
	return out, nil
}

// Delete removes points by id, lazily.
func (h *HNSWClient) Delete(ctx context.Context, ids []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range ids {
		delete(h.points, id)
	}
	return nil
}

// DeleteByFilter removes every point matching filter, lazily.
func (h *HNSWClient) DeleteByFilter(ctx context.Context, filter Filter) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, p := range h.points {
		if matchesFilter(p.Payload, filter) {
			delete(h.points, id)
		}
	}
	return nil
}

// Count returns the number of stored points, optionally scoped to projectID.
func (h *HNSWClient) Count(ctx context.Context, projectID string) (int64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if projectID == "" {
		return int64(len(h.points)), nil
	}
	var n int64
	for _, p := range h.points {
		if p.Payload.ProjectID == projectID {
			n++
		}
	}
	return n, nil
}

// Health always succeeds: there is no external dependency to fail.
func (h *HNSWClient) Health(ctx context.Context) error { return nil }

// Close is a no-op; the graph is garbage collected with the process.
func (h *HNSWClient) Close() error { return nil }

func matchesFilter(p Payload, f Filter) bool {
	if f.ProjectID != "" && p.ProjectID != f.ProjectID {
		return false
	}
	if f.Module != "" && p.Module != f.Module {
		return false
	}
	if f.Language != "" && p.Language != f.Language {
		return false
	}
	if f.SymbolType != "" && p.SymbolType != f.SymbolType {
		return false
	}
	return true
}

// distanceToScore converts cosine distance (0..2) to a similarity score
// in [0, 1], mirroring the corpus's HNSW-backed stores.
func distanceToScore(distance float32) float32 {
	return 1.0 - distance/2.0
}
