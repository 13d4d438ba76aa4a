package vectordb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePoint(id, projectID string, v []float32) Point {
	return Point{
		ID:     id,
		Vector: v,
		Payload: Payload{
			ProjectID: projectID,
			FilePath:  "a.go",
			Language:  "go",
		},
	}
}

func TestHNSWUpsertSearchRoundTrip(t *testing.T) {
	c := NewHNSWClient()
	ctx := context.Background()
	require.NoError(t, c.EnsureCollection(ctx, 3))

	require.NoError(t, c.Upsert(ctx, []Point{
		samplePoint("p1", "proj-a", []float32{1, 0, 0}),
		samplePoint("p2", "proj-a", []float32{0, 1, 0}),
		samplePoint("p3", "proj-b", []float32{1, 0, 0}),
	}))

	results, err := c.Search(ctx, SearchQuery{
		Vector: []float32{1, 0, 0},
		TopK:   5,
		Filter: Filter{ProjectID: "proj-a"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "p1", results[0].ID)
}

func TestHNSWSearchRespectsProjectScoping(t *testing.T) {
	c := NewHNSWClient()
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx, []Point{
		samplePoint("p1", "proj-a", []float32{1, 0}),
		samplePoint("p2", "proj-b", []float32{1, 0}),
	}))

	results, err := c.Search(ctx, SearchQuery{
		Vector: []float32{1, 0},
		TopK:   10,
		Filter: Filter{ProjectID: "proj-b"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p2", results[0].ID)
}

func TestHNSWDeleteAndCount(t *testing.T) {
	c := NewHNSWClient()
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx, []Point{
		samplePoint("p1", "proj-a", []float32{1, 0}),
		samplePoint("p2", "proj-a", []float32{0, 1}),
		samplePoint("p3", "proj-b", []float32{1, 1}),
	}))

	n, err := c.Count(ctx, "proj-a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	total, err := c.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	require.NoError(t, c.Delete(ctx, []string{"p1"}))
	n, err = c.Count(ctx, "proj-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestHNSWDeleteByFilterScopesToProject(t *testing.T) {
	c := NewHNSWClient()
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx, []Point{
		samplePoint("p1", "proj-a", []float32{1, 0}),
		samplePoint("p2", "proj-b", []float32{0, 1}),
	}))

	require.NoError(t, c.DeleteByFilter(ctx, Filter{ProjectID: "proj-a"}))

	total, err := c.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	remaining, err := c.Search(ctx, SearchQuery{Vector: []float32{0, 1}, TopK: 5})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "p2", remaining[0].ID)
}

func TestHNSWScoreThresholdFiltersLowMatches(t *testing.T) {
	c := NewHNSWClient()
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx, []Point{
		samplePoint("near", "proj-a", []float32{1, 0}),
		samplePoint("far", "proj-a", []float32{-1, 0}),
	}))

	results, err := c.Search(ctx, SearchQuery{
		Vector:         []float32{1, 0},
		TopK:           5,
		ScoreThreshold: 0.5,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "near", results[0].ID)
}
