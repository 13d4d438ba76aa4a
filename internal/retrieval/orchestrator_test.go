package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iasik/orchestrator/internal/checkpoint"
	"github.com/iasik/orchestrator/internal/chunker"
	"github.com/iasik/orchestrator/internal/config"
	"github.com/iasik/orchestrator/internal/embedder"
	"github.com/iasik/orchestrator/internal/models"
	"github.com/iasik/orchestrator/internal/vectordb"
)

func newEngine(t *testing.T) *chunker.Engine {
	t.Helper()
	factory := chunker.NewFactory(config.ChunkingConfig{
		MinTokens: 1, IdealTokens: 50, MaxTokens: 50, OverlapTokens: 5, MergeSmallChunks: false,
	})
	return chunker.NewEngine(factory)
}

func testPlan(projectID string, files ...string) *models.AnalysisPlan {
	plan := &models.AnalysisPlan{ProjectID: projectID}
	for _, f := range files {
		plan.Files = append(plan.Files, models.FileDecision{FilePath: f, Decision: models.DecisionRagChunks})
	}
	return plan
}

func TestIndexProjectEmbedsAndUpsertsRagChunksFiles(t *testing.T) {
	engine := newEngine(t)
	vdb := vectordb.NewHNSWClient()
	store, err := checkpoint.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	o := New(
		Config{Chunking: chunker.Options{MaxChunkTokens: 50, OverlapTokens: 5, MinChunkTokens: 1, StoreChunkText: true}, FilesPerBatch: 10},
		engine, &stubProvider{}, vdb, nil, store, nil, nil, nil, nil,
	)

	content := "package demo\n\nfunc Hello() string {\n\treturn \"hi\"\n}\n"
	plan := testPlan("proj-1", "main.go")
	load := func(path string) (string, error) { return content, nil }

	result, err := o.IndexProject(context.Background(), "proj-1", plan, load)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesProcessed)
	assert.Greater(t, result.ChunksCreated, 0)
	assert.Equal(t, result.ChunksCreated, result.EmbeddingsGenerated)
	assert.Empty(t, result.Errors)

	cp, err := store.Get(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobCompletedStat, cp.Status)
}

func TestIndexProjectResumesFromLastProcessedFileIndex(t *testing.T) {
	engine := newEngine(t)
	vdb := vectordb.NewHNSWClient()
	store, err := checkpoint.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	o := New(
		Config{Chunking: chunker.Options{MaxChunkTokens: 50, OverlapTokens: 5, MinChunkTokens: 1, StoreChunkText: true}, FilesPerBatch: 1},
		engine, &stubProvider{}, vdb, nil, store, nil, nil, nil, nil,
	)

	load := func(path string) (string, error) { return "package demo\n\nfunc F() {}\n", nil }
	plan := testPlan("proj-2", "a.go", "b.go")

	first, err := o.IndexProject(context.Background(), "proj-2", plan, load)
	require.NoError(t, err)
	assert.Equal(t, 2, first.FilesProcessed)

	// A second run against the same (now-completed) checkpoint starts a
	// fresh resume cycle; LastProcessedFileIndex was left at len(targets)
	// by the first run, so nothing new gets (re-)processed.
	second, err := o.IndexProject(context.Background(), "proj-2", plan, load)
	require.NoError(t, err)
	assert.Equal(t, 0, second.FilesProcessed)
}

func TestIndexProjectDoesNotDedupeDistinctFilesWithinABatch(t *testing.T) {
	engine := newEngine(t)
	vdb := vectordb.NewHNSWClient()
	store, err := checkpoint.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	o := New(
		Config{Chunking: chunker.Options{MaxChunkTokens: 50, OverlapTokens: 5, MinChunkTokens: 1, StoreChunkText: true}, FilesPerBatch: 10},
		engine, &stubProvider{}, vdb, nil, store, nil, nil, nil, nil,
	)

	// Two distinct files with byte-identical content produce chunks that
	// hash differently because ChunkHash incorporates FilePath, so this
	// only verifies no spurious dedup across distinct files.
	content := "package demo\n\nfunc F() {}\n"
	load := func(path string) (string, error) { return content, nil }
	plan := testPlan("proj-3", "a.go", "b.go")

	result, err := o.IndexProject(context.Background(), "proj-3", plan, load)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ChunksSkipped)
}

func TestRagChunkFilesOrdersHighRiskFirst(t *testing.T) {
	plan := &models.AnalysisPlan{
		ProjectID: "proj-4",
		Files: []models.FileDecision{
			{FilePath: "z_low.go", Decision: models.DecisionRagChunks},
			{FilePath: "auth.go", Decision: models.DecisionRagChunks, IsHighRisk: true, RiskScore: 0.9},
			{FilePath: "skip.go", Decision: models.DecisionSkipped, IsHighRisk: true, RiskScore: 0.99},
			{FilePath: "payments.go", Decision: models.DecisionRagChunks, IsHighRisk: true, RiskScore: 0.95},
			{FilePath: "a_low.go", Decision: models.DecisionRagChunks},
		},
	}

	ordered := ragChunkFiles(plan)
	require.Len(t, ordered, 4)
	assert.Equal(t, []string{"payments.go", "auth.go", "z_low.go", "a_low.go"},
		[]string{ordered[0].FilePath, ordered[1].FilePath, ordered[2].FilePath, ordered[3].FilePath})
}

// stubProvider is a minimal embedder.Provider for tests that don't care
// about vector content, only that embedding happened once per chunk.
type stubProvider struct{ calls int }

func (s *stubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}

func (s *stubProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func (s *stubProvider) ModelInfo() embedder.ModelInfo    { return embedder.ModelInfo{Provider: "stub", Dimensions: 4} }
func (s *stubProvider) Health(ctx context.Context) error { return nil }
func (s *stubProvider) Close() error                     { return nil }
