package router

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iasik/orchestrator/internal/models"
	"github.com/iasik/orchestrator/internal/tokenizer"
)

func TestDecideBySizeIsDeterministicAndTotal(t *testing.T) {
	cfg := DefaultConfig()

	cases := []struct {
		size int64
		want models.Decision
	}{
		{0, models.DecisionDirectSend},
		{9999, models.DecisionDirectSend},
		{10240, models.DecisionRagChunks},
		{204800, models.DecisionRagChunks},
		{204801, models.DecisionSkipped},
	}
	for _, c := range cases {
		got, _ := DecideBySize(c.size, cfg)
		assert.Equal(t, c.want, got, "size=%d", c.size)

		got2, _ := DecideBySize(c.size, cfg)
		assert.Equal(t, got, got2, "decision must be deterministic for size=%d", c.size)
	}
}

func TestDecideBySizeLargeFileOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowLargeFiles = true

	got, reason := DecideBySize(204801, cfg)
	assert.Equal(t, models.DecisionRagChunks, got)
	assert.Equal(t, ReasonRagChunksOverride, reason)
}

func TestBuildPlanScenarioS2(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "small.txt", 9999)
	writeFile(t, dir, "boundary_low.txt", 10240)
	writeFile(t, dir, "boundary_high.txt", 204800)
	writeFile(t, dir, "too_large.txt", 204801)

	r := New(DefaultConfig(), tokenizer.New(""), nil)
	plan, err := r.BuildPlan(context.Background(), "proj-s2", dir)
	require.NoError(t, err)

	rollup := plan.Rollup()
	assert.Equal(t, 1, rollup.DirectSendCount)
	assert.Equal(t, 2, rollup.RagChunkCount)
	assert.Equal(t, 1, rollup.SkippedCount)
}

func TestBuildPlanHighRiskOrderingIsStable(t *testing.T) {
	plan := &models.AnalysisPlan{
		Files: []models.FileDecision{
			{FilePath: "b.go", IsHighRisk: true, RiskScore: 0.9},
			{FilePath: "a.go", IsHighRisk: true, RiskScore: 0.9},
			{FilePath: "c.go", IsHighRisk: false},
		},
	}
	ordered := plan.OrderByRisk()
	require.Len(t, ordered, 3)
	assert.Equal(t, "a.go", ordered[0].FilePath)
	assert.Equal(t, "b.go", ordered[1].FilePath)
	assert.Equal(t, "c.go", ordered[2].FilePath)
}

func TestEstimateExcludesSkippedFromTokenEstimate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ok.txt", 100)
	writeFile(t, dir, "too_large.txt", 204801)

	r := New(DefaultConfig(), tokenizer.New(""), nil)
	est, err := r.EstimateRoot(dir)
	require.NoError(t, err)

	assert.Equal(t, 1, est.DirectSendCount)
	assert.Equal(t, 1, est.SkippedCount)
	assert.Equal(t, 100/bytesPerTokenEstimate, est.EstimatedTokens)
}

func writeFile(t *testing.T, dir, name string, size int) {
	t.Helper()
	content := make([]byte, size)
	for i := range content {
		content[i] = 'a'
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), content, 0o644))
}
