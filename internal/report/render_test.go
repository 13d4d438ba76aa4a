package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iasik/orchestrator/internal/models"
)

func TestRenderIncludesHealthScoreAndCounts(t *testing.T) {
	r := &models.Report{
		ID:        "rep-1",
		ProjectID: "proj-1",
		HealthScore: 85,
		Counts:    models.SeverityCounts{High: 1, Low: 2},
		Summary:   "Critical: 0, High: 1, Medium: 0, Low: 2, Info: 0",
	}
	var buf bytes.Buffer
	Render(&buf, r, nil, NoColorStyles())

	out := buf.String()
	assert.Contains(t, out, "85/100")
	assert.Contains(t, out, "Critical: 0, High: 1, Medium: 0, Low: 2, Info: 0")
}

func TestRenderListsFindingsSortedBySeverity(t *testing.T) {
	r := &models.Report{ID: "rep-1", ProjectID: "proj-1"}
	findings := []models.ReviewFinding{
		{FilePath: "a.go", Symbol: "A", Description: "low issue", Severity: models.SeverityLow, Confidence: 0.5},
		{FilePath: "b.go", Symbol: "B", Description: "critical issue", Severity: models.SeverityCritical, Confidence: 0.9},
	}
	var buf bytes.Buffer
	Render(&buf, r, findings, NoColorStyles())

	out := buf.String()
	criticalIdx := bytes.Index(buf.Bytes(), []byte("critical issue"))
	lowIdx := bytes.Index(buf.Bytes(), []byte("low issue"))
	assert.True(t, criticalIdx >= 0 && lowIdx >= 0 && criticalIdx < lowIdx, out)
}

func TestRenderIncludesRecommendations(t *testing.T) {
	r := &models.Report{ID: "rep-1", Recommendations: []string{"use prepared statements"}}
	var buf bytes.Buffer
	Render(&buf, r, nil, NoColorStyles())
	assert.Contains(t, buf.String(), "use prepared statements")
}

func TestRenderSnippetDiffMarksInsertionsAndDeletions(t *testing.T) {
	diff := RenderSnippetDiff("foo := 1", "foo := 2")
	assert.Contains(t, diff, "-1")
	assert.Contains(t, diff, "+2")
}

func TestRenderSnippetDiffEmptyWhenBothEmpty(t *testing.T) {
	assert.Equal(t, "", RenderSnippetDiff("", ""))
}
