package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iasik/orchestrator/internal/errs"
	"github.com/iasik/orchestrator/internal/models"
)

type stubAgent struct {
	name          string
	agentType     string
	minConfidence float64
	categories    []string
	maxFindings   int
	findings      []models.ReviewFinding
	recs          []string
	err           error
}

func (s *stubAgent) Name() string                { return s.name }
func (s *stubAgent) Type() string                 { return s.agentType }
func (s *stubAgent) MinConfidence() float64       { return s.minConfidence }
func (s *stubAgent) AllowedCategories() []string  { return s.categories }
func (s *stubAgent) MaxFindings() int             { return s.maxFindings }
func (s *stubAgent) Analyze(ctx context.Context, projectID, workingDirectory string) ([]models.ReviewFinding, []string, error) {
	return s.findings, s.recs, s.err
}

func finding(category, symbol, desc string, confidence float64, severity models.Severity) models.ReviewFinding {
	return models.ReviewFinding{
		FilePath: "main.go", Symbol: symbol, Category: category,
		Description: desc, Confidence: confidence, Severity: severity,
	}
}

func TestRunFiltersByMinConfidence(t *testing.T) {
	a := &stubAgent{
		name: "security", agentType: "security", minConfidence: 0.5,
		findings: []models.ReviewFinding{
			finding("sec", "F1", "low conf", 0.3, models.SeverityHigh),
			finding("sec", "F2", "high conf", 0.9, models.SeverityHigh),
		},
	}
	o := New([]Agent{a}, nil, nil, nil, nil)
	report, _, err := o.Run(context.Background(), "proj-1", "/work")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Counts.High)
}

func TestRunRestrictsToAllowedCategories(t *testing.T) {
	a := &stubAgent{
		name: "style", agentType: "style", categories: []string{"naming"},
		findings: []models.ReviewFinding{
			finding("naming", "F1", "bad name", 0.9, models.SeverityLow),
			finding("perf", "F2", "slow loop", 0.9, models.SeverityLow),
		},
	}
	o := New([]Agent{a}, nil, nil, nil, nil)
	report, _, err := o.Run(context.Background(), "proj-1", "/work")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Counts.Low)
}

func TestRunDedupesKeepingHighestConfidence(t *testing.T) {
	a := &stubAgent{
		name: "security", agentType: "security",
		findings: []models.ReviewFinding{
			finding("sec", "F1", "sql injection", 0.6, models.SeverityHigh),
			finding("sec", "F1", "sql injection", 0.95, models.SeverityHigh),
		},
	}
	o := New([]Agent{a}, nil, nil, nil, nil)
	report, _, err := o.Run(context.Background(), "proj-1", "/work")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Counts.High)
}

func TestRunCapsAtMaxFindingsByConfidence(t *testing.T) {
	a := &stubAgent{
		name: "security", agentType: "security", maxFindings: 1,
		findings: []models.ReviewFinding{
			finding("sec", "F1", "a", 0.5, models.SeverityMedium),
			finding("sec", "F2", "b", 0.9, models.SeverityMedium),
		},
	}
	o := New([]Agent{a}, nil, nil, nil, nil)
	report, _, err := o.Run(context.Background(), "proj-1", "/work")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Counts.Medium)
}

func TestRunSkipsFindingsMissingEvidence(t *testing.T) {
	a := &stubAgent{
		name: "security", agentType: "security",
		findings: []models.ReviewFinding{
			{Category: "sec", Description: "no file path", Confidence: 0.9, Severity: models.SeverityHigh},
		},
	}
	o := New([]Agent{a}, nil, nil, nil, nil)
	report, _, err := o.Run(context.Background(), "proj-1", "/work")
	require.NoError(t, err)
	assert.Equal(t, 0, report.Counts.High)
	assert.Contains(t, report.Summary, "missing evidence")
}

func TestRunRecordsAgentFailureWithoutAbortingOtherAgents(t *testing.T) {
	failing := &stubAgent{name: "broken", agentType: "broken", err: errors.New("timeout")}
	ok := &stubAgent{
		name: "style", agentType: "style",
		findings: []models.ReviewFinding{finding("naming", "F1", "bad name", 0.9, models.SeverityLow)},
	}
	o := New([]Agent{failing, ok}, nil, nil, nil, nil)
	report, _, err := o.Run(context.Background(), "proj-1", "/work")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Counts.Info) // synthetic failure finding
	assert.Equal(t, 1, report.Counts.Low)
}

func TestRunSummarizesSchemaInvalidAgentAsSkippedWithoutSyntheticFinding(t *testing.T) {
	broken := &stubAgent{name: "security", agentType: "security", err: fmt.Errorf("agent security: %w: bad json", errs.ErrSchemaInvalid)}
	ok := &stubAgent{
		name: "style", agentType: "style",
		findings: []models.ReviewFinding{finding("naming", "F1", "bad name", 0.9, models.SeverityLow)},
	}
	o := New([]Agent{broken, ok}, nil, nil, nil, nil)
	report, findings, err := o.Run(context.Background(), "proj-1", "/work")
	require.NoError(t, err)
	assert.Equal(t, 0, report.Counts.Info, "schema-invalid skip must not produce a synthetic failure finding")
	assert.Equal(t, 1, report.Counts.Low)
	assert.Len(t, findings, 1)
	assert.Contains(t, report.Summary, "security: skipped due to invalid schema")
}

func TestRunComputesHealthScoreFromSeverityCounts(t *testing.T) {
	a := &stubAgent{
		name: "security", agentType: "security",
		findings: []models.ReviewFinding{
			finding("sec", "F1", "a", 0.9, models.SeverityHigh),
			finding("sec", "F2", "b", 0.9, models.SeverityHigh),
		},
	}
	o := New([]Agent{a}, nil, nil, nil, nil)
	report, _, err := o.Run(context.Background(), "proj-1", "/work")
	require.NoError(t, err)
	assert.Equal(t, 80, report.HealthScore) // 100 - min(2*10,50)
}

func TestRunDedupesAndCapsRecommendations(t *testing.T) {
	a := &stubAgent{
		name: "security", agentType: "security",
		recs: []string{"use prepared statements", "use prepared statements", "add input validation"},
	}
	o := New([]Agent{a}, nil, nil, nil, nil)
	report, _, err := o.Run(context.Background(), "proj-1", "/work")
	require.NoError(t, err)
	assert.Equal(t, []string{"use prepared statements", "add input validation"}, report.Recommendations)
}
