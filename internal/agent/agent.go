// Package agent implements the Agent Orchestrator: it fans each
// registered Analysis Agent out over a project in sequence, applies
// per-agent guardrails and the evidence rule, and aggregates the
// surviving findings into one Report.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/iasik/orchestrator/internal/concurrency"
	"github.com/iasik/orchestrator/internal/errs"
	"github.com/iasik/orchestrator/internal/memory"
	"github.com/iasik/orchestrator/internal/models"
	"github.com/iasik/orchestrator/internal/progress"
)

// Agent is one registered analysis pass. Implementations own their own
// prompting/tool-calling; the orchestrator only sees findings.
type Agent interface {
	Name() string
	Type() string
	MinConfidence() float64
	AllowedCategories() []string // nil or empty means no restriction
	MaxFindings() int            // 0 means unbounded
	Analyze(ctx context.Context, projectID, workingDirectory string) (findings []models.ReviewFinding, recommendations []string, err error)
}

// Orchestrator runs every registered Agent against one project and
// aggregates the result into a Report.
type Orchestrator struct {
	agents  []Agent
	slots   *concurrency.Limiter
	monitor *memory.Monitor
	bus     progress.Bus
	logger  *slog.Logger
}

// New builds an Orchestrator. slots, monitor, and bus may be nil.
func New(agents []Agent, slots *concurrency.Limiter, monitor *memory.Monitor, bus progress.Bus, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{agents: agents, slots: slots, monitor: monitor, bus: bus, logger: logger}
}

// Run executes every registered agent against projectID in sequence
// and returns the aggregated Report along with every finding it kept,
// so a caller can persist both together.
func (o *Orchestrator) Run(ctx context.Context, projectID, workingDirectory string) (*models.Report, []models.ReviewFinding, error) {
	started := time.Now()

	var allFindings []models.ReviewFinding
	var allRecommendations []string
	var summaryLines []string
	var evidenceSkipped []string

	for i, a := range o.agents {
		if o.monitor != nil && o.monitor.ShouldPauseProcessing() {
			o.logger.Warn("agent: pausing before agent on memory pressure", "project", projectID, "agent", a.Name())
			return nil, nil, fmt.Errorf("agent: %s: %w", a.Name(), errs.ErrMemoryPause)
		}

		findings, recs, err := o.runOne(ctx, a, projectID, workingDirectory)
		if err != nil {
			if errors.Is(err, errs.ErrSchemaInvalid) {
				summaryLines = append(summaryLines, fmt.Sprintf("%s: skipped due to invalid schema", a.Name()))
				o.publishProgress(ctx, projectID, i+1, len(o.agents))
				continue
			}
			allFindings = append(allFindings, failureFinding(projectID, a, err))
			summaryLines = append(summaryLines, fmt.Sprintf("%s: failed (%v)", a.Name(), err))
			o.publishProgress(ctx, projectID, i+1, len(o.agents))
			continue
		}

		guarded := applyGuardrails(a, findings)
		stored, skipped := partitionByEvidence(guarded)
		evidenceSkipped = append(evidenceSkipped, skipped...)
		allFindings = append(allFindings, stored...)
		allRecommendations = append(allRecommendations, recs...)
		summaryLines = append(summaryLines, fmt.Sprintf("%s: %d finding(s)", a.Name(), len(stored)))

		o.publishProgress(ctx, projectID, i+1, len(o.agents))
	}

	report := aggregate(projectID, allFindings, allRecommendations, summaryLines, evidenceSkipped)
	report.DurationSeconds = time.Since(started).Seconds()
	for i := range allFindings {
		allFindings[i].ReportID = report.ID
	}
	return report, allFindings, nil
}

func (o *Orchestrator) runOne(ctx context.Context, a Agent, projectID, workingDirectory string) ([]models.ReviewFinding, []string, error) {
	if o.slots != nil {
		if err := o.slots.Reasoning.Acquire(ctx); err != nil {
			return nil, nil, err
		}
		defer o.slots.Reasoning.Release()
	}
	return a.Analyze(ctx, projectID, workingDirectory)
}

func (o *Orchestrator) publishProgress(ctx context.Context, projectID string, done, total int) {
	if o.bus == nil {
		return
	}
	percent := 0.0
	if total > 0 {
		percent = float64(done) / float64(total) * 100
	}
	_ = o.bus.Publish(ctx, progress.NewProgressUpdate(progress.ProgressUpdate{
		ProjectID:       projectID,
		Phase:           models.PhaseAnalyzing,
		ProgressPercent: percent,
		FilesProcessed:  done,
		TotalFiles:      total,
	}))
}

func failureFinding(projectID string, a Agent, err error) models.ReviewFinding {
	return models.ReviewFinding{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Category:    "agent_failure",
		Severity:    models.SeverityInfo,
		AgentType:   a.Type(),
		Description: fmt.Sprintf("%s failed to complete", a.Name()),
		Explanation: err.Error(),
		Confidence:  1,
	}
}

// applyGuardrails enforces MinConfidence, AllowedCategories, dedup by
// (FilePath, Symbol, Description) keeping the highest-confidence copy,
// then caps at MaxFindings by descending confidence.
func applyGuardrails(a Agent, findings []models.ReviewFinding) []models.ReviewFinding {
	allowed := make(map[string]bool, len(a.AllowedCategories()))
	for _, c := range a.AllowedCategories() {
		allowed[c] = true
	}

	byKey := make(map[string]models.ReviewFinding)
	order := make([]string, 0, len(findings))
	for _, f := range findings {
		if f.Confidence < a.MinConfidence() {
			continue
		}
		if len(allowed) > 0 && !allowed[f.Category] {
			continue
		}
		key := f.FilePath + "\x00" + f.Symbol + "\x00" + f.Description
		if existing, ok := byKey[key]; !ok || f.Confidence > existing.Confidence {
			if !ok {
				order = append(order, key)
			}
			byKey[key] = f
		}
	}

	deduped := make([]models.ReviewFinding, 0, len(order))
	for _, key := range order {
		deduped = append(deduped, byKey[key])
	}
	sort.SliceStable(deduped, func(i, j int) bool { return deduped[i].Confidence > deduped[j].Confidence })

	if max := a.MaxFindings(); max > 0 && len(deduped) > max {
		deduped = deduped[:max]
	}
	return deduped
}

// partitionByEvidence splits findings into those satisfying the
// evidence rule and a list of one-line descriptions of the rest, for
// the report summary's "skipped due to missing evidence" section.
func partitionByEvidence(findings []models.ReviewFinding) (stored []models.ReviewFinding, skipped []string) {
	for _, f := range findings {
		if f.HasEvidence() {
			stored = append(stored, f)
			continue
		}
		skipped = append(skipped, fmt.Sprintf("%s: %s", f.AgentType, f.Description))
	}
	return stored, skipped
}

func aggregate(projectID string, findings []models.ReviewFinding, recommendations, summaryLines, evidenceSkipped []string) *models.Report {
	var counts models.SeverityCounts
	for _, f := range findings {
		switch f.Severity {
		case models.SeverityCritical:
			counts.Critical++
		case models.SeverityHigh:
			counts.High++
		case models.SeverityMedium:
			counts.Medium++
		case models.SeverityLow:
			counts.Low++
		case models.SeverityInfo:
			counts.Info++
		}
	}

	report := &models.Report{
		ID:              uuid.NewString(),
		ProjectID:       projectID,
		HealthScore:     models.ComputeHealthScore(counts.High, counts.Medium, counts.Low),
		Counts:          counts,
		Recommendations: dedupeCapped(recommendations, 10),
	}
	report.Summary = buildSummary(counts, summaryLines, evidenceSkipped)
	return report
}

func buildSummary(counts models.SeverityCounts, summaryLines, evidenceSkipped []string) string {
	summary := fmt.Sprintf("Critical: %d, High: %d, Medium: %d, Low: %d, Info: %d",
		counts.Critical, counts.High, counts.Medium, counts.Low, counts.Info)
	for _, line := range summaryLines {
		summary += "\n" + line
	}
	if len(evidenceSkipped) > 0 {
		const cap = 5
		summary += fmt.Sprintf("\nSkipped %d finding(s) for missing evidence:", len(evidenceSkipped))
		shown := evidenceSkipped
		truncated := false
		if len(shown) > cap {
			shown = shown[:cap]
			truncated = true
		}
		for _, s := range shown {
			summary += "\n  - " + s
		}
		if truncated {
			summary += "\n  ..."
		}
	}
	return summary
}

func dedupeCapped(items []string, max int) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, max)
	for _, item := range items {
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
		if len(out) == max {
			break
		}
	}
	return out
}
