package router

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/iasik/orchestrator/internal/models"
	"github.com/iasik/orchestrator/internal/tokenizer"
)

// Router is stateless and shared across jobs, per spec.md §9's
// ownership notes; all per-call state lives in the arguments.
type Router struct {
	cfg        Config
	tokenizer  tokenizer.Tokenizer
	riskScorer RiskScorer
}

// New builds a Router. A nil riskScorer disables risk scoring (every
// file gets RiskScore 0, IsHighRisk false).
func New(cfg Config, tok tokenizer.Tokenizer, risk RiskScorer) *Router {
	if risk == nil {
		risk = NoopRiskScorer{}
	}
	return &Router{cfg: cfg, tokenizer: tok, riskScorer: risk}
}

const binarySniffBytes = 512

// BuildPlan walks root, reading each eligible file's content to compute
// an accurate token count and risk score, and returns the project's
// full AnalysisPlan. Unlike Estimate, this does read file content — it
// is the authoritative routing pass, not the lightweight approval gate.
func (r *Router) BuildPlan(ctx context.Context, projectID, root string) (*models.AnalysisPlan, error) {
	plan := &models.AnalysisPlan{ProjectID: projectID}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if isExcludedPath(rel, r.cfg) {
			return nil
		}

		if info, statErr := d.Info(); statErr == nil {
			plan.TotalFileSizeBytes += info.Size()
		}

		fd, err := r.routeFile(ctx, path, rel)
		if err != nil {
			return err
		}
		plan.Files = append(plan.Files, fd)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, fd := range plan.Files {
		if fd.Decision != models.DecisionSkipped {
			plan.EstimatedTotalTokens += fd.EstimatedTokens
		}
	}
	return plan, nil
}

// routeFile classifies and, for non-excluded files, scores a single file.
func (r *Router) routeFile(ctx context.Context, absPath, relPath string) (models.FileDecision, error) {
	language := languageFromExt(relPath)

	if !isAllowedExtension(relPath, r.cfg) {
		return models.FileDecision{FilePath: relPath, Decision: models.DecisionSkipped, DecisionReason: ReasonSkippedNotAllowed, Language: language}, nil
	}

	if isBinaryExtension(relPath, r.cfg) {
		return models.FileDecision{FilePath: relPath, Decision: models.DecisionSkipped, DecisionReason: ReasonSkippedBinary, Language: language}, nil
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return models.FileDecision{FilePath: relPath, Decision: models.DecisionSkipped, DecisionReason: ReasonSkippedReadError, Language: language}, nil
	}

	decision, reason := DecideBySize(info.Size(), r.cfg)
	if decision == models.DecisionSkipped {
		return models.FileDecision{FilePath: relPath, Decision: decision, DecisionReason: reason, Language: language}, nil
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return models.FileDecision{FilePath: relPath, Decision: models.DecisionSkipped, DecisionReason: ReasonSkippedReadError, Language: language}, nil
	}
	if looksBinaryContent(sniff(content)) {
		return models.FileDecision{FilePath: relPath, Decision: models.DecisionSkipped, DecisionReason: ReasonSkippedBinary, Language: language}, nil
	}
	if !utf8.Valid(content) {
		return models.FileDecision{FilePath: relPath, Decision: models.DecisionSkipped, DecisionReason: ReasonSkippedEncoding, Language: language}, nil
	}

	tokens := r.tokenizer.CountTokens(string(content))

	var riskScore float64
	if r.riskScorer != nil {
		riskScore, _ = r.riskScorer.Score(ctx, relPath, content)
	}

	return models.FileDecision{
		FilePath:        relPath,
		Decision:        decision,
		DecisionReason:  reason,
		RiskScore:       riskScore,
		IsHighRisk:      riskScore >= r.cfg.RiskThreshold,
		EstimatedTokens: tokens,
		Language:        language,
	}, nil
}

func sniff(content []byte) []byte {
	if len(content) > binarySniffBytes {
		return content[:binarySniffBytes]
	}
	return content
}

var extLanguage = map[string]string{
	".go":    "go",
	".ts":    "typescript",
	".tsx":   "typescript",
	".js":    "javascript",
	".jsx":   "javascript",
	".py":    "python",
	".rb":    "ruby",
	".java":  "java",
	".cs":    "csharp",
	".php":   "php",
	".md":    "markdown",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
}

func languageFromExt(path string) string {
	ext := filepath.Ext(path)
	if lang, ok := extLanguage[ext]; ok {
		return lang
	}
	return "unknown"
}

// WithConfig returns a copy of r using cfg in place of r's own Config,
// sharing the same tokenizer and risk scorer. Lets a caller apply a
// project's include/exclude overrides for one BuildPlan/EstimateRoot
// call without reconstructing the tokenizer or risk scorer.
func (r *Router) WithConfig(cfg Config) *Router {
	return &Router{cfg: cfg, tokenizer: r.tokenizer, riskScorer: r.riskScorer}
}

// EstimateRoot runs Estimate's preflight, size-only walk over root using
// os.Stat and filepath.WalkDir — see estimate.go.
func (r *Router) EstimateRoot(root string) (Estimate, error) {
	return r.Estimate(root, func(path string) (int64, error) {
		info, err := os.Stat(path)
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	}, filepath.WalkDir)
}

