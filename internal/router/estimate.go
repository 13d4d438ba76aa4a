package router

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/iasik/orchestrator/internal/models"
)

// Estimate is the preflight walk's result: counts, a rough token budget,
// and whether the project needs operator approval before indexing.
// Unlike BuildPlan, Estimate never reads file content, only metadata.
type Estimate struct {
	DirectSendCount   int
	RagChunkCount     int
	SkippedCount      int
	EstimatedTokens   int
	FileTypeBreakdown map[string]int
	SkippedFiles      []SkippedFile
	Warnings          []string
	RequiresApproval  bool
}

// SkippedFile records why the estimator skipped a file, for operator review.
type SkippedFile struct {
	Path   string
	Reason string
}

// bytesPerTokenEstimate mirrors the heuristic tokenizer's ~4 chars/token
// ratio, used here because the estimator must not read file content.
const bytesPerTokenEstimate = 4

// Estimate performs a preflight, size-only walk of root, classifying
// every file by DecideBySize without reading content. Skipped files'
// tokens are excluded from EstimatedTokens per spec.md §9 open question 2.
func (r *Router) Estimate(root string, statSize func(path string) (int64, error), walk func(root string, fn fs.WalkDirFunc) error) (Estimate, error) {
	est := Estimate{FileTypeBreakdown: make(map[string]int)}

	err := walk(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			est.Warnings = append(est.Warnings, walkErr.Error())
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}

		if isExcludedPath(rel, r.cfg) {
			return nil // excluded paths are invisible to the estimator, not "skipped"
		}
		if isBinaryExtension(rel, r.cfg) {
			est.SkippedCount++
			est.SkippedFiles = append(est.SkippedFiles, SkippedFile{Path: rel, Reason: ReasonSkippedBinary})
			return nil
		}

		size, statErr := statSize(path)
		if statErr != nil {
			est.SkippedCount++
			est.SkippedFiles = append(est.SkippedFiles, SkippedFile{Path: rel, Reason: ReasonSkippedReadError})
			est.Warnings = append(est.Warnings, statErr.Error())
			return nil
		}

		decision, reason := DecideBySize(size, r.cfg)
		ext := filepath.Ext(rel)
		est.FileTypeBreakdown[ext]++

		switch decision {
		case models.DecisionDirectSend:
			est.DirectSendCount++
			est.EstimatedTokens += int(size) / bytesPerTokenEstimate
		case models.DecisionRagChunks:
			est.RagChunkCount++
			est.EstimatedTokens += int(size) / bytesPerTokenEstimate
		default:
			est.SkippedCount++
			est.SkippedFiles = append(est.SkippedFiles, SkippedFile{Path: rel, Reason: reason})
		}
		return nil
	})
	if err != nil {
		return est, err
	}

	sort.Strings(est.Warnings)
	est.RequiresApproval = est.EstimatedTokens >= r.cfg.ApprovalThresholdTokens
	return est, nil
}
