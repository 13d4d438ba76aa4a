// Package retrieval implements the Retrieval Orchestrator: the batch
// chunk→embed→index pipeline that turns a project's RagChunks files
// into vector entries, checkpointing progress as it goes.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/iasik/orchestrator/internal/checkpoint"
	"github.com/iasik/orchestrator/internal/chunker"
	"github.com/iasik/orchestrator/internal/concurrency"
	"github.com/iasik/orchestrator/internal/embedder"
	"github.com/iasik/orchestrator/internal/errs"
	"github.com/iasik/orchestrator/internal/memory"
	"github.com/iasik/orchestrator/internal/models"
	"github.com/iasik/orchestrator/internal/progress"
	"github.com/iasik/orchestrator/internal/vectordb"
)

// Heartbeater is the subset of the watchdog's registry the orchestrator
// needs; kept as a narrow interface here so this package never imports
// internal/watchdog.
type Heartbeater interface {
	Heartbeat(projectID, phase string)
}

// ContentLoader reads one file's content given its project-relative path.
type ContentLoader func(path string) (string, error)

// Config carries the orchestrator's own tunables (distinct from
// chunker.Options, which travels inside Config.Chunking).
type Config struct {
	Chunking       chunker.Options
	FilesPerBatch  int // how many files are chunked+embedded+upserted per checkpointed batch
	CheckpointEvery int // not read by IndexProject, which persists a checkpoint update after every batch

	// StrategyFor, when set, resolves a per-file chunking strategy
	// override (e.g. from a project's own chunking.code.strategy /
	// chunking.markdown.strategy config) instead of Chunking's single
	// project-wide UseSemanticSplitting toggle.
	StrategyFor func(path string) string
}

// DefaultConfig returns reasonable batch sizing.
func DefaultConfig() Config {
	return Config{FilesPerBatch: 20, CheckpointEvery: 1}
}

// Orchestrator runs the chunk→embed→index pipeline for one project at
// a time, adapted from the teacher's worker-pool/progress/ETA indexer
// loop but restructured around the spec's checkpoint/heartbeat/pause
// contract instead of a local on-disk cache.
type Orchestrator struct {
	cfg       Config
	engine    *chunker.Engine
	embedder  embedder.Provider
	vectorDB  vectordb.Provider
	slots     *concurrency.Limiter
	checkpoints *checkpoint.Store
	bus       progress.Bus
	monitor   *memory.Monitor
	watchdog  Heartbeater
	logger    *slog.Logger
}

// New builds an Orchestrator. watchdog and monitor may be nil.
func New(
	cfg Config,
	engine *chunker.Engine,
	emb embedder.Provider,
	vdb vectordb.Provider,
	slots *concurrency.Limiter,
	checkpoints *checkpoint.Store,
	bus progress.Bus,
	monitor *memory.Monitor,
	watchdog Heartbeater,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg: cfg, engine: engine, embedder: emb, vectorDB: vdb, slots: slots,
		checkpoints: checkpoints, bus: bus, monitor: monitor, watchdog: watchdog, logger: logger,
	}
}

// WithConfig returns a copy of o using cfg in place of o's own Config,
// sharing every other dependency. Lets a caller apply a project's
// chunking overrides (token bounds, strategy) for one IndexProject call
// without reconstructing the engine, embedder, or vector store.
func (o *Orchestrator) WithConfig(cfg Config) *Orchestrator {
	clone := *o
	clone.cfg = cfg
	return &clone
}

// Result reports what one IndexProject call accomplished.
type Result struct {
	FilesProcessed      int
	ChunksCreated       int
	ChunksSkipped       int // duplicate ChunkHash; chunks the engine drops below MinChunkTokens are not counted
	EmbeddingsGenerated int
	Errors              []error
}

// IndexProject chunks, embeds, and upserts every RagChunks file in
// plan, resuming from checkpoint.LastProcessedFileIndex, heartbeating
// the watchdog and publishing progress per batch, and persisting a
// checkpoint after every batch so a crash resumes without re-embedding
// completed files.
func (o *Orchestrator) IndexProject(ctx context.Context, projectID string, plan *models.AnalysisPlan, load ContentLoader) (Result, error) {
	var result Result

	targets := ragChunkFiles(plan)
	now := time.Now().UTC()
	cp, err := o.checkpoints.StartOrResume(ctx, projectID, now)
	if err != nil {
		return result, fmt.Errorf("retrieval: start checkpoint: %w", err)
	}
	cp.AdvancePhase(models.PhaseChunking, now)
	startTime := time.Now()

	startIndex := cp.LastProcessedFileIndex
	if startIndex > len(targets) {
		startIndex = len(targets)
	}

	seen := make(map[string]bool)
	batchSize := o.cfg.FilesPerBatch
	if batchSize <= 0 {
		batchSize = 20
	}

	paused := false
	for batchStart := startIndex; batchStart < len(targets); batchStart += batchSize {
		if err := ctx.Err(); err != nil {
			return o.cancelled(ctx, projectID, cp, result, err)
		}

		if o.monitor != nil && o.monitor.ShouldPauseProcessing() {
			o.logger.Warn("retrieval: pausing before next batch on memory pressure", "project", projectID)
			paused = true
			break
		}

		batchEnd := batchStart + batchSize
		if batchEnd > len(targets) {
			batchEnd = len(targets)
		}
		batch := targets[batchStart:batchEnd]

		chunks, batchErrs := o.chunkFiles(projectID, batch, load)
		result.Errors = append(result.Errors, batchErrs...)

		fresh := make([]models.Chunk, 0, len(chunks))
		for _, c := range chunks {
			key := c.ProjectID + "\x00" + c.ChunkHash
			if seen[key] {
				result.ChunksSkipped++
				continue
			}
			seen[key] = true
			fresh = append(fresh, c)
		}
		result.ChunksCreated += len(fresh)

		if len(fresh) > 0 {
			if err := o.embedAndUpsert(ctx, fresh); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("embed/upsert batch %d-%d: %w", batchStart, batchEnd, err))
			} else {
				result.EmbeddingsGenerated += len(fresh)
			}
		}

		result.FilesProcessed += len(batch)
		cp.LastProcessedFileIndex = batchEnd
		cp.FilesProcessed += len(batch)
		cp.ChunksIndexed += len(fresh)
		cp.ChunksSkipped += result.ChunksSkipped
		cp.EmbeddingsCreated += result.EmbeddingsGenerated
		cp.TotalTokensProcessed += sumTokens(fresh)
		if err := o.checkpoints.Update(ctx, cp); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("update checkpoint: %w", err))
		}

		if o.watchdog != nil {
			o.watchdog.Heartbeat(projectID, string(models.PhaseIndexing))
		}
		o.publishProgress(ctx, projectID, models.PhaseIndexing, batchEnd, len(targets))
		o.logBatchProgress(projectID, batchEnd, len(targets), startTime)

		if o.monitor != nil {
			o.monitor.RequestGCIfNeeded()
		}
	}

	if paused {
		// Leave the checkpoint InProgress with LastProcessedFileIndex
		// advanced so a later call resumes exactly where this one
		// stopped, per the memory-pressure pause contract.
		return result, nil
	}

	if err := o.checkpoints.Complete(ctx, cp, time.Now().UTC()); err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("complete checkpoint: %w", err))
	}
	return result, nil
}

func (o *Orchestrator) cancelled(ctx context.Context, projectID string, cp *models.JobCheckpoint, result Result, cause error) (Result, error) {
	if err := o.checkpoints.Fail(context.Background(), cp, time.Now().UTC()); err != nil {
		o.logger.Error("retrieval: failed to persist checkpoint on cancellation", "project", projectID, "error", err)
	}
	if o.bus != nil {
		_ = o.bus.Publish(context.Background(), progress.NewJobCompletion(progress.JobCompletion{
			ProjectID: projectID, IsSuccess: false, ErrorKind: errs.Kind(errs.ErrCancelled),
		}))
	}
	result.Errors = append(result.Errors, fmt.Errorf("retrieval: cancelled: %w", cause))
	return result, errs.ErrCancelled
}

func (o *Orchestrator) chunkFiles(projectID string, batch []models.FileDecision, load ContentLoader) ([]models.Chunk, []error) {
	var chunks []models.Chunk
	var chunkErrs []error
	for _, f := range batch {
		if o.slots != nil {
			if err := o.slots.FileRead.Acquire(context.Background()); err != nil {
				chunkErrs = append(chunkErrs, fmt.Errorf("%s: %w", f.FilePath, err))
				continue
			}
		}
		content, err := load(f.FilePath)
		if o.slots != nil {
			o.slots.FileRead.Release()
		}
		if err != nil {
			chunkErrs = append(chunkErrs, fmt.Errorf("read %s: %w", f.FilePath, err))
			continue
		}

		opts := o.cfg.Chunking
		opts.ProjectID = projectID
		if o.cfg.StrategyFor != nil {
			opts.ChunkStrategy = o.cfg.StrategyFor(f.FilePath)
		}
		fc, err := o.engine.ChunkFile(f.FilePath, content, opts)
		if err != nil {
			chunkErrs = append(chunkErrs, fmt.Errorf("chunk %s: %w", f.FilePath, err))
			continue
		}
		chunks = append(chunks, fc...)
	}
	return chunks, chunkErrs
}

func (o *Orchestrator) embedAndUpsert(ctx context.Context, chunks []models.Chunk) error {
	if o.slots != nil {
		if err := o.slots.Embedding.Acquire(ctx); err != nil {
			return err
		}
		defer o.slots.Embedding.Release()
	}

	// Embedding requires chunk text, so callers must set
	// Config.Chunking.StoreChunkText true for any project that indexes.
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := o.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embed batch: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	points := make([]vectordb.Point, len(chunks))
	indexedAt := time.Now().UTC().Format(time.RFC3339)
	for i, c := range chunks {
		points[i] = vectordb.Point{
			ID:     c.ChunkHash,
			Vector: vectors[i],
			Payload: vectordb.Payload{
				ProjectID:   c.ProjectID,
				FilePath:    c.FilePath,
				Symbol:      c.SemanticName,
				SymbolType:  string(c.SemanticType),
				Language:    c.Language,
				StartLine:   c.StartLine,
				EndLine:     c.EndLine,
				Content:     c.Content,
				ContentHash: c.TextHash,
				IndexedAt:   indexedAt,
			},
		}
	}
	return o.vectorDB.Upsert(ctx, points)
}

// logBatchProgress logs elapsed time and an ETA the way the teacher's
// indexer does, using go-humanize for the human-readable counts.
func (o *Orchestrator) logBatchProgress(projectID string, processed, total int, startTime time.Time) {
	if total == 0 {
		return
	}
	elapsed := time.Since(startTime)
	var eta time.Duration
	if processed > 0 {
		avgPerFile := elapsed / time.Duration(processed)
		eta = avgPerFile * time.Duration(total-processed)
	}
	o.logger.Info("retrieval: batch complete",
		"project", projectID,
		"files_processed", humanize.Comma(int64(processed)),
		"files_total", humanize.Comma(int64(total)),
		"elapsed", elapsed.Round(time.Second),
		"eta", eta.Round(time.Second),
	)
}

func (o *Orchestrator) publishProgress(ctx context.Context, projectID string, phase models.Phase, processed, total int) {
	if o.bus == nil {
		return
	}
	percent := 0.0
	if total > 0 {
		percent = float64(processed) / float64(total) * 100
	}
	_ = o.bus.Publish(ctx, progress.NewProgressUpdate(progress.ProgressUpdate{
		ProjectID:       projectID,
		Phase:           phase,
		ProgressPercent: percent,
		FilesProcessed:  processed,
		TotalFiles:      total,
	}))
}

// ragChunkFiles selects the plan's RagChunks files in OrderByRisk order,
// so high-risk files are chunked, embedded, and upserted before the
// checkpoint/memory-pressure pause point can cut a batch short.
func ragChunkFiles(plan *models.AnalysisPlan) []models.FileDecision {
	ordered := plan.OrderByRisk()
	out := make([]models.FileDecision, 0, len(ordered))
	for _, f := range ordered {
		if f.Decision == models.DecisionRagChunks {
			out = append(out, f)
		}
	}
	return out
}

func sumTokens(chunks []models.Chunk) int {
	total := 0
	for _, c := range chunks {
		total += c.TokenCount
	}
	return total
}
