package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	_ "modernc.org/sqlite"

	"github.com/iasik/orchestrator/internal/agent"
	"github.com/iasik/orchestrator/internal/checkpoint"
	"github.com/iasik/orchestrator/internal/chunker"
	"github.com/iasik/orchestrator/internal/concurrency"
	"github.com/iasik/orchestrator/internal/config"
	"github.com/iasik/orchestrator/internal/embedder"
	"github.com/iasik/orchestrator/internal/llm"
	"github.com/iasik/orchestrator/internal/memory"
	"github.com/iasik/orchestrator/internal/progress"
	"github.com/iasik/orchestrator/internal/queue"
	"github.com/iasik/orchestrator/internal/retrieval"
	"github.com/iasik/orchestrator/internal/router"
	"github.com/iasik/orchestrator/internal/tokenizer"
	"github.com/iasik/orchestrator/internal/vectordb"
	"github.com/iasik/orchestrator/internal/watchdog"
)

// app wires every shared component from one loaded Config, once per
// command invocation, extended with the full pipeline's dependencies.
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	db          *sql.DB
	embedder    embedder.Provider
	vectorDB    vectordb.Provider
	router      *router.Router
	engine      *chunker.Engine
	slots       *concurrency.Limiter
	monitor     *memory.Monitor
	bus         progress.Bus
	watchdog    *watchdog.Watchdog
	checkpoints *checkpoint.Store
	reports     *checkpoint.ReportStore
	queue       *queue.Queue
	retrieval   *retrieval.Orchestrator
	agents      *agent.Orchestrator
}

func buildApp(logger *slog.Logger) (*app, error) {
	_, cfg := loadConfig(logger)

	reg := prometheus.NewRegistry()

	emb, err := embedder.NewProvider(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}
	vdb, err := vectordb.NewProvider(cfg.VectorDB)
	if err != nil {
		return nil, fmt.Errorf("build vectordb: %w", err)
	}

	tok := tokenizer.New("heuristic")
	riskScorer := router.NewVectorRiskScorer(emb, vdb, cfg.Rag.RiskTopK)
	rt := router.New(cfg.Rag, tok, riskScorer)

	factory := chunker.NewFactory(cfg.Chunking)
	engine := chunker.NewEngine(factory)

	slots := concurrency.New(cfg.Concurrency)
	monitor := memory.New(cfg.Memory, reg)
	bus := progress.NewBus(progress.WithLogger(logger))
	wd := watchdog.New(cfg.Watchdog, reg, logger)

	dbPath := filepath.Join(cfg.Cache.Dir, "orchestrator.sqlite")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	checkpoints, err := checkpoint.OpenShared(db)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}
	reports, err := checkpoint.OpenSharedReportStore(db)
	if err != nil {
		return nil, fmt.Errorf("open report store: %w", err)
	}
	jobQueue, err := queue.OpenShared(db)
	if err != nil {
		return nil, fmt.Errorf("open job queue: %w", err)
	}

	retrievalCfg := retrieval.DefaultConfig()
	retrievalCfg.Chunking = chunker.Options{
		MaxChunkTokens:       cfg.Chunking.MaxTokens,
		OverlapTokens:        cfg.Chunking.OverlapTokens,
		MinChunkTokens:       cfg.Chunking.MinTokens,
		UseSemanticSplitting: cfg.Chunking.UseSemanticSplitting,
		StoreChunkText:       cfg.Chunking.StoreChunkText,
	}
	retrievalOrch := retrieval.New(retrievalCfg, engine, emb, vdb, slots, checkpoints, bus, monitor, wd, logger)

	llmClient := llm.New(cfg.LLM.GetAPIKey(), cfg.LLM.Model, llm.WithTimeoutStrategy(cfg.Timeouts))
	agents := agent.New(buildAgents(llmClient), slots, monitor, bus, logger)

	return &app{
		cfg: cfg, logger: logger, db: db, embedder: emb, vectorDB: vdb, router: rt, engine: engine,
		slots: slots, monitor: monitor, bus: bus, watchdog: wd,
		checkpoints: checkpoints, reports: reports, queue: jobQueue, retrieval: retrievalOrch, agents: agents,
	}, nil
}

// buildAgents returns the default Analysis Agent roster: one LLM-backed
// agent per review lens, each scoped to the categories its name implies.
func buildAgents(client *llm.Client) []agent.Agent {
	return []agent.Agent{
		agent.NewLLMAgent("security", "security",
			"You are a security code reviewer. Find injection, auth, and secret-handling issues. Respond only with the requested JSON.",
			client, agent.WithAllowedCategories("security", "injection", "auth", "secrets"), agent.WithMinConfidence(0.5)),
		agent.NewLLMAgent("performance", "performance",
			"You are a performance code reviewer. Find inefficient algorithms, unnecessary allocations, and blocking I/O. Respond only with the requested JSON.",
			client, agent.WithAllowedCategories("performance", "allocation", "concurrency"), agent.WithMinConfidence(0.5)),
		agent.NewLLMAgent("style", "style",
			"You are a maintainability code reviewer. Find naming, duplication, and structure issues. Respond only with the requested JSON.",
			client, agent.WithAllowedCategories("naming", "duplication", "structure"), agent.WithMinConfidence(0.4)),
	}
}

func (a *app) Close() {
	a.watchdog.Stop()
	a.monitor.Stop()
	_ = a.bus.Close()
	_ = a.embedder.Close()
	_ = a.vectorDB.Close()
	_ = a.checkpoints.Close()
	_ = a.reports.Close()
	_ = a.db.Close()
}

func (a *app) start(ctx context.Context) {
	a.monitor.Start()
	a.watchdog.Start()
	if err := a.vectorDB.EnsureCollection(ctx, a.cfg.Embedding.Dimensions); err != nil {
		a.logger.Warn("ensure collection failed", "error", err)
	}
}
