package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/iasik/orchestrator/internal/chunker"
	"github.com/iasik/orchestrator/internal/config"
	"github.com/iasik/orchestrator/internal/report"
	"github.com/iasik/orchestrator/internal/retrieval"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "project", Short: "Project-scoped operations"}
	cmd.AddCommand(newProjectEstimateCmd())
	cmd.AddCommand(newProjectIndexCmd())
	return cmd
}

func newProjectEstimateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "estimate <project-id>",
		Short: "Preflight-estimate a project's size and token budget without reading file content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := args[0]
			logger := newLogger()
			a, err := buildApp(logger)
			if err != nil {
				return err
			}
			defer a.Close()

			projectCfg, err := config.GetProject(a.cfg.Projects.ConfigDir, projectID)
			if err != nil {
				return fmt.Errorf("load project config: %w", err)
			}
			root := projectCfg.GetFullSourcePath(a.cfg.Projects.SourceBasePath)

			rt := a.router.WithConfig(projectCfg.ApplyRouterOverrides(a.cfg.Rag))
			est, err := rt.EstimateRoot(root)
			if err != nil {
				return fmt.Errorf("estimate: %w", err)
			}

			tbl := table.NewWriter()
			tbl.SetStyle(table.StyleLight)
			tbl.AppendHeader(table.Row{"DirectSend", "RagChunks", "Skipped", "EstimatedTokens", "RequiresApproval"})
			tbl.AppendRow(table.Row{est.DirectSendCount, est.RagChunkCount, est.SkippedCount, est.EstimatedTokens, est.RequiresApproval})
			fmt.Println(tbl.Render())

			for _, warning := range est.Warnings {
				fmt.Println("warning:", warning)
			}
			return nil
		},
	}
}

func newProjectIndexCmd() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "index <project-id>",
		Short: "Build a project's analysis plan, index its embeddings, and run the Agent Orchestrator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := args[0]
			logger := newLogger()
			a, err := buildApp(logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			a.start(ctx)

			return runProjectIndex(ctx, cancel, a, projectID, full)
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "clear the existing checkpoint and reindex from scratch")
	return cmd
}

func runProjectIndex(ctx context.Context, cancel context.CancelFunc, a *app, projectID string, full bool) error {
	projectCfg, err := config.GetProject(a.cfg.Projects.ConfigDir, projectID)
	if err != nil {
		return fmt.Errorf("load project config: %w", err)
	}
	root := projectCfg.GetFullSourcePath(a.cfg.Projects.SourceBasePath)

	if full {
		if err := a.checkpoints.DeleteByProject(ctx, projectID); err != nil {
			a.logger.Warn("failed to clear checkpoint for full reindex", "project", projectID, "error", err)
		}
	}

	a.watchdog.Register(projectID, cancel)
	defer a.watchdog.Complete(projectID)

	rt := a.router.WithConfig(projectCfg.ApplyRouterOverrides(a.cfg.Rag))
	plan, err := rt.BuildPlan(ctx, projectID, root)
	if err != nil {
		return fmt.Errorf("build plan: %w", err)
	}

	loader := func(relPath string) (string, error) {
		data, err := os.ReadFile(filepath.Join(root, relPath))
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	retrievalCfg := retrieval.DefaultConfig()
	effectiveChunking := projectCfg.GetEffectiveChunking(a.cfg.Chunking)
	retrievalCfg.Chunking = chunker.Options{
		MaxChunkTokens:       effectiveChunking.MaxTokens,
		OverlapTokens:        effectiveChunking.OverlapTokens,
		MinChunkTokens:       effectiveChunking.MinTokens,
		UseSemanticSplitting: effectiveChunking.UseSemanticSplitting,
		StoreChunkText:       true, // embedding requires chunk text
	}
	retrievalCfg.StrategyFor = projectCfg.GetChunkingStrategy

	result, err := a.retrieval.WithConfig(retrievalCfg).IndexProject(ctx, projectID, plan, loader)
	if err != nil {
		return fmt.Errorf("index project: %w", err)
	}
	a.logger.Info("indexing complete",
		"project", projectID, "files", result.FilesProcessed, "chunks", result.ChunksCreated,
		"embeddings", result.EmbeddingsGenerated, "errors", len(result.Errors))

	rep, findings, err := a.agents.Run(ctx, projectID, root)
	if err != nil {
		return fmt.Errorf("run agents: %w", err)
	}

	if err := a.reports.Save(ctx, rep, findings); err != nil {
		a.logger.Warn("failed to persist report", "project", projectID, "error", err)
	}

	report.Render(os.Stdout, rep, findings, report.DefaultStyles())
	return nil
}
