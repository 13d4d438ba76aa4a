package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iasik/orchestrator/internal/queue"
)

const dequeueVisibility = 5 * time.Minute

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "worker", Short: "Run the long-lived job worker"}
	cmd.AddCommand(newWorkerRunCmd())
	return cmd
}

func newWorkerRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Dequeue and process inbound analysis jobs until signalled to stop",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			a, err := buildApp(logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigCh
				logger.Info("received signal, shutting down", "signal", sig)
				cancel()
			}()

			a.start(ctx)
			return runWorker(ctx, a)
		},
	}
}

// runWorker pulls jobs off the queue with a bounded number of concurrent
// workers, runs each through the same indexing+analysis pipeline as
// `project index`, and promotes retryable failures on a fixed interval.
func runWorker(ctx context.Context, a *app) error {
	maxJobs := a.cfg.Worker.MaxConcurrentJobs
	if maxJobs <= 0 {
		maxJobs = 1
	}
	sem := make(chan struct{}, maxJobs)
	var wg sync.WaitGroup

	retryTicker := time.NewTicker(30 * time.Second)
	defer retryTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case <-retryTicker.C:
			promoted, err := a.checkpoints.PromoteRetryable(ctx, a.cfg.Worker.MaxRetryAttempts, a.cfg.Worker.RetryDelay(), time.Now().UTC())
			if err != nil {
				a.logger.Warn("retry promotion failed", "error", err)
			} else if promoted > 0 {
				a.logger.Info("promoted checkpoints for retry", "count", promoted)
			}
		default:
		}

		msg, err := a.queue.Dequeue(ctx, dequeueVisibility)
		if err != nil {
			select {
			case <-ctx.Done():
				wg.Wait()
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(m *queue.Message) {
			defer wg.Done()
			defer func() { <-sem }()
			processJob(ctx, a, m)
		}(msg)
	}
}

func processJob(ctx context.Context, a *app, m *queue.Message) {
	logger := a.logger.With("job_id", m.JobID, "project", m.ProjectID)
	logger.Info("job started", "delivery_count", m.DeliveryCount)

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := runProjectIndex(jobCtx, cancel, a, m.ProjectID, false); err != nil {
		logger.Error("job failed", "error", err)
		if m.DeliveryCount >= a.cfg.Worker.MaxRetryAttempts {
			if dlErr := a.queue.DeadLetter(ctx, m.JobID); dlErr != nil {
				logger.Error("failed to dead-letter job", "error", dlErr)
			}
			return
		}
		if abErr := a.queue.Abandon(ctx, m.JobID); abErr != nil {
			logger.Error("failed to abandon job", "error", abErr)
		}
		return
	}

	if err := a.queue.Complete(ctx, m.JobID); err != nil {
		logger.Error("failed to complete job", "error", err)
	}
	logger.Info("job completed")
}
