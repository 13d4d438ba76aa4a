package checkpoint

import (
	"context"
	"time"

	"github.com/iasik/orchestrator/internal/models"
)

// StartOrResume returns projectID's existing checkpoint with transient
// flags cleared and RetryCount bumped, or creates a fresh one if none
// exists yet.
func (s *Store) StartOrResume(ctx context.Context, projectID string, now time.Time) (*models.JobCheckpoint, error) {
	existing, err := s.Get(ctx, projectID)
	if err == nil && existing != nil {
		existing.Status = models.JobInProgress
		existing.RetryCount++
		existing.LastCheckpointAt = now
		if updateErr := s.Update(ctx, existing); updateErr != nil {
			return nil, updateErr
		}
		return existing, nil
	}

	fresh := &models.JobCheckpoint{
		ProjectID:        projectID,
		Phase:            models.PhaseNotStarted,
		Status:           models.JobInProgress,
		LastCheckpointAt: now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if addErr := s.Add(ctx, fresh); addErr != nil {
		return nil, addErr
	}
	return fresh, nil
}

// Complete marks projectID's checkpoint Completed.
func (s *Store) Complete(ctx context.Context, c *models.JobCheckpoint, now time.Time) error {
	c.Status = models.JobCompletedStat
	c.Phase = models.PhaseCompleted
	c.LastCheckpointAt = now
	return s.Update(ctx, c)
}

// Fail marks the checkpoint Failed. A later PromoteRetryable pass moves
// it to PendingRetry (or DeadLettered once retries are exhausted) after
// the configured retry delay has elapsed.
func (s *Store) Fail(ctx context.Context, c *models.JobCheckpoint, now time.Time) error {
	c.Status = models.JobFailed
	c.LastCheckpointAt = now
	return s.Update(ctx, c)
}

// PromoteRetryable scans Failed checkpoints whose retry delay has
// elapsed, flipping each to PendingRetry if CanRetry(maxRetries) holds,
// else to DeadLettered. Returns the number of checkpoints promoted.
func (s *Store) PromoteRetryable(ctx context.Context, maxRetries int, retryDelay time.Duration, now time.Time) (int, error) {
	failed, err := s.GetByStatus(ctx, models.JobFailed)
	if err != nil {
		return 0, err
	}
	var promoted int
	for _, c := range failed {
		if now.Sub(c.LastCheckpointAt) < retryDelay {
			continue
		}
		if c.CanRetry(maxRetries) {
			c.Status = models.JobPendingRetry
		} else {
			c.Status = models.JobDeadLettered
		}
		if err := s.Update(ctx, c); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}
