// Package checkpoint durably persists JobCheckpoint rows so a worker can
// resume an interrupted analysis run from the last completed phase.
package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iasik/orchestrator/internal/errs"
	"github.com/iasik/orchestrator/internal/models"
)

// Store is a SQLite-backed JobCheckpoint store, grounded on the
// corpus's embedded-SQLite durability idiom (open, exec schema,
// prepared statements, no ORM).
type Store struct {
	db     *sql.DB
	ownsDB bool
}

const schema = `
CREATE TABLE IF NOT EXISTS job_checkpoints (
	project_id                text PRIMARY KEY,
	phase                     text NOT NULL,
	last_processed_file_index integer NOT NULL DEFAULT 0,
	files_processed           integer NOT NULL DEFAULT 0,
	chunks_indexed            integer NOT NULL DEFAULT 0,
	embeddings_created        integer NOT NULL DEFAULT 0,
	chunks_skipped            integer NOT NULL DEFAULT 0,
	total_tokens_processed    integer NOT NULL DEFAULT 0,
	status                    text NOT NULL,
	retry_count               integer NOT NULL DEFAULT 0,
	last_checkpoint_at        timestamp,
	serialized_state          blob,
	error_message             text,
	created_at                timestamp NOT NULL,
	updated_at                timestamp NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_job_checkpoints_status ON job_checkpoints(status);
`

// Open opens (creating if needed) a SQLite checkpoint store at path.
// Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint: init schema: %w", err)
	}
	return &Store{db: db, ownsDB: true}, nil
}

// OpenShared wraps an already-open *sql.DB (e.g. shared with the queue
// package) without taking ownership of closing it.
func OpenShared(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("checkpoint: init schema: %w", err)
	}
	return &Store{db: db, ownsDB: false}, nil
}

// Close releases the underlying connection if this Store opened it.
func (s *Store) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// Get returns the checkpoint for projectID, or errs.ErrNotFound-wrapped
// sql.ErrNoRows if none exists.
func (s *Store) Get(ctx context.Context, projectID string) (*models.JobCheckpoint, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE project_id = ?`, projectID)
	c, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checkpoint: get %s: %w: %w", projectID, errs.ErrNotFound, err)
	}
	return c, err
}

// GetByStatus returns every checkpoint with the given status.
func (s *Store) GetByStatus(ctx context.Context, status models.JobStatus) ([]*models.JobCheckpoint, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE status = ? ORDER BY updated_at ASC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: get by status: %w", err)
	}
	defer rows.Close()
	return scanCheckpoints(rows)
}

// GetPendingRetry returns PendingRetry checkpoints with RetryCount < maxRetries.
func (s *Store) GetPendingRetry(ctx context.Context, maxRetries int) ([]*models.JobCheckpoint, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE status = ? AND retry_count < ? ORDER BY updated_at ASC`,
		string(models.JobPendingRetry), maxRetries)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: get pending retry: %w", err)
	}
	defer rows.Close()
	return scanCheckpoints(rows)
}

// Add inserts a new checkpoint. ProjectID must be unique.
func (s *Store) Add(ctx context.Context, c *models.JobCheckpoint) error {
	now := c.CreatedAt
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_checkpoints (
			project_id, phase, last_processed_file_index, files_processed,
			chunks_indexed, embeddings_created, chunks_skipped,
			total_tokens_processed, status, retry_count, last_checkpoint_at,
			serialized_state, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ProjectID, string(c.Phase), c.LastProcessedFileIndex, c.FilesProcessed,
		c.ChunksIndexed, c.EmbeddingsCreated, c.ChunksSkipped,
		c.TotalTokensProcessed, string(c.Status), c.RetryCount, c.LastCheckpointAt,
		c.SerializedState, now, now,
	)
	if err != nil {
		return fmt.Errorf("checkpoint: add %s: %w", c.ProjectID, err)
	}
	return nil
}

// Update overwrites the stored checkpoint for c.ProjectID.
func (s *Store) Update(ctx context.Context, c *models.JobCheckpoint) error {
	c.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE job_checkpoints SET
			phase = ?, last_processed_file_index = ?, files_processed = ?,
			chunks_indexed = ?, embeddings_created = ?, chunks_skipped = ?,
			total_tokens_processed = ?, status = ?, retry_count = ?,
			last_checkpoint_at = ?, serialized_state = ?, updated_at = ?
		WHERE project_id = ?`,
		string(c.Phase), c.LastProcessedFileIndex, c.FilesProcessed,
		c.ChunksIndexed, c.EmbeddingsCreated, c.ChunksSkipped,
		c.TotalTokensProcessed, string(c.Status), c.RetryCount,
		c.LastCheckpointAt, c.SerializedState, c.UpdatedAt, c.ProjectID,
	)
	if err != nil {
		return fmt.Errorf("checkpoint: update %s: %w", c.ProjectID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("checkpoint: update %s: no such checkpoint", c.ProjectID)
	}
	return nil
}

// DeleteByProject removes projectID's checkpoint.
func (s *Store) DeleteByProject(ctx context.Context, projectID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM job_checkpoints WHERE project_id = ?`, projectID)
	if err != nil {
		return fmt.Errorf("checkpoint: delete %s: %w", projectID, err)
	}
	return nil
}

// DeleteOlderThan removes checkpoints last updated before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM job_checkpoints WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("checkpoint: delete older than %s: %w", cutoff, err)
	}
	return res.RowsAffected()
}

const selectColumns = `
SELECT project_id, phase, last_processed_file_index, files_processed,
       chunks_indexed, embeddings_created, chunks_skipped,
       total_tokens_processed, status, retry_count, last_checkpoint_at,
       serialized_state, created_at, updated_at
FROM job_checkpoints`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row rowScanner) (*models.JobCheckpoint, error) {
	var c models.JobCheckpoint
	var phase, status string
	var lastCheckpointAt sql.NullTime
	err := row.Scan(
		&c.ProjectID, &phase, &c.LastProcessedFileIndex, &c.FilesProcessed,
		&c.ChunksIndexed, &c.EmbeddingsCreated, &c.ChunksSkipped,
		&c.TotalTokensProcessed, &status, &c.RetryCount, &lastCheckpointAt,
		&c.SerializedState, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Phase = models.Phase(phase)
	c.Status = models.JobStatus(status)
	if lastCheckpointAt.Valid {
		c.LastCheckpointAt = lastCheckpointAt.Time
	}
	return &c, nil
}

func scanCheckpoints(rows *sql.Rows) ([]*models.JobCheckpoint, error) {
	var out []*models.JobCheckpoint
	for rows.Next() {
		c, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
