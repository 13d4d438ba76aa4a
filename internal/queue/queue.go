// Package queue implements the inbound analysis-job message contract:
// priority-ordered dequeue with visibility timeout, complete, abandon,
// and dead-letter, backed by the same embedded SQLite database the
// checkpoint store uses.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/google/uuid"
)

// Priority orders dequeue within a queue; higher sorts first.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityNormal   Priority = "Normal"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// Message is one inbound job message, per spec.md §6's "Inbound job message".
type Message struct {
	JobID         string
	ProjectID     string
	JobType       string
	Priority      Priority
	DeliveryCount int
	EnqueuedAt    time.Time
	ScheduledFor  *time.Time
	CorrelationID string
	Metadata      map[string]any
}

// Queue is a SQLite-backed priority queue with visibility-timeout leasing.
type Queue struct {
	db     *sql.DB
	ownsDB bool
}

const schema = `
CREATE TABLE IF NOT EXISTS job_queue (
	job_id          text PRIMARY KEY,
	project_id      text NOT NULL,
	job_type        text NOT NULL,
	priority        text NOT NULL,
	delivery_count  integer NOT NULL DEFAULT 0,
	enqueued_at     timestamp NOT NULL,
	scheduled_for   timestamp,
	correlation_id  text,
	metadata        text,
	visible_at      timestamp NOT NULL,
	leased          integer NOT NULL DEFAULT 0,
	dead_lettered   integer NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_job_queue_ready ON job_queue(leased, dead_lettered, visible_at);
`

// Open opens (creating if needed) a SQLite-backed queue at path.
func Open(path string) (*Queue, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("queue: open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("queue: init schema: %w", err)
	}
	return &Queue{db: db, ownsDB: true}, nil
}

// OpenShared wraps an already-open *sql.DB without taking ownership.
func OpenShared(db *sql.DB) (*Queue, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("queue: init schema: %w", err)
	}
	return &Queue{db: db, ownsDB: false}, nil
}

// Close releases the underlying connection if this Queue opened it.
func (q *Queue) Close() error {
	if q.ownsDB {
		return q.db.Close()
	}
	return nil
}

// Enqueue adds a new message. JobID is generated if empty.
func (q *Queue) Enqueue(ctx context.Context, m Message) (string, error) {
	if m.JobID == "" {
		m.JobID = uuid.NewString()
	}
	if m.EnqueuedAt.IsZero() {
		m.EnqueuedAt = time.Now().UTC()
	}
	if m.Priority == "" {
		m.Priority = PriorityNormal
	}
	meta, err := json.Marshal(m.Metadata)
	if err != nil {
		return "", fmt.Errorf("queue: marshal metadata: %w", err)
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO job_queue (
			job_id, project_id, job_type, priority, delivery_count,
			enqueued_at, scheduled_for, correlation_id, metadata, visible_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.JobID, m.ProjectID, m.JobType, string(m.Priority), m.DeliveryCount,
		m.EnqueuedAt, m.ScheduledFor, m.CorrelationID, string(meta), m.EnqueuedAt,
	)
	if err != nil {
		return "", fmt.Errorf("queue: enqueue %s: %w", m.JobID, err)
	}
	return m.JobID, nil
}

// Dequeue leases the highest-priority ready message (ties broken by
// EnqueuedAt), hiding it from further dequeues until visibilityTimeout
// elapses unless Complete/Abandon/DeadLetter is called first. Returns
// sql.ErrNoRows if nothing is ready.
func (q *Queue) Dequeue(ctx context.Context, visibilityTimeout time.Duration) (*Message, error) {
	now := time.Now().UTC()

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("queue: dequeue: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT job_id, project_id, job_type, priority, delivery_count,
		       enqueued_at, scheduled_for, correlation_id, metadata
		FROM job_queue
		WHERE leased = 0 AND dead_lettered = 0 AND visible_at <= ?
		ORDER BY
			CASE priority
				WHEN 'Critical' THEN 3
				WHEN 'High' THEN 2
				WHEN 'Normal' THEN 1
				ELSE 0
			END DESC,
			enqueued_at ASC
		LIMIT 1`, now)

	m, err := scanMessage(row)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE job_queue SET leased = 1, delivery_count = delivery_count + 1, visible_at = ?
		WHERE job_id = ?`, now.Add(visibilityTimeout), m.JobID); err != nil {
		return nil, fmt.Errorf("queue: lease %s: %w", m.JobID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("queue: dequeue commit: %w", err)
	}
	m.DeliveryCount++
	return m, nil
}

// Complete removes a successfully-processed message.
func (q *Queue) Complete(ctx context.Context, jobID string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM job_queue WHERE job_id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("queue: complete %s: %w", jobID, err)
	}
	return nil
}

// Abandon makes a leased message immediately visible again.
func (q *Queue) Abandon(ctx context.Context, jobID string) error {
	_, err := q.db.ExecContext(ctx, `UPDATE job_queue SET leased = 0, visible_at = ? WHERE job_id = ?`,
		time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("queue: abandon %s: %w", jobID, err)
	}
	return nil
}

// DeadLetter marks a message as permanently undeliverable.
func (q *Queue) DeadLetter(ctx context.Context, jobID string) error {
	_, err := q.db.ExecContext(ctx, `UPDATE job_queue SET dead_lettered = 1, leased = 0 WHERE job_id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("queue: dead-letter %s: %w", jobID, err)
	}
	return nil
}

func scanMessage(row *sql.Row) (*Message, error) {
	var m Message
	var priority string
	var scheduledFor sql.NullTime
	var correlationID sql.NullString
	var metaJSON string

	err := row.Scan(&m.JobID, &m.ProjectID, &m.JobType, &priority, &m.DeliveryCount,
		&m.EnqueuedAt, &scheduledFor, &correlationID, &metaJSON)
	if err != nil {
		return nil, err
	}
	m.Priority = Priority(priority)
	if scheduledFor.Valid {
		t := scheduledFor.Time
		m.ScheduledFor = &t
	}
	m.CorrelationID = correlationID.String
	if metaJSON != "" && metaJSON != "null" {
		if err := json.Unmarshal([]byte(metaJSON), &m.Metadata); err != nil {
			return nil, fmt.Errorf("queue: unmarshal metadata: %w", err)
		}
	}
	return &m, nil
}
