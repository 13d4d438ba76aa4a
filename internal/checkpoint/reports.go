package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iasik/orchestrator/internal/models"
)

const reportSchema = `
CREATE TABLE IF NOT EXISTS reports (
	id               text PRIMARY KEY,
	project_id       text NOT NULL,
	health_score     integer NOT NULL,
	summary          text NOT NULL,
	recommendations  text NOT NULL,
	counts           text NOT NULL,
	duration_seconds real NOT NULL,
	findings         text NOT NULL,
	created_at       timestamp NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_project_id ON reports(project_id, created_at DESC);
`

// ReportStore persists a Report alongside the ReviewFindings it was
// built from, in the same SQLite database as job checkpoints. Kept
// separate from Store so a caller that only needs checkpoint tracking
// never pays for the reports table.
type ReportStore struct {
	db     *sql.DB
	ownsDB bool
}

// OpenReportStore opens (creating if needed) a SQLite report store at path.
func OpenReportStore(path string) (*ReportStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open sqlite: %w", err)
	}
	if _, err := db.Exec(reportSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint: init report schema: %w", err)
	}
	return &ReportStore{db: db, ownsDB: true}, nil
}

// OpenSharedReportStore wraps an already-open *sql.DB (e.g. shared with
// Store or the queue package) without taking ownership of closing it.
func OpenSharedReportStore(db *sql.DB) (*ReportStore, error) {
	if _, err := db.Exec(reportSchema); err != nil {
		return nil, fmt.Errorf("checkpoint: init report schema: %w", err)
	}
	return &ReportStore{db: db, ownsDB: false}, nil
}

// Close releases the underlying connection if this store opened it.
func (s *ReportStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// Save persists report and the findings it aggregates.
func (s *ReportStore) Save(ctx context.Context, report *models.Report, findings []models.ReviewFinding) error {
	recs, err := json.Marshal(report.Recommendations)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal recommendations: %w", err)
	}
	counts, err := json.Marshal(report.Counts)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal counts: %w", err)
	}
	findingsJSON, err := json.Marshal(findings)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal findings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reports (id, project_id, health_score, summary, recommendations, counts, duration_seconds, findings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.ProjectID, report.HealthScore, report.Summary, string(recs), string(counts),
		report.DurationSeconds, string(findingsJSON), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("checkpoint: save report %s: %w", report.ID, err)
	}
	return nil
}

// Get loads a report by ID along with its findings.
func (s *ReportStore) Get(ctx context.Context, reportID string) (*models.Report, []models.ReviewFinding, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, health_score, summary, recommendations, counts, duration_seconds, findings
		FROM reports WHERE id = ?`, reportID)
	return scanReport(row)
}

// Latest loads the most recently saved report for projectID.
func (s *ReportStore) Latest(ctx context.Context, projectID string) (*models.Report, []models.ReviewFinding, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, health_score, summary, recommendations, counts, duration_seconds, findings
		FROM reports WHERE project_id = ? ORDER BY created_at DESC LIMIT 1`, projectID)
	return scanReport(row)
}

func scanReport(row *sql.Row) (*models.Report, []models.ReviewFinding, error) {
	var r models.Report
	var recs, counts, findingsJSON string
	if err := row.Scan(&r.ID, &r.ProjectID, &r.HealthScore, &r.Summary, &recs, &counts, &r.DurationSeconds, &findingsJSON); err != nil {
		return nil, nil, err
	}
	if err := json.Unmarshal([]byte(recs), &r.Recommendations); err != nil {
		return nil, nil, fmt.Errorf("checkpoint: unmarshal recommendations: %w", err)
	}
	if err := json.Unmarshal([]byte(counts), &r.Counts); err != nil {
		return nil, nil, fmt.Errorf("checkpoint: unmarshal counts: %w", err)
	}
	var findings []models.ReviewFinding
	if err := json.Unmarshal([]byte(findingsJSON), &findings); err != nil {
		return nil, nil, fmt.Errorf("checkpoint: unmarshal findings: %w", err)
	}
	return &r, findings, nil
}
