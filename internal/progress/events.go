// Package progress implements the Progress Channel: push delivery of
// progress/partial-finding/completion events, scoped per project, to
// subscribers such as a UI or the watchdog.
package progress

import (
	"time"

	"github.com/iasik/orchestrator/internal/models"
)

// EventType identifies which of the three Progress Channel shapes an
// Event carries.
type EventType string

const (
	EventProgressUpdate EventType = "progress.update"
	EventPartialFinding EventType = "progress.partial_finding"
	EventJobCompletion  EventType = "progress.job_completion"
)

// Event envelopes one Progress Channel message. Ordering for a single
// ProjectID is producer-order FIFO; subscribers must tolerate
// reordering across projects and possible redelivery.
type Event struct {
	Type      EventType
	ProjectID string
	Timestamp time.Time
	Payload   any
}

func newEvent(eventType EventType, projectID string, payload any) Event {
	return Event{Type: eventType, ProjectID: projectID, Timestamp: time.Now(), Payload: payload}
}

// ProgressUpdate reports job progress for a project.
type ProgressUpdate struct {
	ProjectID       string
	Phase           models.Phase
	ProgressPercent float64
	CurrentFile     string
	FilesProcessed  int
	TotalFiles      int
}

// PartialFinding streams one finding as soon as an agent produces it,
// ahead of the final Report.
type PartialFinding struct {
	ProjectID string
	Finding   models.ReviewFinding
	Timestamp time.Time
}

// JobCompletion marks the terminal outcome of a project's analysis job.
type JobCompletion struct {
	ProjectID string
	IsSuccess bool
	ReportID  string
	ErrorKind string
}

// NewProgressUpdate builds a ProgressUpdate Event.
func NewProgressUpdate(u ProgressUpdate) Event {
	return newEvent(EventProgressUpdate, u.ProjectID, u)
}

// NewPartialFinding builds a PartialFinding Event.
func NewPartialFinding(f PartialFinding) Event {
	return newEvent(EventPartialFinding, f.ProjectID, f)
}

// NewJobCompletion builds a JobCompletion Event.
func NewJobCompletion(c JobCompletion) Event {
	return newEvent(EventJobCompletion, c.ProjectID, c)
}

// Handler processes one delivered Event.
type Handler func(Event)
