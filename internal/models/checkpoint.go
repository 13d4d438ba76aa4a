package models

import (
	"fmt"
	"time"
)

// Phase is a step of the job pipeline; JobCheckpoint.Phase is monotonic
// non-decreasing within a single run.
type Phase string

const (
	PhaseNotStarted      Phase = "NotStarted"
	PhaseExtracting      Phase = "Extracting"
	PhaseChunking        Phase = "Chunking"
	PhaseEmbedding       Phase = "Embedding"
	PhaseIndexing        Phase = "Indexing"
	PhaseAnalyzing       Phase = "Analyzing"
	PhaseGeneratingReport Phase = "GeneratingReport"
	PhaseCompleted       Phase = "Completed"
)

var phaseOrder = map[Phase]int{
	PhaseNotStarted:       0,
	PhaseExtracting:       1,
	PhaseChunking:         2,
	PhaseEmbedding:        3,
	PhaseIndexing:         4,
	PhaseAnalyzing:        5,
	PhaseGeneratingReport: 6,
	PhaseCompleted:        7,
}

// JobStatus is the lifecycle status of a JobCheckpoint.
type JobStatus string

const (
	JobPending       JobStatus = "Pending"
	JobInProgress    JobStatus = "InProgress"
	JobCompletedStat JobStatus = "Completed"
	JobFailed        JobStatus = "Failed"
	JobPendingRetry  JobStatus = "PendingRetry"
	JobDeadLettered  JobStatus = "DeadLettered"
)

// JobCheckpoint is durable job resume state.
type JobCheckpoint struct {
	ProjectID             string
	Phase                 Phase
	LastProcessedFileIndex int
	FilesProcessed        int
	ChunksIndexed         int
	EmbeddingsCreated     int
	ChunksSkipped         int
	TotalTokensProcessed  int64
	Status                JobStatus
	RetryCount            int
	LastCheckpointAt      time.Time
	SerializedState       []byte // opaque; holds the AnalysisPlan JSON
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// AdvancePhase moves the checkpoint to the given phase, rejecting any
// attempt to move backwards within the same run.
func (c *JobCheckpoint) AdvancePhase(to Phase, now time.Time) error {
	if phaseOrder[to] < phaseOrder[c.Phase] {
		return fmt.Errorf("checkpoint %s: phase cannot move backwards %s -> %s", c.ProjectID, c.Phase, to)
	}
	c.Phase = to
	c.LastCheckpointAt = now
	c.UpdatedAt = now
	return nil
}

// CanRetry reports whether the checkpoint's RetryCount is still below maxRetries.
func (c *JobCheckpoint) CanRetry(maxRetries int) bool {
	return c.RetryCount < maxRetries
}
