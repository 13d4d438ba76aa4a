// Package models holds the core data types the orchestrator reads and
// writes: Project, Chunk, vector entries, findings, reports, and job
// checkpoints, per the system's data model.
package models

import (
	"fmt"
	"time"
)

// ProjectStatus is a node in the Project status DAG.
type ProjectStatus string

const (
	ProjectCreated   ProjectStatus = "Created"
	ProjectFilesReady ProjectStatus = "FilesReady"
	ProjectQueued    ProjectStatus = "Queued"
	ProjectAnalyzing ProjectStatus = "Analyzing"
	ProjectCompleted ProjectStatus = "Completed"
	ProjectFailed    ProjectStatus = "Failed"
)

// SourceKind identifies how a project's content arrived.
type SourceKind string

const (
	SourceArchive   SourceKind = "archive"
	SourceRemoteURL SourceKind = "remote-url"
)

// validProjectTransitions encodes the status DAG: Created -> FilesReady ->
// Queued -> Analyzing -> {Completed, Failed}.
var validProjectTransitions = map[ProjectStatus][]ProjectStatus{
	ProjectCreated:    {ProjectFilesReady},
	ProjectFilesReady: {ProjectQueued},
	ProjectQueued:     {ProjectAnalyzing},
	ProjectAnalyzing:  {ProjectCompleted, ProjectFailed},
}

func (s ProjectStatus) IsTerminal() bool {
	return s == ProjectCompleted || s == ProjectFailed
}

// Project is an addressable analysis target.
type Project struct {
	ID           string
	Name         string
	Source       SourceKind
	StoragePath  string
	Status       ProjectStatus
	ErrorMessage string
	StartedAt    *time.Time
	CompletedAt  *time.Time
	FileCount    int
	LinesOfCode  int
}

// NewProject constructs a Project in its initial Created state.
func NewProject(id, name string, source SourceKind, storagePath string) *Project {
	return &Project{
		ID:          id,
		Name:        name,
		Source:      source,
		StoragePath: storagePath,
		Status:      ProjectCreated,
	}
}

// Transition moves the project to the given status, enforcing the
// status DAG and stamping Started/CompletedAt. A terminal state, once
// reached, cannot be transitioned away from; Reset rejects it too.
func (p *Project) Transition(to ProjectStatus, now time.Time) error {
	if p.Status.IsTerminal() {
		return fmt.Errorf("project %s: cannot transition from terminal state %s", p.ID, p.Status)
	}
	allowed := validProjectTransitions[p.Status]
	ok := false
	for _, a := range allowed {
		if a == to {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("project %s: invalid transition %s -> %s", p.ID, p.Status, to)
	}
	p.Status = to
	switch to {
	case ProjectAnalyzing:
		t := now
		p.StartedAt = &t
	case ProjectCompleted, ProjectFailed:
		t := now
		p.CompletedAt = &t
	}
	return nil
}

// Reset returns a stuck project (Analyzing or Queued) to FilesReady,
// clearing timestamps and the error message.
func (p *Project) Reset() error {
	if p.Status != ProjectAnalyzing && p.Status != ProjectQueued {
		return fmt.Errorf("project %s: reset only valid from Analyzing or Queued, got %s", p.ID, p.Status)
	}
	p.Status = ProjectFilesReady
	p.StartedAt = nil
	p.CompletedAt = nil
	p.ErrorMessage = ""
	return nil
}

// Fail transitions the project to Failed and records the error message.
func (p *Project) Fail(msg string, now time.Time) error {
	if err := p.Transition(ProjectFailed, now); err != nil {
		return err
	}
	p.ErrorMessage = msg
	return nil
}
