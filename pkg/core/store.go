package core

import "time"

// Store is the persistence interface for runs, outcomes and lineage.
// Implementations serialize lineage appends per record id; appends to
// different records may proceed in parallel.
type Store interface {
	Open(path string) error
	Close() error
	Migrate() error

	// Run operations
	CreateRun(environment string) (*Run, error)
	GetRun(id string) (*Run, error)
	GetLatestRun(environment string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	UpdateRunCounts(id string, records, quarantined int) error

	// Outcome operations (append-only)
	RecordOutcomes(runID string, outcomes []Outcome) error
	GetOutcomesForRun(runID string) ([]Outcome, error)

	// Lineage operations (append-only)
	AppendLineage(runID string, entries []LineageEntry) error
	GetTrail(recordID string) ([]LineageEntry, error)
}

// RunStatus represents the status of a pipeline run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run represents one execution of the pipeline over a batch of records.
type Run struct {
	ID               string
	Environment      string
	Status           RunStatus
	StartedAt        time.Time
	CompletedAt      *time.Time
	Error            string
	RecordCount      int
	QuarantinedCount int
}
