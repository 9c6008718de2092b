package types

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// ROW OUTCOMES
// =============================================================================

// Status is the outcome of processing one row.
type Status string

const (
	StatusCreated     Status = "created"
	StatusOverwritten Status = "overwritten"
	StatusRejected    Status = "rejected"
	StatusFailed      Status = "failed"
)

// StatusFor classifies a row error. Duplicate keys and validation failures
// are rejections; everything else is a failure.
func StatusFor(err error) Status {
	switch {
	case errors.Is(err, ErrDuplicateKey), errors.Is(err, ErrValidation):
		return StatusRejected
	default:
		return StatusFailed
	}
}

// RowResult represents the outcome of processing a single request row.
type RowResult struct {
	// Kind is the entity type of the row.
	Kind Kind

	// Row is the 1-based position of the row within its sheet.
	Row int

	// Key is the primary key value, empty if the row had none.
	Key string

	// Document is the registry file the row targeted.
	Document string

	// Status is the outcome.
	Status Status

	// Err is set for rejected and failed rows.
	Err error
}

// OK reports whether the row changed the registry.
func (r RowResult) OK() bool {
	return r.Status == StatusCreated || r.Status == StatusOverwritten
}

// =============================================================================
// LOG ENTRIES
// =============================================================================

// Level is the severity of a log entry.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// LogEntry is one human-readable progress line produced by a batch.
type LogEntry struct {
	Time    time.Time
	Level   Level
	Message string
}

// String renders the entry the way the output log shows it.
func (e LogEntry) String() string {
	return fmt.Sprintf("%s: %s", e.Time.Format("2006-01-02 15:04:05"), e.Message)
}

// =============================================================================
// BATCH REPORT
// =============================================================================

// Report aggregates the outcome of one batch.
type Report struct {
	// RunID identifies the batch in logs.
	RunID string

	Source   string
	Started  time.Time
	Finished time.Time

	// Rows holds one result per processed row, in processing order.
	Rows []RowResult

	// Log holds the ordered progress log.
	Log []LogEntry
}

// Count returns the number of rows with the given status.
func (r *Report) Count(status Status) int {
	n := 0
	for _, row := range r.Rows {
		if row.Status == status {
			n++
		}
	}
	return n
}

// Elapsed returns the wall time the batch took.
func (r *Report) Elapsed() time.Duration {
	return r.Finished.Sub(r.Started)
}
