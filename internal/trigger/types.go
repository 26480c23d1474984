// Package trigger decides when a sync should run. Local saves are debounced;
// connectivity and focus changes request a sync right away.
package trigger

import (
	"context"
	"errors"
	"time"
)

// ErrSkipped is returned by a Handler when the run had nothing to do, for
// example because another sync was already in progress.
var ErrSkipped = errors.New("sync skipped")

// Reason is what caused a sync request.
type Reason string

const (
	// ReasonSave is a local mutation. Save triggers are debounced.
	ReasonSave Reason = "save"
	// ReasonOnline is the device regaining connectivity.
	ReasonOnline Reason = "online"
	// ReasonFocus is the app window gaining focus.
	ReasonFocus Reason = "focus"
	// ReasonVisible is the app becoming visible again.
	ReasonVisible Reason = "visible"
	// ReasonManual is an explicit user request.
	ReasonManual Reason = "manual"
	// ReasonStartup is the first sync after launch.
	ReasonStartup Reason = "startup"
)

// ParseReason maps a device event name to a Reason.
func ParseReason(s string) (Reason, bool) {
	switch r := Reason(s); r {
	case ReasonSave, ReasonOnline, ReasonFocus, ReasonVisible, ReasonManual, ReasonStartup:
		return r, true
	}
	return "", false
}

// Debounced reports whether requests with this reason are collapsed.
func (r Reason) Debounced() bool {
	return r == ReasonSave
}

// RunStatus represents the current status of a sync run.
type RunStatus string

const (
	// RunStatusPending indicates the run is waiting for the worker.
	RunStatusPending RunStatus = "pending"
	// RunStatusRunning indicates the sync is in progress.
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted indicates the sync finished successfully.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed indicates the sync reported an error.
	RunStatusFailed RunStatus = "failed"
	// RunStatusSkipped indicates the handler ran but no sync took place.
	RunStatusSkipped RunStatus = "skipped"
	// RunStatusCoalesced indicates the request was folded into a run
	// already waiting in the queue.
	RunStatusCoalesced RunStatus = "coalesced"
)

// Run records one sync request and its outcome.
type Run struct {
	// ID is the unique identifier for this run.
	ID string `json:"id"`

	// Reason is what requested the sync.
	Reason Reason `json:"reason"`

	// Status is the current status of the run.
	Status RunStatus `json:"status"`

	// CreatedAt is when the run was requested.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the worker picked the run up.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the run finished.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the run failed.
	Error string `json:"error,omitempty"`
}

// Handler performs the sync for a run.
type Handler func(ctx context.Context, run *Run) error

// RunStore keeps the history of sync runs.
type RunStore interface {
	// SaveRun saves or updates a run.
	SaveRun(ctx context.Context, run *Run) error

	// GetRun retrieves a run by ID.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns runs, newest first, with optional filtering.
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)
}

// RunFilter defines filtering criteria for listing runs.
type RunFilter struct {
	Reason Reason
	Status RunStatus
	Limit  int
}
