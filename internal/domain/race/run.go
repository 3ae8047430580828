package race

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
	RunFailed    RunStatus = "failed"
)

// Finished reports whether the run has reached a terminal status.
func (s RunStatus) Finished() bool {
	return s == RunCompleted || s == RunAborted || s == RunFailed
}

// RunResult is the outcome of one analysis run over a recorded race.
type RunResult struct {
	ID         uuid.UUID   `json:"id"`
	TrackName  string      `json:"track_name"`
	Status     RunStatus   `json:"status"`
	Error      string      `json:"error,omitempty"`
	Samples    int         `json:"samples"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at,omitempty"`
	Overlay    OverlayData `json:"overlay"`
}
