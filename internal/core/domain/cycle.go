package domain

import (
	"time"

	"github.com/google/uuid"
)

type CycleOutcome string

const (
	CycleOutcomeIdle              CycleOutcome = "idle"
	CycleOutcomeCompleted         CycleOutcome = "completed"
	CycleOutcomeTransportFailure  CycleOutcome = "transport_failure"
	CycleOutcomeMalformedResponse CycleOutcome = "malformed_response"
	CycleOutcomeStoreFailure      CycleOutcome = "store_failure"
)

// CycleReport summarizes one reconciliation cycle. Cycles never fail their
// caller; the report is the only trace of what happened.
type CycleReport struct {
	CycleID    uuid.UUID    `json:"cycle_id"`
	Trigger    string       `json:"trigger"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Outcome    CycleOutcome `json:"outcome"`
	Candidates int          `json:"candidates"`
	Batches    int          `json:"batches"`
	Sent       int          `json:"sent"`
	Synced     int          `json:"synced"`
	Failed     int          `json:"failed"`
	Unresolved int          `json:"unresolved"`
	Committed  int64        `json:"committed"`
	Error      string       `json:"error,omitempty"`
}

func (r *CycleReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Aborted reports whether the cycle stopped before interpreting every batch.
func (r *CycleReport) Aborted() bool {
	switch r.Outcome {
	case CycleOutcomeTransportFailure, CycleOutcomeMalformedResponse, CycleOutcomeStoreFailure:
		return true
	}
	return false
}

// SyncCounts is a snapshot of how many artifacts sit in each sync state.
type SyncCounts struct {
	Pending int64 `json:"pending"`
	Synced  int64 `json:"synced"`
}
