package dto

import (
	"time"

	"github.com/google/uuid"

	"artifact-sync-service/internal/core/domain"
	"artifact-sync-service/internal/core/services"
)

type CycleReportResponse struct {
	CycleID    uuid.UUID `json:"cycle_id"`
	Trigger    string    `json:"trigger"`
	Outcome    string    `json:"outcome"`
	StartedAt  string    `json:"started_at"`
	FinishedAt string    `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`
	Candidates int       `json:"candidates"`
	Batches    int       `json:"batches"`
	Synced     int       `json:"synced"`
	Failed     int       `json:"failed"`
	Unresolved int       `json:"unresolved"`
	Committed  int64     `json:"committed"`
	Error      string    `json:"error,omitempty"`
}

type SyncStatusResponse struct {
	Running    bool                 `json:"running"`
	InFlight   bool                 `json:"in_flight"`
	IntervalMS int64                `json:"interval_ms"`
	NextRunAt  *string              `json:"next_run_at"`
	LastCycle  *CycleReportResponse `json:"last_cycle"`
	Pending    int64                `json:"pending"`
	Synced     int64                `json:"synced"`
}

func ToCycleReportResponse(r *domain.CycleReport) *CycleReportResponse {
	if r == nil {
		return nil
	}
	return &CycleReportResponse{
		CycleID:    r.CycleID,
		Trigger:    r.Trigger,
		Outcome:    string(r.Outcome),
		StartedAt:  r.StartedAt.Format(time.RFC3339),
		FinishedAt: r.FinishedAt.Format(time.RFC3339),
		DurationMS: r.Duration().Milliseconds(),
		Candidates: r.Candidates,
		Batches:    r.Batches,
		Synced:     r.Synced,
		Failed:     r.Failed,
		Unresolved: r.Unresolved,
		Committed:  r.Committed,
		Error:      r.Error,
	}
}

func ToSyncStatusResponse(st services.SchedulerStatus, counts domain.SyncCounts) SyncStatusResponse {
	resp := SyncStatusResponse{
		Running:    st.Running,
		InFlight:   st.InFlight,
		IntervalMS: st.IntervalMS,
		LastCycle:  ToCycleReportResponse(st.LastCycle),
		Pending:    counts.Pending,
		Synced:     counts.Synced,
	}
	if st.NextRunAt != nil {
		s := st.NextRunAt.Format(time.RFC3339)
		resp.NextRunAt = &s
	}
	return resp
}
