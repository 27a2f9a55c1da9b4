package domain

import (
	"time"

	"github.com/google/uuid"
)

type SyncState string

const (
	SyncStatePending SyncState = "pending"
	SyncStateSynced  SyncState = "synced"
)

func (s SyncState) Valid() bool {
	return s == SyncStatePending || s == SyncStateSynced
}

// Artifact is a build artifact tracked by the store. The sync subsystem only
// reads and writes IsSynced and LastSyncTime; everything else is payload that
// is passed downstream untouched.
type Artifact struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	Version      string         `json:"version"`
	Type         string         `json:"type"`
	Description  string         `json:"description"`
	FilePath     string         `json:"file_path"`
	SizeBytes    *int64         `json:"size_bytes"`
	Checksum     string         `json:"checksum"`
	Metadata     map[string]any `json:"metadata"`
	CI           CIInfo         `json:"ci"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	IsSynced     bool           `json:"is_synced"`
	LastSyncTime *time.Time     `json:"last_sync_time"`
}

// CIInfo carries the pipeline coordinates that produced the artifact.
type CIInfo struct {
	RepositoryURL string `json:"repository_url"`
	Branch        string `json:"branch"`
	CommitHash    string `json:"commit_hash"`
	CommitAuthor  string `json:"commit_author"`
	PipelineID    string `json:"pipeline_id"`
	BuildNumber   string `json:"build_number"`
	BuildStatus   string `json:"build_status"`
}

// SyncState reports pending for any record that was never stamped, even if the
// flag claims otherwise.
func (a *Artifact) SyncState() SyncState {
	if a.IsSynced && a.LastSyncTime != nil {
		return SyncStateSynced
	}
	return SyncStatePending
}

// IsCandidate reports whether the artifact still needs to be propagated.
func (a *Artifact) IsCandidate() bool {
	return a.SyncState() == SyncStatePending
}

// MarkSynced applies the pending -> synced transition in memory.
func (a *Artifact) MarkSynced(at time.Time) {
	a.IsSynced = true
	t := at
	a.LastSyncTime = &t
}

// SyncBatch is an ordered slice of candidates sent in one transport call.
// Order matters only for positional alignment with the response.
type SyncBatch []*Artifact

func (b SyncBatch) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(b))
	for _, a := range b {
		ids = append(ids, a.ID)
	}
	return ids
}

// Chunk splits the batch into consecutive batches of at most size records.
// A non-positive size returns the batch unchanged.
func (b SyncBatch) Chunk(size int) []SyncBatch {
	if len(b) == 0 {
		return nil
	}
	if size <= 0 || len(b) <= size {
		return []SyncBatch{b}
	}
	chunks := make([]SyncBatch, 0, (len(b)+size-1)/size)
	for start := 0; start < len(b); start += size {
		end := min(start+size, len(b))
		chunks = append(chunks, b[start:end])
	}
	return chunks
}

// SyncOutcome is the downstream verdict for one batch position.
type SyncOutcome struct {
	Success    bool
	Error      string
	ArtifactID string
}
