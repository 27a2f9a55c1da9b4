package dto

import (
	"time"

	"github.com/google/uuid"

	"artifact-sync-service/internal/core/domain"
)

type ArtifactResponse struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	Version      string         `json:"version"`
	Type         string         `json:"type"`
	Description  string         `json:"description"`
	FilePath     string         `json:"file_path"`
	SizeBytes    *int64         `json:"size_bytes"`
	Checksum     string         `json:"checksum"`
	Metadata     map[string]any `json:"metadata"`
	CI           CIResponse     `json:"ci"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
	SyncState    string         `json:"sync_state"`
	IsSynced     bool           `json:"is_synced"`
	LastSyncTime *string        `json:"last_sync_time"`
}

type CIResponse struct {
	RepositoryURL string `json:"repository_url,omitempty"`
	Branch        string `json:"branch,omitempty"`
	CommitHash    string `json:"commit_hash,omitempty"`
	CommitAuthor  string `json:"commit_author,omitempty"`
	PipelineID    string `json:"pipeline_id,omitempty"`
	BuildNumber   string `json:"build_number,omitempty"`
	BuildStatus   string `json:"build_status,omitempty"`
}

type ListArtifactsResponse struct {
	Items      []ArtifactResponse `json:"items"`
	Total      int                `json:"total"`
	PageSize   int                `json:"page_size"`
	NextOffset int                `json:"next_offset"`
}

func ToArtifactResponse(a *domain.Artifact) ArtifactResponse {
	resp := ArtifactResponse{
		ID:          a.ID,
		Name:        a.Name,
		Version:     a.Version,
		Type:        a.Type,
		Description: a.Description,
		FilePath:    a.FilePath,
		SizeBytes:   a.SizeBytes,
		Checksum:    a.Checksum,
		Metadata:    a.Metadata,
		CI: CIResponse{
			RepositoryURL: a.CI.RepositoryURL,
			Branch:        a.CI.Branch,
			CommitHash:    a.CI.CommitHash,
			CommitAuthor:  a.CI.CommitAuthor,
			PipelineID:    a.CI.PipelineID,
			BuildNumber:   a.CI.BuildNumber,
			BuildStatus:   a.CI.BuildStatus,
		},
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
		UpdatedAt: a.UpdatedAt.Format(time.RFC3339),
		SyncState: string(a.SyncState()),
		IsSynced:  a.IsSynced,
	}
	if resp.Metadata == nil {
		resp.Metadata = map[string]any{}
	}
	if a.LastSyncTime != nil {
		s := a.LastSyncTime.Format(time.RFC3339)
		resp.LastSyncTime = &s
	}
	return resp
}
