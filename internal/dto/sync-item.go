package dto

import (
	"github.com/google/uuid"
)

// SyncItem is one element of the outbound sync request array. Field names
// follow the indexing service's camelCase contract.
type SyncItem struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	Version      string         `json:"version"`
	Type         string         `json:"type"`
	Description  string         `json:"description,omitempty"`
	FilePath     string         `json:"filePath,omitempty"`
	SizeBytes    *int64         `json:"sizeBytes,omitempty"`
	Checksum     string         `json:"checksum,omitempty"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    string         `json:"createdAt"`
	UpdatedAt    string         `json:"updatedAt"`
	CI           *SyncItemCI    `json:"ci,omitempty"`
	IsSynced     *bool          `json:"isSynced,omitempty"`
	LastSyncTime *string        `json:"lastSyncTime,omitempty"`
}

type SyncItemCI struct {
	RepositoryURL string `json:"repositoryUrl,omitempty"`
	Branch        string `json:"branch,omitempty"`
	CommitHash    string `json:"commitHash,omitempty"`
	CommitAuthor  string `json:"commitAuthor,omitempty"`
	PipelineID    string `json:"pipelineId,omitempty"`
	BuildNumber   string `json:"buildNumber,omitempty"`
	BuildStatus   string `json:"buildStatus,omitempty"`
}
