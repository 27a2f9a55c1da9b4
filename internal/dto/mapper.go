package dto

import (
	"encoding/json"
	"fmt"
	"time"

	"artifact-sync-service/internal/core/domain"
)

const timeFormat = time.RFC3339

// ToSyncItem maps a stored artifact to its wire form. Sync bookkeeping
// (isSynced, lastSyncTime) is only emitted when includeState is set.
func ToSyncItem(a *domain.Artifact, includeState bool) SyncItem {
	item := SyncItem{
		ID:          a.ID,
		Name:        a.Name,
		Version:     a.Version,
		Type:        a.Type,
		Description: a.Description,
		FilePath:    a.FilePath,
		SizeBytes:   a.SizeBytes,
		Checksum:    a.Checksum,
		Metadata:    a.Metadata,
		CreatedAt:   a.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:   a.UpdatedAt.UTC().Format(timeFormat),
	}
	if item.Metadata == nil {
		item.Metadata = map[string]any{}
	}
	if a.CI != (domain.CIInfo{}) {
		item.CI = &SyncItemCI{
			RepositoryURL: a.CI.RepositoryURL,
			Branch:        a.CI.Branch,
			CommitHash:    a.CI.CommitHash,
			CommitAuthor:  a.CI.CommitAuthor,
			PipelineID:    a.CI.PipelineID,
			BuildNumber:   a.CI.BuildNumber,
			BuildStatus:   a.CI.BuildStatus,
		}
	}

	if includeState {
		synced := a.IsSynced
		item.IsSynced = &synced
		if a.LastSyncTime != nil {
			ts := a.LastSyncTime.UTC().Format(timeFormat)
			item.LastSyncTime = &ts
		}
	}
	return item
}

// ToSyncPayload encodes a batch as the ordered JSON array the indexing
// service expects. Position i of the array is batch[i].
func ToSyncPayload(batch domain.SyncBatch, includeState bool) ([]byte, error) {
	items := make([]SyncItem, 0, len(batch))
	for _, a := range batch {
		items = append(items, ToSyncItem(a, includeState))
	}
	body, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal sync payload: %w", err)
	}
	return body, nil
}
