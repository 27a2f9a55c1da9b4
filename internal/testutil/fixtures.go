package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"artifact-sync-service/internal/core/domain"
)

// PendingArtifacts builds n never-synced artifacts with increasing creation
// times, so stores that order by created_at return them in slice order.
func PendingArtifacts(n int) []*domain.Artifact {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*domain.Artifact, 0, n)
	for i := 0; i < n; i++ {
		created := base.Add(time.Duration(i) * time.Minute)
		out = append(out, &domain.Artifact{
			ID:        uuid.New(),
			Name:      fmt.Sprintf("artifact-%02d", i),
			Version:   "1.0.0",
			Type:      "binary",
			Metadata:  map[string]any{"index": i},
			CreatedAt: created,
			UpdatedAt: created,
		})
	}
	return out
}

// SyncedArtifact builds an artifact that was already propagated at syncedAt.
func SyncedArtifact(name string, syncedAt time.Time) *domain.Artifact {
	a := &domain.Artifact{
		ID:        uuid.New(),
		Name:      name,
		Version:   "1.0.0",
		Type:      "binary",
		CreatedAt: syncedAt.Add(-time.Hour),
		UpdatedAt: syncedAt.Add(-time.Hour),
	}
	a.MarkSynced(syncedAt)
	return a
}
