package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"artifact-sync-service/internal/core/domain"
)

type ArtifactListFilter struct {
	SyncState domain.SyncState
	Limit     int
	Offset    int
}

// ArtifactRepository is the artifact store as seen by the sync subsystem and
// the read-only operations surface.
type ArtifactRepository interface {
	Create(ctx context.Context, artifact *domain.Artifact) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Artifact, error)
	List(ctx context.Context, filter ArtifactListFilter) ([]*domain.Artifact, int, error)

	// ListPendingSync returns every artifact that is not yet synced, in no
	// guaranteed order. An empty result is not an error.
	ListPendingSync(ctx context.Context) ([]*domain.Artifact, error)

	// MarkSynced flips the given artifacts to synced with the given timestamp
	// in one transaction. Ids that no longer exist or are already synced are
	// skipped; the returned count is the number of rows actually transitioned.
	MarkSynced(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error)

	CountBySyncState(ctx context.Context) (domain.SyncCounts, error)
	Ping(ctx context.Context) error
}
