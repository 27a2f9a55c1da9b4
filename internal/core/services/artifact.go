package services

import (
	"context"

	"github.com/google/uuid"

	"artifact-sync-service/internal/core/domain"
	ports "artifact-sync-service/internal/core/ports/output"
)

// ArtifactService is the read side of the artifact store. Ingestion and
// edits happen elsewhere.
type ArtifactService struct {
	repo ports.ArtifactRepository
}

func NewArtifactService(repo ports.ArtifactRepository) *ArtifactService {
	return &ArtifactService{repo: repo}
}

func (s *ArtifactService) Get(ctx context.Context, id uuid.UUID) (*domain.Artifact, error) {
	if id == uuid.Nil {
		return nil, domain.ErrInvalidArtifactID
	}
	return s.repo.GetByID(ctx, id)
}

func (s *ArtifactService) List(ctx context.Context, filter ports.ArtifactListFilter) ([]*domain.Artifact, int, error) {
	if filter.SyncState != "" && !filter.SyncState.Valid() {
		return nil, 0, domain.ErrInvalidSyncState
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

func (s *ArtifactService) Counts(ctx context.Context) (domain.SyncCounts, error) {
	return s.repo.CountBySyncState(ctx)
}

func (s *ArtifactService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
