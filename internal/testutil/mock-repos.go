package testutil

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"artifact-sync-service/internal/core/domain"
	ports "artifact-sync-service/internal/core/ports/output"
)

// MockArtifactRepo is a mock of ArtifactRepository.
type MockArtifactRepo struct {
	mock.Mock
}

func (m *MockArtifactRepo) Create(ctx context.Context, artifact *domain.Artifact) error {
	args := m.Called(ctx, artifact)
	return args.Error(0)
}

func (m *MockArtifactRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Artifact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Artifact), args.Error(1)
}

func (m *MockArtifactRepo) List(ctx context.Context, filter ports.ArtifactListFilter) ([]*domain.Artifact, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.Artifact), args.Int(1), args.Error(2)
}

func (m *MockArtifactRepo) ListPendingSync(ctx context.Context) ([]*domain.Artifact, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Artifact), args.Error(1)
}

func (m *MockArtifactRepo) MarkSynced(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	args := m.Called(ctx, ids, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockArtifactRepo) CountBySyncState(ctx context.Context) (domain.SyncCounts, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.SyncCounts), args.Error(1)
}

func (m *MockArtifactRepo) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockIndexerClient is a mock of IndexerClient.
type MockIndexerClient struct {
	mock.Mock
}

func (m *MockIndexerClient) PostBatch(ctx context.Context, batch domain.SyncBatch) (*ports.TransportResponse, error) {
	args := m.Called(ctx, batch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.TransportResponse), args.Error(1)
}

func (m *MockIndexerClient) Endpoint() string {
	return "http://indexer.test/api/sync"
}
