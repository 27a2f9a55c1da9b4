package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"artifact-sync-service/internal/core/domain"
	ports "artifact-sync-service/internal/core/ports/output"
)

// MemoryArtifactRepo is an in-memory ArtifactRepository for service tests.
// It hands out copies so callers cannot mutate stored state behind its back.
type MemoryArtifactRepo struct {
	mu        sync.Mutex
	items     map[uuid.UUID]*domain.Artifact
	commits   int
	CommitErr error
}

func NewMemoryArtifactRepo(artifacts ...*domain.Artifact) *MemoryArtifactRepo {
	r := &MemoryArtifactRepo{items: make(map[uuid.UUID]*domain.Artifact)}
	for _, a := range artifacts {
		r.items[a.ID] = clone(a)
	}
	return r
}

func (r *MemoryArtifactRepo) Create(_ context.Context, artifact *domain.Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.Name == artifact.Name && existing.Version == artifact.Version {
			return domain.ErrArtifactConflict
		}
	}
	r.items[artifact.ID] = clone(artifact)
	return nil
}

func (r *MemoryArtifactRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil, domain.ErrArtifactNotFound
	}
	return clone(a), nil
}

func (r *MemoryArtifactRepo) List(_ context.Context, filter ports.ArtifactListFilter) ([]*domain.Artifact, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*domain.Artifact
	for _, a := range r.sorted() {
		if filter.SyncState != "" && a.SyncState() != filter.SyncState {
			continue
		}
		matched = append(matched, clone(a))
	}
	total := len(matched)
	if filter.Offset >= total {
		return []*domain.Artifact{}, total, nil
	}
	end := total
	if filter.Limit > 0 {
		end = min(filter.Offset+filter.Limit, total)
	}
	return matched[filter.Offset:end], total, nil
}

func (r *MemoryArtifactRepo) ListPendingSync(_ context.Context) ([]*domain.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Artifact
	for _, a := range r.sorted() {
		if a.IsCandidate() {
			out = append(out, clone(a))
		}
	}
	return out, nil
}

func (r *MemoryArtifactRepo) MarkSynced(_ context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CommitErr != nil {
		return 0, r.CommitErr
	}
	r.commits++
	var n int64
	for _, id := range ids {
		a, ok := r.items[id]
		if !ok || !a.IsCandidate() {
			continue
		}
		a.MarkSynced(at)
		n++
	}
	return n, nil
}

func (r *MemoryArtifactRepo) CountBySyncState(_ context.Context) (domain.SyncCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var counts domain.SyncCounts
	for _, a := range r.items {
		if a.IsCandidate() {
			counts.Pending++
		} else {
			counts.Synced++
		}
	}
	return counts, nil
}

func (r *MemoryArtifactRepo) Ping(context.Context) error {
	return nil
}

// Delete removes an artifact, simulating a concurrent delete elsewhere.
func (r *MemoryArtifactRepo) Delete(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
}

// Commits is the number of successful MarkSynced calls.
func (r *MemoryArtifactRepo) Commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commits
}

// Get returns the stored artifact without the error plumbing, or nil.
func (r *MemoryArtifactRepo) Get(id uuid.UUID) *domain.Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok {
		return nil
	}
	return clone(a)
}

// sorted returns stored artifacts in creation order; callers hold the lock.
func (r *MemoryArtifactRepo) sorted() []*domain.Artifact {
	out := make([]*domain.Artifact, 0, len(r.items))
	for _, a := range r.items {
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func clone(a *domain.Artifact) *domain.Artifact {
	c := *a
	if a.LastSyncTime != nil {
		t := *a.LastSyncTime
		c.LastSyncTime = &t
	}
	if a.Metadata != nil {
		c.Metadata = make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
