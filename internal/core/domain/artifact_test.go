package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestArtifact_SyncState(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name     string
		isSynced bool
		lastSync *time.Time
		want     SyncState
	}{
		{"never synced", false, nil, SyncStatePending},
		{"flag without timestamp", true, nil, SyncStatePending},
		{"timestamp without flag", false, &now, SyncStatePending},
		{"synced", true, &now, SyncStateSynced},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Artifact{IsSynced: tt.isSynced, LastSyncTime: tt.lastSync}
			assert.Equal(t, tt.want, a.SyncState())
			assert.Equal(t, tt.want == SyncStatePending, a.IsCandidate())
		})
	}
}

func TestArtifact_MarkSynced(t *testing.T) {
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	a := &Artifact{}
	a.MarkSynced(at)

	assert.True(t, a.IsSynced)
	assert.Equal(t, at, *a.LastSyncTime)
	assert.Equal(t, SyncStateSynced, a.SyncState())
}

func TestSyncBatch_Chunk(t *testing.T) {
	batch := make(SyncBatch, 5)
	for i := range batch {
		batch[i] = &Artifact{ID: uuid.New()}
	}

	assert.Nil(t, SyncBatch(nil).Chunk(2))
	assert.Len(t, batch.Chunk(0), 1)
	assert.Len(t, batch.Chunk(5), 1)

	chunks := batch.Chunk(2)
	assert.Len(t, chunks, 3)
	assert.Equal(t, batch[:2].IDs(), chunks[0].IDs())
	assert.Equal(t, batch[4:].IDs(), chunks[2].IDs())
}

func TestSyncState_Valid(t *testing.T) {
	assert.True(t, SyncStatePending.Valid())
	assert.True(t, SyncStateSynced.Valid())
	assert.False(t, SyncState("archived").Valid())
	assert.False(t, SyncState("").Valid())
}
