package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"artifact-sync-service/internal/adapters/primary/http/dto"
	"artifact-sync-service/internal/core/domain"
	ports "artifact-sync-service/internal/core/ports/output"
	"artifact-sync-service/internal/core/services"
	"artifact-sync-service/internal/testutil"
)

type testEnv struct {
	repo      *testutil.MemoryArtifactRepo
	indexer   *testutil.MockIndexerClient
	scheduler *services.SyncScheduler
	router    *gin.Engine
}

func setupRouter(t *testing.T, artifacts ...*domain.Artifact) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := testutil.NewMemoryArtifactRepo(artifacts...)
	indexer := new(testutil.MockIndexerClient)
	coordinator := services.NewSyncCoordinator(repo, indexer)
	scheduler := services.NewSyncScheduler(coordinator, time.Hour)

	h := New(services.NewArtifactService(repo), scheduler)
	r := gin.New()
	h.RegisterHealth(r)
	h.RegisterRoutes(r.Group("/api/v1"))

	return &testEnv{repo: repo, indexer: indexer, scheduler: scheduler, router: r}
}

func (e *testEnv) do(method, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func okResults(n int) *ports.TransportResponse {
	entries := make([]string, n)
	for i := range entries {
		entries[i] = `{"success":true}`
	}
	return &ports.TransportResponse{
		StatusCode: http.StatusOK,
		Body:       []byte(fmt.Sprintf(`{"results":[%s]}`, strings.Join(entries, ","))),
	}
}

func TestGetArtifact(t *testing.T) {
	a := testutil.PendingArtifacts(1)[0]
	env := setupRouter(t, a)

	w := env.do(http.MethodGet, "/api/v1/artifacts/"+a.ID.String())
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.ArtifactResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, a.ID, resp.ID)
	assert.Equal(t, "pending", resp.SyncState)
	assert.Nil(t, resp.LastSyncTime)
}

func TestGetArtifact_Errors(t *testing.T) {
	env := setupRouter(t)

	w := env.do(http.MethodGet, "/api/v1/artifacts/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, "/api/v1/artifacts/"+uuid.New().String())
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "artifact not found")
}

func TestListArtifacts(t *testing.T) {
	pending := testutil.PendingArtifacts(3)
	synced := testutil.SyncedArtifact("released", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	env := setupRouter(t, append(pending, synced)...)

	w := env.do(http.MethodGet, "/api/v1/artifacts?sync_state=pending&limit=2")
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.ListArtifactsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Total)
	assert.Len(t, resp.Items, 2)
	assert.Equal(t, 2, resp.PageSize)
	assert.Equal(t, 2, resp.NextOffset)

	w = env.do(http.MethodGet, "/api/v1/artifacts?sync_state=synced")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "synced", resp.Items[0].SyncState)
	assert.NotNil(t, resp.Items[0].LastSyncTime)
}

func TestListArtifacts_InvalidState(t *testing.T) {
	env := setupRouter(t)
	w := env.do(http.MethodGet, "/api/v1/artifacts?sync_state=archived")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunSync(t *testing.T) {
	artifacts := testutil.PendingArtifacts(2)
	env := setupRouter(t, artifacts...)
	env.indexer.On("PostBatch", mock.Anything, mock.AnythingOfType("domain.SyncBatch")).Return(okResults(2), nil).Once()

	w := env.do(http.MethodPost, "/api/v1/sync/run")
	require.Equal(t, http.StatusOK, w.Code)

	var report dto.CycleReportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, services.TriggerManual, report.Trigger)
	assert.Equal(t, "completed", report.Outcome)
	assert.Equal(t, 2, report.Synced)
	assert.Equal(t, domain.SyncStateSynced, env.repo.Get(artifacts[0].ID).SyncState())
	env.indexer.AssertExpectations(t)
}

func TestRunSync_IndexerDownStillReturnsReport(t *testing.T) {
	env := setupRouter(t, testutil.PendingArtifacts(1)...)
	env.indexer.On("PostBatch", mock.Anything, mock.Anything).
		Return(&ports.TransportResponse{StatusCode: http.StatusServiceUnavailable}, nil)

	w := env.do(http.MethodPost, "/api/v1/sync/run")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"transport_failure"`)
}

func TestRunSync_Busy(t *testing.T) {
	artifacts := testutil.PendingArtifacts(1)
	env := setupRouter(t, artifacts...)

	release := make(chan struct{})
	entered := make(chan struct{})
	env.indexer.On("PostBatch", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(okResults(1), nil).Once()

	go func() { _, _ = env.scheduler.TriggerNow(context.Background(), services.TriggerManual) }()
	<-entered

	w := env.do(http.MethodPost, "/api/v1/sync/run")
	assert.Equal(t, http.StatusConflict, w.Code)
	w = env.do(http.MethodPost, "/api/v1/sync/artifacts/"+artifacts[0].ID.String())
	assert.Equal(t, http.StatusConflict, w.Code)

	close(release)
}

func TestSyncArtifact(t *testing.T) {
	artifacts := testutil.PendingArtifacts(2)
	env := setupRouter(t, artifacts...)
	env.indexer.On("PostBatch", mock.Anything, domain.SyncBatch{env.repo.Get(artifacts[1].ID)}).
		Return(okResults(1), nil).Once()

	w := env.do(http.MethodPost, "/api/v1/sync/artifacts/"+artifacts[1].ID.String())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"trigger":"artifact"`)
	assert.Equal(t, domain.SyncStatePending, env.repo.Get(artifacts[0].ID).SyncState())
	assert.Equal(t, domain.SyncStateSynced, env.repo.Get(artifacts[1].ID).SyncState())

	w = env.do(http.MethodPost, "/api/v1/sync/artifacts/"+artifacts[1].ID.String())
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPost, "/api/v1/sync/artifacts/"+uuid.New().String())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSyncStatus(t *testing.T) {
	env := setupRouter(t, testutil.PendingArtifacts(2)...)
	env.indexer.On("PostBatch", mock.Anything, mock.Anything).
		Return(&ports.TransportResponse{StatusCode: http.StatusOK, Body: []byte(`{"results":[{"success":true}]}`)}, nil)
	_, err := env.scheduler.TriggerNow(context.Background(), services.TriggerManual)
	require.NoError(t, err)

	w := env.do(http.MethodGet, "/api/v1/sync/status")
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.SyncStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Running)
	assert.Equal(t, int64(1), resp.Pending)
	assert.Equal(t, int64(1), resp.Synced)
	assert.Equal(t, time.Hour.Milliseconds(), resp.IntervalMS)
	require.NotNil(t, resp.LastCycle)
	assert.Equal(t, 1, resp.LastCycle.Unresolved)
}

func TestHealthz(t *testing.T) {
	env := setupRouter(t)
	w := env.do(http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMapDomainError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrArtifactNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", domain.ErrArtifactNotFound), http.StatusNotFound},
		{domain.ErrCycleInProgress, http.StatusConflict},
		{domain.ErrArtifactAlreadySynced, http.StatusConflict},
		{domain.ErrInvalidSyncState, http.StatusBadRequest},
		{domain.ErrNotLeader, http.StatusServiceUnavailable},
		{domain.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		mapDomainError(c, tt.err)
		assert.Equal(t, tt.want, w.Code, tt.err.Error())
	}
}
