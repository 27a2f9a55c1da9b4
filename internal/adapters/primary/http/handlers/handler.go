package handlers

import (
	"artifact-sync-service/internal/core/services"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	artifactSvc *services.ArtifactService
	scheduler   *services.SyncScheduler
}

func New(artifactSvc *services.ArtifactService, scheduler *services.SyncScheduler) *Handler {
	return &Handler{
		artifactSvc: artifactSvc,
		scheduler:   scheduler,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	// Artifacts (read side)
	r.GET("/artifacts", h.ListArtifacts)
	r.GET("/artifacts/:id", h.GetArtifact)

	// Sync
	r.GET("/sync/status", h.GetSyncStatus)
	r.POST("/sync/run", h.RunSync)
	r.POST("/sync/artifacts/:id", h.SyncArtifact)
}

// RegisterHealth mounts the liveness probe outside the versioned API.
func (h *Handler) RegisterHealth(r gin.IRoutes) {
	r.GET("/healthz", h.Healthz)
}
