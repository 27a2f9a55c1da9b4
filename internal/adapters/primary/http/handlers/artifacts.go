package handlers

import (
	"net/http"
	"strconv"

	"artifact-sync-service/internal/adapters/primary/http/dto"
	"artifact-sync-service/internal/core/domain"
	ports "artifact-sync-service/internal/core/ports/output"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) GetArtifact(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrInvalidArtifactID.Error()})
		return
	}

	artifact, err := h.artifactSvc.Get(c.Request.Context(), id)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToArtifactResponse(artifact))
}

func (h *Handler) ListArtifacts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	filter := ports.ArtifactListFilter{
		SyncState: domain.SyncState(c.Query("sync_state")),
		Limit:     limit,
		Offset:    offset,
	}

	artifacts, total, err := h.artifactSvc.List(c.Request.Context(), filter)
	if err != nil {
		log.WithError(err).Error("list artifacts failed")
		mapDomainError(c, err)
		return
	}

	items := make([]dto.ArtifactResponse, 0, len(artifacts))
	for _, a := range artifacts {
		items = append(items, dto.ToArtifactResponse(a))
	}

	pageSize := limit
	if pageSize <= 0 {
		pageSize = 20
	} else if pageSize > 100 {
		pageSize = 100
	}
	c.JSON(http.StatusOK, dto.ListArtifactsResponse{
		Items:      items,
		Total:      total,
		PageSize:   pageSize,
		NextOffset: max(offset, 0) + len(items),
	})
}

func (h *Handler) Healthz(c *gin.Context) {
	if err := h.artifactSvc.Ping(c.Request.Context()); err != nil {
		log.WithError(err).Warn("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
