package handlers

import (
	"context"
	"net/http"

	"artifact-sync-service/internal/adapters/primary/http/dto"
	"artifact-sync-service/internal/core/domain"
	"artifact-sync-service/internal/core/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) GetSyncStatus(c *gin.Context) {
	counts, err := h.artifactSvc.Counts(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("count artifacts by sync state failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToSyncStatusResponse(h.scheduler.Status(), counts))
}

// RunSync runs a full cycle synchronously and returns its report. The cycle
// outcome is reported in the body; only a refused start is an HTTP error.
// A client disconnect does not cancel the cycle.
func (h *Handler) RunSync(c *gin.Context) {
	report, err := h.scheduler.TriggerNow(context.WithoutCancel(c.Request.Context()), services.TriggerManual)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToCycleReportResponse(report))
}

func (h *Handler) SyncArtifact(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrInvalidArtifactID.Error()})
		return
	}

	report, err := h.scheduler.SyncArtifact(context.WithoutCancel(c.Request.Context()), id)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToCycleReportResponse(report))
}
