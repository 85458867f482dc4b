package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/media-moderation-api/internal/dto"
	"github.com/noah-isme/media-moderation-api/internal/service"
	"github.com/noah-isme/media-moderation-api/pkg/response"
)

// StorageHandler exposes per-tier storage statistics.
type StorageHandler struct {
	storage *service.StorageService
}

// NewStorageHandler constructs handler.
func NewStorageHandler(storage *service.StorageService) *StorageHandler {
	return &StorageHandler{storage: storage}
}

// Statistics godoc
// @Summary Storage tier statistics
// @Tags Storage
// @Produce json
// @Param tenantSlug query string false "Tenant filter"
// @Success 200 {object} response.Envelope
// @Router /storage/statistics [get]
func (h *StorageHandler) Statistics(c *gin.Context) {
	tenant := c.Query("tenantSlug")
	tiers, err := h.storage.Statistics(c.Request.Context(), tenant)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.StorageStatisticsResponse{TenantSlug: tenant, Tiers: tiers})
}
