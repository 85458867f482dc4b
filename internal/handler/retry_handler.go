package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/media-moderation-api/internal/dto"
	"github.com/noah-isme/media-moderation-api/internal/models"
	"github.com/noah-isme/media-moderation-api/internal/service"
	appErrors "github.com/noah-isme/media-moderation-api/pkg/errors"
	"github.com/noah-isme/media-moderation-api/pkg/response"
)

// RetryHandler exposes the operational surface of the retry queue.
type RetryHandler struct {
	retries *service.RetryService
}

// NewRetryHandler constructs handler.
func NewRetryHandler(retries *service.RetryService) *RetryHandler {
	return &RetryHandler{retries: retries}
}

// AddOperation godoc
// @Summary Enqueue a retry operation
// @Tags Retry
// @Accept json
// @Produce json
// @Param body body dto.AddRetryOperationRequest true "Operation"
// @Success 201 {object} response.Envelope
// @Router /retry/operations [post]
func (h *RetryHandler) AddOperation(c *gin.Context) {
	var req dto.AddRetryOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	op := &models.RetryOperation{
		Type:       req.Type,
		TrackingID: req.TrackingID,
		BatchID:    req.BatchID,
		TenantSlug: req.TenantSlug,
		AssetID:    req.AssetID,
		Payload:    req.Payload,
		Priority:   req.Priority,
	}
	id, err := h.retries.Enqueue(c.Request.Context(), op)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.AddRetryOperationResponse{Success: true, OperationID: id})
}

// Statistics godoc
// @Summary Retry queue statistics
// @Tags Retry
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /retry/statistics [get]
func (h *RetryHandler) Statistics(c *gin.Context) {
	stats, err := h.retries.Statistics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats)
}
