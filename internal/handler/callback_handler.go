package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/media-moderation-api/internal/dto"
	"github.com/noah-isme/media-moderation-api/internal/service"
	appErrors "github.com/noah-isme/media-moderation-api/pkg/errors"
	"github.com/noah-isme/media-moderation-api/pkg/response"
)

// CallbackHandler receives verdicts from the external classifier.
type CallbackHandler struct {
	callbacks *service.CallbackService
}

// NewCallbackHandler constructs handler.
func NewCallbackHandler(callbacks *service.CallbackService) *CallbackHandler {
	return &CallbackHandler{callbacks: callbacks}
}

// Verdict godoc
// @Summary Classifier verdict callback
// @Tags Moderation
// @Accept json
// @Produce json
// @Param body body dto.VerdictRequest true "Verdict"
// @Success 200 {object} response.Envelope
// @Router /moderation/callback [post]
func (h *CallbackHandler) Verdict(c *gin.Context) {
	var req dto.VerdictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	if err := h.callbacks.HandleVerdict(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"received": true})
}
