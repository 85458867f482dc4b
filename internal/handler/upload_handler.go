package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/media-moderation-api/internal/dto"
	"github.com/noah-isme/media-moderation-api/internal/service"
	appErrors "github.com/noah-isme/media-moderation-api/pkg/errors"
	"github.com/noah-isme/media-moderation-api/pkg/response"
)

// UploadHandler exposes the submission endpoint the CRUD layer calls when new
// media enters moderation.
type UploadHandler struct {
	uploads *service.UploadService
}

// NewUploadHandler constructs handler.
func NewUploadHandler(uploads *service.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// Submit godoc
// @Summary Submit media for moderation
// @Tags Moderation
// @Accept json
// @Produce json
// @Param body body dto.SubmitMediaRequest true "Submission metadata"
// @Success 202 {object} response.Envelope
// @Router /media/submit [post]
func (h *UploadHandler) Submit(c *gin.Context) {
	var req dto.SubmitMediaRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	result, err := h.uploads.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, result)
}
