package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/media-moderation-api/internal/dto"
	"github.com/noah-isme/media-moderation-api/internal/middleware"
	"github.com/noah-isme/media-moderation-api/internal/models"
	"github.com/noah-isme/media-moderation-api/internal/service"
	appErrors "github.com/noah-isme/media-moderation-api/pkg/errors"
	"github.com/noah-isme/media-moderation-api/pkg/response"
)

// SessionHandler serves the administrator real-time stream and the
// notification statistics surface.
type SessionHandler struct {
	notifications *service.NotificationService
}

// NewSessionHandler constructs handler.
func NewSessionHandler(notifications *service.NotificationService) *SessionHandler {
	return &SessionHandler{notifications: notifications}
}

// Stream godoc
// @Summary Live notification stream
// @Tags Notifications
// @Produce text/event-stream
// @Param tenantScope query string false "Tenant scope override"
// @Success 200
// @Router /admin/notifications/stream [get]
func (h *SessionHandler) Stream(c *gin.Context) {
	claims := middleware.CurrentAdmin(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.RegisterSessionRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	scope := req.TenantScope
	if scope == "" {
		scope = claims.TenantScope
	}

	sessionID := uuid.NewString()
	sess := h.notifications.RegisterSession(sessionID, claims.AdminID, scope, req.Preferences)
	defer h.notifications.UnregisterSession(sessionID)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.SSEvent("session", models.PushMessage{Type: "session_established", SessionID: sessionID})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-sess.Push:
			if !ok {
				return false
			}
			c.SSEvent("notification", msg)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// Statistics godoc
// @Summary Notification statistics
// @Tags Notifications
// @Produce json
// @Param tenantSlug query string false "Tenant filter"
// @Success 200 {object} response.Envelope
// @Router /notifications/statistics [get]
func (h *SessionHandler) Statistics(c *gin.Context) {
	stats, err := h.notifications.Statistics(c.Request.Context(), c.Query("tenantSlug"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats)
}
