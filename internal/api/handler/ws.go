package handler

import (
	"strangerchat/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ServeWebSocket upgrades an authenticated participant to a live client.
// A newer connection of the same participant replaces the older one.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	id := subject(c)
	if _, err := h.Hub.EnsureParticipant(c.Request.Context(), id, ""); err != nil {
		h.respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.logger.Debug("websocket upgrade failed", zap.Int64("participant_id", id), zap.Error(err))
		return
	}

	client := chathub.NewWebSocketClient(id, conn, h.Hub, h.logger)
	h.Hub.Router.Register(client)
	client.Run()
	h.logger.Info("websocket client connected", zap.Int64("participant_id", id))
}
