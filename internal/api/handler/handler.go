// Package handler exposes the HTTP surface of the service: the admin API,
// the WebSocket endpoint for live participants, health and metrics.
package handler

import (
	"net/http"
	"time"

	"strangerchat/backend/internal/chathub"
	"strangerchat/backend/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Options configures a Handler.
type Options struct {
	JWTSecret string
	// TokenTTL bounds anonymous participant tokens.
	TokenTTL time.Duration
	Logger   *zap.Logger
}

// Handler holds the dependencies of the HTTP endpoints.
type Handler struct {
	Hub *chathub.ManagerService

	secret   []byte
	tokenTTL time.Duration
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewHandler(hub *chathub.ManagerService, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Handler{
		Hub:      hub,
		secret:   []byte(opts.JWTSecret),
		tokenTTL: ttl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Routes builds the gin engine with every endpoint registered.
func (h *Handler) Routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLog())

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.GET("/api/anon", h.GetAnonID)
	r.GET("/ws", h.authenticate(RoleParticipant), h.ServeWebSocket)

	admin := r.Group("/api", h.authenticate(RoleAdmin), h.requireAdmin)
	{
		admin.GET("/reports/:id", h.GetReport)
		admin.POST("/reports/:id/decision", h.DecideReport)
		admin.POST("/bans", h.CreateBan)
		admin.GET("/bans/:id", h.GetBan)
		admin.DELETE("/bans/:id", h.DeleteBan)
		admin.POST("/admins", h.CreateAdmin)
		admin.DELETE("/admins/:id", h.DeleteAdmin)
		admin.GET("/pairings/:id/messages", h.GetPairingMessages)
		admin.GET("/stats", h.GetStats)
	}
	return r
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
