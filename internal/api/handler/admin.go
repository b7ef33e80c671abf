package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"strangerchat/backend/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// requireAdmin rejects tokens whose subject is no longer an administrator.
func (h *Handler) requireAdmin(c *gin.Context) {
	ok, err := h.Hub.IsAdmin(c.Request.Context(), subject(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !ok {
		h.respondError(c, models.ErrPermissionDenied)
		return
	}
	c.Next()
}

type decisionRequest struct {
	Action models.ModerationAction `json:"action" binding:"required"`
}

type banRequest struct {
	TargetID int64  `json:"target_id" binding:"required"`
	Reason   string `json:"reason"`
}

type adminRequest struct {
	ID       int64  `json:"id" binding:"required"`
	Username string `json:"username" binding:"required"`
}

type banResponse struct {
	Ban            *models.BanRecord `json:"ban"`
	IssuerUsername string            `json:"issuer_username,omitempty"`
	IssuedByOwner  bool              `json:"issued_by_owner"`
}

func (h *Handler) GetReport(c *gin.Context) {
	id, ok := h.uintParam(c)
	if !ok {
		return
	}
	report, err := h.Hub.Storage.GetReport(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) DecideReport(c *gin.Context) {
	id, ok := h.uintParam(c)
	if !ok {
		return
	}
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	cmd := models.ModerationCommand{Action: req.Action, Subject: models.SubjectReport, ID: id}
	if err := cmd.Validate(); err != nil {
		h.respondError(c, err)
		return
	}
	out, err := h.Hub.ResolveReport(c.Request.Context(), subject(c), cmd)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": out.Report, "undelivered_notices": len(out.Warnings)})
}

func (h *Handler) CreateBan(c *gin.Context) {
	var req banRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	out, err := h.Hub.Ban(c.Request.Context(), subject(c), req.TargetID, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out.Ban)
}

func (h *Handler) GetBan(c *gin.Context) {
	target, ok := h.int64Param(c)
	if !ok {
		return
	}
	st, err := h.Hub.CheckBan(c.Request.Context(), subject(c), target)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, banResponse{Ban: st.Ban, IssuerUsername: st.IssuerUsername, IssuedByOwner: st.IssuedByOwner})
}

func (h *Handler) DeleteBan(c *gin.Context) {
	target, ok := h.int64Param(c)
	if !ok {
		return
	}
	if _, err := h.Hub.Unban(c.Request.Context(), subject(c), target); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) CreateAdmin(c *gin.Context) {
	var req adminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	admin, err := h.Hub.AddAdmin(c.Request.Context(), subject(c), req.ID, req.Username)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, admin)
}

func (h *Handler) DeleteAdmin(c *gin.Context) {
	target, ok := h.int64Param(c)
	if !ok {
		return
	}
	if err := h.Hub.RemoveAdmin(c.Request.Context(), subject(c), target); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetPairingMessages(c *gin.Context) {
	id, ok := h.uintParam(c)
	if !ok {
		return
	}
	messages, err := h.Hub.Storage.GetPairingMessages(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pairing_id": id, "messages": messages})
}

func (h *Handler) GetStats(c *gin.Context) {
	st, err := h.Hub.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	h.logger.Debug("rejected request body", zap.String("path", c.FullPath()), zap.Error(err))
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": models.ErrorKey(models.ErrInvalidCommand)})
}

func (h *Handler) int64Param(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		h.badRequest(c, fmt.Errorf("invalid id %q", c.Param("id")))
		return 0, false
	}
	return id, true
}

func (h *Handler) uintParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		h.badRequest(c, fmt.Errorf("invalid id %q", c.Param("id")))
		return 0, false
	}
	return uint(id), true
}
