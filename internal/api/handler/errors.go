package handler

import (
	"errors"
	"net/http"

	"strangerchat/backend/internal/models"

	"github.com/gin-gonic/gin"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{models.ErrPermissionDenied, http.StatusForbidden},
	{models.ErrBanned, http.StatusForbidden},
	{models.ErrProtectedParticipant, http.StatusConflict},
	{models.ErrAlreadyResolved, http.StatusConflict},
	{models.ErrAlreadyPaired, http.StatusConflict},
	{models.ErrAlreadyWaiting, http.StatusConflict},
	{models.ErrNotPaired, http.StatusConflict},
	{models.ErrNotInChat, http.StatusConflict},
	{models.ErrNotBanned, http.StatusNotFound},
	{models.ErrNotFound, http.StatusNotFound},
	{models.ErrMissingReason, http.StatusBadRequest},
	{models.ErrInvalidCommand, http.StatusBadRequest},
	{models.ErrUnsupportedPayload, http.StatusBadRequest},
	{models.ErrDeliveryFailure, http.StatusBadGateway},
}

func statusFor(err error) int {
	for _, es := range errorStatus {
		if errors.Is(err, es.err) {
			return es.status
		}
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error", "code"}; code is the error's message key.
func (h *Handler) respondError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{
		"error": h.Hub.Describe(err),
		"code":  models.ErrorKey(err),
	})
}
