package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/docvault-api/internal/database"
	"github.com/Shimizu-Technology/docvault-api/internal/middleware"
	"github.com/Shimizu-Technology/docvault-api/internal/models"
)

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, models.ErrorResponse{
		Error:   code,
		Message: msg,
		Code:    status,
	})
}

// storeError maps database sentinels onto HTTP responses. what names the
// resource in messages, e.g. "Document".
func (h *Handler) storeError(c *gin.Context, err error, what string) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondError(c, http.StatusNotFound, "not_found", what+" not found")
	case errors.Is(err, database.ErrConflict):
		respondError(c, http.StatusConflict, "conflict", what+" already exists")
	default:
		h.Logger.Error("database error", zap.String("resource", strings.ToLower(what)), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "database_error", "Failed to process "+strings.ToLower(what))
	}
}

// ownerID returns the authenticated user's ID. Routes using it sit behind
// JWTAuth, so a missing user means the router is misconfigured.
func ownerID(c *gin.Context) string {
	if u := middleware.GetUser(c); u != nil {
		return u.ID
	}
	return ""
}

// audit records an audit entry. Failures are logged, never surfaced.
func (h *Handler) audit(c *gin.Context, action models.AuditAction, target models.AuditTargetType, targetID string, meta models.JSONMap) {
	entry := &models.AuditLog{
		OwnerID:    ownerID(c),
		Action:     action,
		TargetType: target,
		TargetID:   targetID,
		Meta:       meta,
	}
	if err := h.DB.CreateAuditLog(c.Request.Context(), entry); err != nil {
		h.Logger.Warn("failed to write audit log",
			zap.String("action", string(action)), zap.String("target_id", targetID), zap.Error(err))
	}
}

func (h *Handler) notify(c *gin.Context, event string, data interface{}) {
	if h.Notifier == nil {
		return
	}
	h.Notifier.NotifyEvent(c.Request.Context(), ownerID(c), event, data)
}
