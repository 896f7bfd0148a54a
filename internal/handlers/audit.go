package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/docvault-api/internal/database"
	"github.com/Shimizu-Technology/docvault-api/internal/models"
)

// ListAuditLogs returns the caller's audit trail, newest first.
// GET /api/v1/audit-logs?action=&page=&per_page=
func (h *Handler) ListAuditLogs(c *gin.Context) {
	var params models.AuditListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "Invalid query parameters: "+err.Error())
		return
	}
	params.OwnerID = ownerID(c)
	params.Page, params.PerPage, _ = database.PageBounds(params.Page, params.PerPage)

	entries, total, err := h.DB.ListAuditLogs(c.Request.Context(), params)
	if err != nil {
		h.storeError(c, err, "Audit logs")
		return
	}
	c.JSON(http.StatusOK, models.NewPage(entries, params.Page, params.PerPage, total))
}
