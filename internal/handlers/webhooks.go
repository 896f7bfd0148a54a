// webhooks.go handles webhook management HTTP endpoints.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/docvault-api/internal/models"
	webhookservice "github.com/Shimizu-Technology/docvault-api/internal/services/webhook"
)

// CreateWebhook registers a new webhook endpoint.
// POST /api/v1/webhooks
func (h *Handler) CreateWebhook(c *gin.Context) {
	var req models.CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "URL and at least one event are required")
		return
	}

	// Validate events
	for _, event := range req.Events {
		if !models.ValidWebhookEvents[event] {
			respondError(c, http.StatusBadRequest, "invalid_event", "Invalid event type: "+event)
			return
		}
	}

	// Generate HMAC secret
	secret, err := webhookservice.GenerateSecret()
	if err != nil {
		h.Logger.Error("failed to generate webhook secret", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "generation_error", "Failed to generate webhook secret")
		return
	}

	wh := &models.Webhook{
		OwnerID: ownerID(c),
		URL:     req.URL,
		Events:  req.Events,
		Secret:  secret,
		Active:  true,
	}
	if err := h.DB.CreateWebhook(c.Request.Context(), wh); err != nil {
		h.storeError(c, err, "Webhook")
		return
	}

	// Return webhook with secret (only shown once)
	c.JSON(http.StatusCreated, gin.H{
		"id":         wh.ID,
		"url":        wh.URL,
		"events":     wh.Events,
		"secret":     secret,
		"active":     wh.Active,
		"created_at": wh.CreatedAt,
	})
}

// ListWebhooks returns the caller's webhooks.
// GET /api/v1/webhooks
func (h *Handler) ListWebhooks(c *gin.Context) {
	webhooks, err := h.DB.ListWebhooks(c.Request.Context(), ownerID(c))
	if err != nil {
		h.storeError(c, err, "Webhooks")
		return
	}
	if webhooks == nil {
		webhooks = []models.Webhook{}
	}
	c.JSON(http.StatusOK, webhooks)
}

// UpdateWebhook toggles a webhook's active state.
// PATCH /api/v1/webhooks/:id
func (h *Handler) UpdateWebhook(c *gin.Context) {
	var req models.UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "active field is required (true/false)")
		return
	}

	if err := h.DB.UpdateWebhookActive(c.Request.Context(), ownerID(c), c.Param("id"), *req.Active); err != nil {
		h.storeError(c, err, "Webhook")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Webhook updated", "active": *req.Active})
}

// DeleteWebhook removes a webhook.
// DELETE /api/v1/webhooks/:id
func (h *Handler) DeleteWebhook(c *gin.Context) {
	if err := h.DB.DeleteWebhook(c.Request.Context(), ownerID(c), c.Param("id")); err != nil {
		h.storeError(c, err, "Webhook")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Webhook deleted"})
}

// ListWebhookDeliveries returns recent delivery attempts across the caller's webhooks.
// GET /api/v1/webhooks/deliveries
func (h *Handler) ListWebhookDeliveries(c *gin.Context) {
	deliveries, err := h.DB.ListDeliveriesByOwner(c.Request.Context(), ownerID(c), 50)
	if err != nil {
		h.storeError(c, err, "Deliveries")
		return
	}
	if deliveries == nil {
		deliveries = []models.WebhookDelivery{}
	}
	c.JSON(http.StatusOK, deliveries)
}
