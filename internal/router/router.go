// Package router sets up all HTTP routes for the API.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/docvault-api/internal/handlers"
	"github.com/Shimizu-Technology/docvault-api/internal/middleware"
)

// Setup creates and configures the Gin router with all routes. rl may be
// nil to disable rate limiting; no origins disables CORS.
func Setup(h *handlers.Handler, rl *middleware.RateLimiter, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(h.Logger))
	if len(allowedOrigins) > 0 {
		r.Use(middleware.CORS(allowedOrigins))
	}

	// --- Public Routes (no auth required) ---
	r.GET("/api/v1/health", h.HealthCheck)
	r.POST("/api/v1/auth/register", h.Register)
	r.POST("/api/v1/auth/login", h.Login)

	// --- Protected Routes ---
	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth(h.DB, h.JWTSecret))
	if rl != nil {
		protected.Use(rl.RateLimit())
	}
	{
		protected.GET("/auth/me", h.GetMe)
		protected.POST("/auth/refresh", h.RefreshToken)

		// Folders and tags
		protected.POST("/folders", h.CreateFolder)
		protected.GET("/folders", h.ListFolders)
		protected.GET("/folders/:id", h.GetFolder)
		protected.PATCH("/folders/:id", h.RenameFolder)
		protected.DELETE("/folders/:id", h.DeleteFolder)

		protected.POST("/tags", h.CreateTag)
		protected.GET("/tags", h.ListTags)
		protected.GET("/tags/:id", h.GetTag)
		protected.PATCH("/tags/:id", h.RenameTag)
		protected.DELETE("/tags/:id", h.DeleteTag)

		// Documents
		protected.POST("/documents", h.UploadDocument)
		protected.GET("/documents", h.ListDocuments)
		protected.GET("/documents/:id", h.GetDocument)
		protected.PATCH("/documents/:id", h.UpdateDocument)
		protected.DELETE("/documents/:id", h.DeleteDocument)
		protected.GET("/documents/:id/download", h.DownloadDocument)
		protected.POST("/documents/:id/extract", h.ExtractDocument)

		protected.GET("/search", h.SearchDocuments)

		// Extraction jobs
		protected.GET("/jobs", h.ListJobs)
		protected.GET("/jobs/:id", h.GetJob)

		protected.GET("/audit-logs", h.ListAuditLogs)

		// Webhook management
		protected.POST("/webhooks", h.CreateWebhook)
		protected.GET("/webhooks", h.ListWebhooks)
		protected.GET("/webhooks/deliveries", h.ListWebhookDeliveries) // must be before :id
		protected.PATCH("/webhooks/:id", h.UpdateWebhook)
		protected.DELETE("/webhooks/:id", h.DeleteWebhook)
	}

	return r
}
