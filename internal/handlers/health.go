// Package handlers contains HTTP handler functions for the API.
//
// Go Pattern: Handlers in Gin receive a *gin.Context which provides:
// - Request data (params, query, body, headers)
// - Response methods (JSON, String, Status)
// - Middleware data (c.Get/c.Set)
//
// We group related handlers into a struct (Handler) that holds shared
// dependencies. Every authenticated handler scopes its queries to the
// caller, so another owner's rows are simply not found.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/docvault-api/internal/database"
	"github.com/Shimizu-Technology/docvault-api/internal/models"
	"github.com/Shimizu-Technology/docvault-api/internal/search"
	"github.com/Shimizu-Technology/docvault-api/internal/services/extraction"
	"github.com/Shimizu-Technology/docvault-api/internal/services/pdf"
	"github.com/Shimizu-Technology/docvault-api/internal/services/worker"
	"github.com/Shimizu-Technology/docvault-api/internal/storage"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Handler holds shared dependencies for all HTTP handlers.
// Go Pattern: Dependency injection via struct fields. Instead of global
// variables or service locators, we pass dependencies explicitly.
type Handler struct {
	DB        *database.DB
	Files     storage.FileStore
	Validator *pdf.Validator
	Runner    *extraction.Runner
	Search    *search.Index
	Worker    *worker.Pool
	Notifier  extraction.Notifier // nil disables webhooks
	JWTSecret string
	Logger    *zap.Logger
}

// NewHandler creates a new handler with its required dependencies.
// Search, Worker and Notifier are optional and set directly on the struct.
func NewHandler(db *database.DB, files storage.FileStore, validator *pdf.Validator, runner *extraction.Runner, jwtSecret string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		DB:        db,
		Files:     files,
		Validator: validator,
		Runner:    runner,
		JWTSecret: jwtSecret,
		Logger:    logger,
	}
}

// HealthCheck returns the API health status.
// GET /api/v1/health
func (h *Handler) HealthCheck(c *gin.Context) {
	// Check database connectivity
	dbStatus := "healthy"
	if err := h.DB.HealthCheck(c.Request.Context()); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}

	resp := models.HealthResponse{
		Status:   "ok",
		Version:  Version,
		Database: dbStatus,
	}
	if h.Worker != nil {
		resp.Workers = h.Worker.WorkerCount()
		resp.Queued = h.Worker.QueueSize()
	}
	c.JSON(http.StatusOK, resp)
}
