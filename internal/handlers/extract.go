// extract.go triggers extraction and exposes extraction jobs.
//
// POST /api/v1/documents/:id/extract[?async=true]
// GET  /api/v1/jobs
// GET  /api/v1/jobs/:id
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/docvault-api/internal/database"
	"github.com/Shimizu-Technology/docvault-api/internal/models"
)

// ExtractDocument runs extraction for a document. Synchronously it answers
// 200 with the refreshed document, or 500 with the failure text. With
// async=true it answers 202 as soon as the job is queued.
// POST /api/v1/documents/:id/extract
func (h *Handler) ExtractDocument(c *gin.Context) {
	ctx := c.Request.Context()
	owner := ownerID(c)

	async := false
	if raw := c.Query("async"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid_request", "async must be true or false")
			return
		}
		async = v
	}

	doc, err := h.DB.GetDocumentForOwner(ctx, owner, c.Param("id"))
	if err != nil {
		h.storeError(c, err, "Document")
		return
	}

	if async {
		job, err := h.Runner.Enqueue(ctx, doc)
		if err != nil {
			h.Logger.Error("failed to queue extraction", zap.String("document_id", doc.ID), zap.Error(err))
			respondError(c, http.StatusInternalServerError, "queue_error", "Failed to queue extraction")
			return
		}
		h.audit(c, models.AuditExtract, models.TargetDocument, doc.ID, models.JSONMap{"async": true, "job_id": job.ID})
		c.JSON(http.StatusAccepted, models.ExtractionAccepted{
			JobID:  job.ID,
			Status: job.Status,
			Job:    *job,
		})
		return
	}

	res, err := h.Runner.RunSync(ctx, doc)
	if err != nil {
		h.Logger.Error("extraction could not be recorded", zap.String("document_id", doc.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "extraction_failed",
			Message: "Extraction failed",
			Code:    http.StatusInternalServerError,
			Detail:  err.Error(),
		})
		return
	}
	if !res.Succeeded() {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "extraction_failed",
			Message: "Extraction failed",
			Code:    http.StatusInternalServerError,
			Detail:  res.Failure,
		})
		return
	}
	h.audit(c, models.AuditExtract, models.TargetDocument, doc.ID, models.JSONMap{"async": false, "job_id": res.Job.ID})

	detail, err := h.DB.GetDocumentForOwner(ctx, owner, doc.ID)
	if err != nil {
		h.storeError(c, err, "Document")
		return
	}
	detail.FileURL = fileURL(detail.ID)
	c.JSON(http.StatusOK, detail)
}

// ListJobs returns the caller's extraction jobs, newest first.
// GET /api/v1/jobs?status=&document=&page=&per_page=
func (h *Handler) ListJobs(c *gin.Context) {
	var params models.JobListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "Invalid query parameters: "+err.Error())
		return
	}
	if params.Status != "" && !params.Status.Valid() {
		respondError(c, http.StatusBadRequest, "invalid_status", "Unknown job status: "+string(params.Status))
		return
	}
	params.OwnerID = ownerID(c)
	params.Page, params.PerPage, _ = database.PageBounds(params.Page, params.PerPage)

	jobs, total, err := h.DB.ListJobs(c.Request.Context(), params)
	if err != nil {
		h.storeError(c, err, "Jobs")
		return
	}
	c.JSON(http.StatusOK, models.NewPage(jobs, params.Page, params.PerPage, total))
}

// GetJob returns one of the caller's jobs.
// GET /api/v1/jobs/:id
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.DB.GetJobForOwner(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		h.storeError(c, err, "Job")
		return
	}
	c.JSON(http.StatusOK, job)
}
