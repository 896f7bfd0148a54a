// documents.go handles document upload, listing, editing and download.
//
// POST   /api/v1/documents               multipart upload (field "file")
// GET    /api/v1/documents               filtered, paginated list
// GET    /api/v1/documents/:id           detail
// PATCH  /api/v1/documents/:id           edit title/author/folder/tags
// DELETE /api/v1/documents/:id           delete document and stored file
// GET    /api/v1/documents/:id/download  stream the original PDF
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/docvault-api/internal/database"
	"github.com/Shimizu-Technology/docvault-api/internal/models"
	"github.com/Shimizu-Technology/docvault-api/internal/services/pdf"
	"github.com/Shimizu-Technology/docvault-api/internal/storage"
)

// multipartOverhead is allowed on top of the file ceiling for form fields
// and boundaries.
const multipartOverhead = 1 << 20

var errInvalidReference = errors.New("invalid reference")

func fileURL(id string) string {
	return "/api/v1/documents/" + id + "/download"
}

func withFileURLs(docs []models.Document) []models.Document {
	for i := range docs {
		docs[i].FileURL = fileURL(docs[i].ID)
	}
	return docs
}

// UploadDocument validates and stores an uploaded PDF and creates its
// document record. Extraction is requested separately.
// POST /api/v1/documents
func (h *Handler) UploadDocument(c *gin.Context) {
	owner := ownerID(c)
	maxSize := h.Validator.MaxSize
	if maxSize <= 0 {
		maxSize = pdf.DefaultMaxSize
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize+multipartOverhead)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondError(c, http.StatusBadRequest, string(pdf.TooLarge),
				fmt.Sprintf("File too large. Max %dMB.", maxSize/(1024*1024)))
			return
		}
		respondError(c, http.StatusBadRequest, "invalid_request",
			"No PDF file provided. Upload a file with the field name 'file'.")
		return
	}
	defer file.Close()

	if err := h.Validator.Validate(header.Filename, header.Size, file); err != nil {
		if ve, ok := pdf.IsValidationError(err); ok {
			respondError(c, http.StatusBadRequest, string(ve.Reason), ve.Message)
			return
		}
		h.Logger.Warn("failed to read upload", zap.Error(err))
		respondError(c, http.StatusBadRequest, "read_error", "Failed to read uploaded file")
		return
	}

	ctx := c.Request.Context()
	var folderID *string
	if id := c.PostForm("folder_id"); id != "" {
		if err := h.checkFolder(ctx, owner, id); err != nil {
			h.referenceError(c, err, "folder_id")
			return
		}
		folderID = &id
	}
	tagIDs := c.PostFormArray("tag_ids")
	if err := h.checkTags(ctx, owner, tagIDs); err != nil {
		h.referenceError(c, err, "tag_ids")
		return
	}

	key := storage.ObjectKey(owner, uuid.New().String())
	size, err := h.Files.Save(ctx, key, file)
	if err != nil {
		h.Logger.Error("failed to store upload", zap.String("key", key), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "storage_error", "Failed to store file")
		return
	}

	doc := &models.Document{
		OwnerID:          owner,
		FolderID:         folderID,
		FileKey:          key,
		OriginalFilename: header.Filename,
		FileSize:         size,
	}
	if err := h.DB.CreateDocument(ctx, doc, tagIDs); err != nil {
		if derr := h.Files.Delete(context.WithoutCancel(ctx), key); derr != nil {
			h.Logger.Warn("failed to remove orphaned file", zap.String("key", key), zap.Error(derr))
		}
		h.storeError(c, err, "Document")
		return
	}

	h.audit(c, models.AuditUpload, models.TargetDocument, doc.ID, models.JSONMap{
		"filename": doc.OriginalFilename,
		"size":     doc.FileSize,
	})

	detail, err := h.DB.GetDocumentForOwner(ctx, owner, doc.ID)
	if err != nil {
		h.storeError(c, err, "Document")
		return
	}
	detail.FileURL = fileURL(detail.ID)
	h.notify(c, models.EventDocumentUploaded, detail)

	c.JSON(http.StatusCreated, detail)
}

// ListDocuments returns the caller's documents.
// GET /api/v1/documents?q=&tag=&folder=&processed=&created_after=&created_before=&ordering=&page=&per_page=
func (h *Handler) ListDocuments(c *gin.Context) {
	var params models.DocumentListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "Invalid query parameters: "+err.Error())
		return
	}
	params.OwnerID = ownerID(c)
	params.Page, params.PerPage, _ = database.PageBounds(params.Page, params.PerPage)

	docs, total, err := h.DB.ListDocuments(c.Request.Context(), params)
	if err != nil {
		h.storeError(c, err, "Documents")
		return
	}
	c.JSON(http.StatusOK, models.NewPage(withFileURLs(docs), params.Page, params.PerPage, total))
}

// GetDocument returns one document.
// GET /api/v1/documents/:id
func (h *Handler) GetDocument(c *gin.Context) {
	doc, err := h.DB.GetDocumentForOwner(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		h.storeError(c, err, "Document")
		return
	}
	doc.FileURL = fileURL(doc.ID)
	c.JSON(http.StatusOK, doc)
}

// UpdateDocument edits user-controlled fields. The stored file and the
// extracted hash and text cannot be changed here.
// PATCH /api/v1/documents/:id
func (h *Handler) UpdateDocument(c *gin.Context) {
	var req models.UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "Invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	owner := ownerID(c)
	doc, err := h.DB.GetDocumentForOwner(ctx, owner, c.Param("id"))
	if err != nil {
		h.storeError(c, err, "Document")
		return
	}

	changed := []string{}
	if req.Title != nil {
		doc.Title = *req.Title
		changed = append(changed, "title")
	}
	if req.Author != nil {
		doc.Author = *req.Author
		changed = append(changed, "author")
	}
	if req.FolderID != nil {
		if *req.FolderID == "" {
			doc.FolderID = nil
		} else {
			if err := h.checkFolder(ctx, owner, *req.FolderID); err != nil {
				h.referenceError(c, err, "folder_id")
				return
			}
			doc.FolderID = req.FolderID
		}
		changed = append(changed, "folder_id")
	}
	if req.TagIDs != nil {
		if err := h.checkTags(ctx, owner, *req.TagIDs); err != nil {
			h.referenceError(c, err, "tag_ids")
			return
		}
		changed = append(changed, "tag_ids")
	}

	if err := h.DB.UpdateDocumentDetails(ctx, doc, req.TagIDs); err != nil {
		h.storeError(c, err, "Document")
		return
	}
	h.audit(c, models.AuditUpdate, models.TargetDocument, doc.ID, models.JSONMap{"fields": changed})

	updated, err := h.DB.GetDocumentForOwner(ctx, owner, doc.ID)
	if err != nil {
		h.storeError(c, err, "Document")
		return
	}
	if h.Search != nil && updated.IsProcessed {
		if err := h.Search.IndexDocument(updated); err != nil {
			h.Logger.Warn("failed to reindex document", zap.String("document_id", updated.ID), zap.Error(err))
		}
	}
	updated.FileURL = fileURL(updated.ID)
	c.JSON(http.StatusOK, updated)
}

// DeleteDocument removes a document and its stored file. Its extraction
// jobs are kept.
// DELETE /api/v1/documents/:id
func (h *Handler) DeleteDocument(c *gin.Context) {
	ctx := c.Request.Context()
	owner := ownerID(c)
	doc, err := h.DB.GetDocumentForOwner(ctx, owner, c.Param("id"))
	if err != nil {
		h.storeError(c, err, "Document")
		return
	}
	if err := h.DB.DeleteDocument(ctx, owner, doc.ID); err != nil {
		h.storeError(c, err, "Document")
		return
	}

	if err := h.Files.Delete(context.WithoutCancel(ctx), doc.FileKey); err != nil {
		h.Logger.Warn("failed to delete stored file", zap.String("key", doc.FileKey), zap.Error(err))
	}
	if h.Search != nil {
		if err := h.Search.DeleteDocument(doc.ID); err != nil {
			h.Logger.Warn("failed to remove document from index", zap.String("document_id", doc.ID), zap.Error(err))
		}
	}
	h.audit(c, models.AuditDelete, models.TargetDocument, doc.ID, models.JSONMap{"filename": doc.OriginalFilename})

	c.Status(http.StatusNoContent)
}

// DownloadDocument streams the stored PDF.
// GET /api/v1/documents/:id/download
func (h *Handler) DownloadDocument(c *gin.Context) {
	ctx := c.Request.Context()
	doc, err := h.DB.GetDocumentForOwner(ctx, ownerID(c), c.Param("id"))
	if err != nil {
		h.storeError(c, err, "Document")
		return
	}

	rc, err := h.Files.Open(ctx, doc.FileKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(c, http.StatusNotFound, "not_found", "Stored file not found")
			return
		}
		h.Logger.Error("failed to open stored file", zap.String("key", doc.FileKey), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "storage_error", "Failed to read file")
		return
	}
	defer rc.Close()

	h.audit(c, models.AuditDownload, models.TargetDocument, doc.ID, nil)

	c.DataFromReader(http.StatusOK, doc.FileSize, pdf.MIMEType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", doc.OriginalFilename),
	})
}

// checkFolder verifies the folder exists and belongs to owner.
func (h *Handler) checkFolder(ctx context.Context, owner, id string) error {
	if _, err := h.DB.GetFolder(ctx, owner, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return errInvalidReference
		}
		return err
	}
	return nil
}

// checkTags verifies every tag id belongs to owner.
func (h *Handler) checkTags(ctx context.Context, owner string, ids []string) error {
	unique := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			unique[id] = struct{}{}
		}
	}
	if len(unique) == 0 {
		return nil
	}
	n, err := h.DB.CountOwnedTags(ctx, owner, ids)
	if err != nil {
		return err
	}
	if n != len(unique) {
		return errInvalidReference
	}
	return nil
}

func (h *Handler) referenceError(c *gin.Context, err error, field string) {
	if errors.Is(err, errInvalidReference) {
		respondError(c, http.StatusBadRequest, "invalid_"+field, "Unknown "+field)
		return
	}
	h.storeError(c, err, "Document")
}
