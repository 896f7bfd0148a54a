// folders.go handles folder and tag CRUD.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/docvault-api/internal/models"
)

// --- Folders ---

// CreateFolder creates a folder.
// POST /api/v1/folders
func (h *Handler) CreateFolder(c *gin.Context) {
	var req models.NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	f := &models.Folder{OwnerID: ownerID(c), Name: req.Name}
	if err := h.DB.CreateFolder(c.Request.Context(), f); err != nil {
		h.storeError(c, err, "Folder")
		return
	}
	c.JSON(http.StatusCreated, f)
}

// ListFolders returns the caller's folders.
// GET /api/v1/folders
func (h *Handler) ListFolders(c *gin.Context) {
	folders, err := h.DB.ListFolders(c.Request.Context(), ownerID(c))
	if err != nil {
		h.storeError(c, err, "Folders")
		return
	}
	if folders == nil {
		folders = []models.Folder{}
	}
	c.JSON(http.StatusOK, folders)
}

// GetFolder returns one folder.
// GET /api/v1/folders/:id
func (h *Handler) GetFolder(c *gin.Context) {
	f, err := h.DB.GetFolder(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		h.storeError(c, err, "Folder")
		return
	}
	c.JSON(http.StatusOK, f)
}

// RenameFolder changes a folder's name.
// PATCH /api/v1/folders/:id
func (h *Handler) RenameFolder(c *gin.Context) {
	var req models.NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	ctx := c.Request.Context()
	owner := ownerID(c)
	id := c.Param("id")
	if err := h.DB.RenameFolder(ctx, owner, id, req.Name); err != nil {
		h.storeError(c, err, "Folder")
		return
	}
	h.audit(c, models.AuditUpdate, models.TargetFolder, id, models.JSONMap{"name": req.Name})

	f, err := h.DB.GetFolder(ctx, owner, id)
	if err != nil {
		h.storeError(c, err, "Folder")
		return
	}
	c.JSON(http.StatusOK, f)
}

// DeleteFolder removes a folder. Its documents stay, without a folder.
// DELETE /api/v1/folders/:id
func (h *Handler) DeleteFolder(c *gin.Context) {
	id := c.Param("id")
	if err := h.DB.DeleteFolder(c.Request.Context(), ownerID(c), id); err != nil {
		h.storeError(c, err, "Folder")
		return
	}
	h.audit(c, models.AuditDelete, models.TargetFolder, id, nil)
	c.Status(http.StatusNoContent)
}

// --- Tags ---

// CreateTag creates a tag. Names are unique per owner.
// POST /api/v1/tags
func (h *Handler) CreateTag(c *gin.Context) {
	var req models.NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	t := &models.Tag{OwnerID: ownerID(c), Name: req.Name}
	if err := h.DB.CreateTag(c.Request.Context(), t); err != nil {
		h.storeError(c, err, "Tag")
		return
	}
	c.JSON(http.StatusCreated, t)
}

// ListTags returns the caller's tags.
// GET /api/v1/tags
func (h *Handler) ListTags(c *gin.Context) {
	tags, err := h.DB.ListTags(c.Request.Context(), ownerID(c))
	if err != nil {
		h.storeError(c, err, "Tags")
		return
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	c.JSON(http.StatusOK, tags)
}

// GetTag returns one tag.
// GET /api/v1/tags/:id
func (h *Handler) GetTag(c *gin.Context) {
	t, err := h.DB.GetTag(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		h.storeError(c, err, "Tag")
		return
	}
	c.JSON(http.StatusOK, t)
}

// RenameTag changes a tag's name.
// PATCH /api/v1/tags/:id
func (h *Handler) RenameTag(c *gin.Context) {
	var req models.NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	ctx := c.Request.Context()
	owner := ownerID(c)
	id := c.Param("id")
	if err := h.DB.RenameTag(ctx, owner, id, req.Name); err != nil {
		h.storeError(c, err, "Tag")
		return
	}
	h.audit(c, models.AuditUpdate, models.TargetTag, id, models.JSONMap{"name": req.Name})

	t, err := h.DB.GetTag(ctx, owner, id)
	if err != nil {
		h.storeError(c, err, "Tag")
		return
	}
	c.JSON(http.StatusOK, t)
}

// DeleteTag removes a tag from the caller's documents and deletes it.
// DELETE /api/v1/tags/:id
func (h *Handler) DeleteTag(c *gin.Context) {
	id := c.Param("id")
	if err := h.DB.DeleteTag(c.Request.Context(), ownerID(c), id); err != nil {
		h.storeError(c, err, "Tag")
		return
	}
	h.audit(c, models.AuditDelete, models.TargetTag, id, nil)
	c.Status(http.StatusNoContent)
}
