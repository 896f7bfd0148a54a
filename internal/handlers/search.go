package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Shimizu-Technology/docvault-api/internal/models"
	"github.com/Shimizu-Technology/docvault-api/internal/search"
)

// SearchDocuments runs a ranked full-text query over the caller's
// processed documents.
// GET /api/v1/search?q=&limit=
func (h *Handler) SearchDocuments(c *gin.Context) {
	if h.Search == nil {
		respondError(c, http.StatusServiceUnavailable, "search_unavailable", "Search index is not configured")
		return
	}

	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		respondError(c, http.StatusBadRequest, "invalid_request", "q is required")
		return
	}
	limit := search.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			respondError(c, http.StatusBadRequest, "invalid_request", "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	owner := ownerID(c)
	hits, err := h.Search.Search(owner, q, limit)
	if err != nil {
		h.Logger.Error("search failed", zap.String("query", q), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "search_error", "Search failed")
		return
	}

	ids := make([]string, len(hits))
	scores := make(map[string]float64, len(hits))
	for i, hit := range hits {
		ids[i] = hit.DocumentID
		scores[hit.DocumentID] = hit.Score
	}
	docs, err := h.DB.GetDocumentsByIDs(c.Request.Context(), owner, ids)
	if err != nil {
		h.storeError(c, err, "Documents")
		return
	}

	results := make([]models.SearchHit, 0, len(docs))
	for _, d := range docs {
		d.FileURL = fileURL(d.ID)
		results = append(results, models.SearchHit{Document: d, Score: scores[d.ID]})
	}
	c.JSON(http.StatusOK, gin.H{"query": q, "results": results})
}
