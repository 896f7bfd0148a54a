// dto.go holds request/response shapes for the HTTP API.
// Go Pattern: Separate structs for API input/output vs database models
// keep the API contract independent of the schema.
package models

import "time"

// RegisterRequest is the JSON body for POST /api/v1/auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

// LoginRequest is the JSON body for POST /api/v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned after register/login.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// NameRequest is the JSON body for creating or renaming a folder or tag.
type NameRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

// UpdateDocumentRequest is the JSON body for PATCH /api/v1/documents/:id.
// Nil fields are left unchanged. An empty FolderID detaches the folder.
type UpdateDocumentRequest struct {
	Title    *string   `json:"title" binding:"omitempty,max=255"`
	Author   *string   `json:"author" binding:"omitempty,max=255"`
	FolderID *string   `json:"folder_id"`
	TagIDs   *[]string `json:"tag_ids"`
}

// DocumentListParams holds query parameters for listing documents.
type DocumentListParams struct {
	OwnerID       string     `form:"-"`
	Page          int        `form:"page"`
	PerPage       int        `form:"per_page"`
	Query         string     `form:"q"`         // case-insensitive substring of title, filename or text
	Tags          []string   `form:"tag"`       // tag names; repeated params OR together
	FolderID      string     `form:"folder"`    // folder id
	Processed     *bool      `form:"processed"` // nil = either
	CreatedAfter  *time.Time `form:"created_after" time_format:"2006-01-02"`
	CreatedBefore *time.Time `form:"created_before" time_format:"2006-01-02"`
	Ordering      string     `form:"ordering"` // created_at, title, page_count; "-" prefix for descending
}

// JobListParams holds query parameters for listing extraction jobs.
type JobListParams struct {
	OwnerID    string    `form:"-"`
	Page       int       `form:"page"`
	PerPage    int       `form:"per_page"`
	Status     JobStatus `form:"status"`
	DocumentID string    `form:"document"`
}

// AuditListParams holds query parameters for listing audit entries.
type AuditListParams struct {
	OwnerID string      `form:"-"`
	Page    int         `form:"page"`
	PerPage int         `form:"per_page"`
	Action  AuditAction `form:"action"`
}

// ExtractionAccepted is the 202 body for a deferred extraction request.
type ExtractionAccepted struct {
	JobID  string        `json:"job_id"`
	Status JobStatus     `json:"status"`
	Job    ExtractionJob `json:"job"`
}

// CreateWebhookRequest is the JSON body for POST /api/v1/webhooks.
type CreateWebhookRequest struct {
	URL    string   `json:"url" binding:"required,url"`
	Events []string `json:"events" binding:"required,min=1"`
}

// UpdateWebhookRequest is the JSON body for PATCH /api/v1/webhooks/:id.
type UpdateWebhookRequest struct {
	Active *bool `json:"active"`
}

// SearchHit is one ranked full-text search result.
type SearchHit struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// PaginatedResponse wraps a list response with pagination metadata.
// Go Pattern: Generics (added in Go 1.18) let us create type-safe
// containers. `any` is an alias for `interface{}`.
type PaginatedResponse[T any] struct {
	Data       []T `json:"data"`
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// NewPage builds a PaginatedResponse, never returning a nil Data slice.
func NewPage[T any](data []T, page, perPage, total int) PaginatedResponse[T] {
	if data == nil {
		data = []T{}
	}
	pages := 0
	if perPage > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return PaginatedResponse[T]{
		Data:       data,
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: pages,
	}
}

// ErrorResponse is a standard error format for all API errors.
// Detail carries raw diagnostic text (e.g. the underlying extraction error).
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
	Detail  string `json:"detail,omitempty"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
	Workers  int    `json:"workers"`
	Queued   int    `json:"queued"`
}
