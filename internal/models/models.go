// Package models defines the data structures used throughout the application.
//
// Go Pattern: Models are plain structs with JSON tags for serialization.
// The `db` tags work with sqlx for column mapping; `db:"-"` marks fields
// that are assembled in Go (joined relations, computed URLs) rather than
// scanned from a single row.
package models

import (
	"time"
)

// User is an account that owns documents, folders, tags and webhooks.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Name         string    `json:"name" db:"name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Folder groups documents for one owner.
type Folder struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"-" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Tag is a label; names are unique per owner.
type Tag struct {
	ID        string    `json:"id" db:"id"`
	OwnerID   string    `json:"-" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// FolderRef is the nested folder projection embedded in a document response.
type FolderRef struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// TagRef is the nested tag projection embedded in a document response.
type TagRef struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Document is one uploaded PDF plus the fields derived from it by extraction.
//
// FileKey is written once at upload and never changed. Title, Author,
// PageCount, ContentText, MD5 and IsProcessed are written together by a
// successful extraction job (or not at all).
type Document struct {
	ID               string    `json:"id" db:"id"`
	OwnerID          string    `json:"-" db:"owner_id"`
	FolderID         *string   `json:"-" db:"folder_id"`
	FileKey          string    `json:"-" db:"file_key"`
	OriginalFilename string    `json:"original_filename" db:"original_filename"`
	FileSize         int64     `json:"file_size" db:"file_size"`
	Title            string    `json:"title" db:"title"`
	Author           string    `json:"author" db:"author"`
	PageCount        *int      `json:"page_count" db:"page_count"` // nil until extracted
	MD5              string    `json:"md5" db:"md5"`
	ContentText      string    `json:"-" db:"content_text"` // can be large; served by search, not detail
	IsProcessed      bool      `json:"is_processed" db:"is_processed"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`

	Folder  *FolderRef `json:"folder" db:"-"`
	Tags    []TagRef   `json:"tags" db:"-"`
	FileURL string     `json:"file_url" db:"-"`
}

// ExtractedFields are the values a successful extraction writes back to a Document.
type ExtractedFields struct {
	Title       string
	Author      string
	PageCount   int
	ContentText string
	MD5         string
}

// Apply copies extracted values onto the document and marks it processed.
func (f ExtractedFields) Apply(d *Document) {
	pages := f.PageCount
	d.Title = f.Title
	d.Author = f.Author
	d.PageCount = &pages
	d.ContentText = f.ContentText
	d.MD5 = f.MD5
	d.IsProcessed = true
}

// JobStatus is the state of an extraction job.
// Go Pattern: Go has no enums, so we use a named string type plus constants.
type JobStatus string

const (
	JobQueued  JobStatus = "QUEUED"
	JobRunning JobStatus = "RUNNING"
	JobSuccess JobStatus = "SUCCESS"
	JobFailed  JobStatus = "FAILED"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobSuccess || s == JobFailed
}

// CanTransitionTo reports whether s → next is a legal job transition.
// Transitions are one-directional: QUEUED → RUNNING → {SUCCESS, FAILED}.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobQueued:
		return next == JobRunning
	case JobRunning:
		return next == JobSuccess || next == JobFailed
	default:
		return false
	}
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobQueued, JobRunning, JobSuccess, JobFailed:
		return true
	}
	return false
}

// ExtractionJob is one attempt to extract a document.
// DocumentID becomes nil if the document is deleted; the job row is kept
// as an audit trail and stays visible to its owner.
type ExtractionJob struct {
	ID           string     `json:"id" db:"id"`
	OwnerID      string     `json:"-" db:"owner_id"`
	DocumentID   *string    `json:"document_id" db:"document_id"`
	Status       JobStatus  `json:"status" db:"status"`
	ErrorMessage *string    `json:"error_message" db:"error_message"`
	StartedAt    *time.Time `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at" db:"finished_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// AuditAction names a user-visible operation recorded in the audit log.
type AuditAction string

const (
	AuditUpload   AuditAction = "UPLOAD"
	AuditExtract  AuditAction = "EXTRACT"
	AuditUpdate   AuditAction = "UPDATE"
	AuditDelete   AuditAction = "DELETE"
	AuditDownload AuditAction = "DOWNLOAD"
)

// AuditTargetType names the kind of object an audit entry refers to.
type AuditTargetType string

const (
	TargetDocument AuditTargetType = "DOCUMENT"
	TargetFolder   AuditTargetType = "FOLDER"
	TargetTag      AuditTargetType = "TAG"
)

// AuditLog is an append-only record of something an owner did.
type AuditLog struct {
	ID         string          `json:"id" db:"id"`
	OwnerID    string          `json:"-" db:"owner_id"`
	Action     AuditAction     `json:"action" db:"action"`
	TargetType AuditTargetType `json:"target_type" db:"target_type"`
	TargetID   string          `json:"target_id" db:"target_id"`
	Meta       JSONMap         `json:"meta" db:"meta"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// Webhook events emitted by the service.
const (
	EventDocumentUploaded    = "document.uploaded"
	EventExtractionSucceeded = "extraction.succeeded"
	EventExtractionFailed    = "extraction.failed"
)

// ValidWebhookEvents is the set of events a webhook may subscribe to.
var ValidWebhookEvents = map[string]bool{
	EventDocumentUploaded:    true,
	EventExtractionSucceeded: true,
	EventExtractionFailed:    true,
}

// Webhook is an owner-registered HTTP endpoint notified about events.
type Webhook struct {
	ID        string     `json:"id" db:"id"`
	OwnerID   string     `json:"-" db:"owner_id"`
	URL       string     `json:"url" db:"url"`
	Events    StringList `json:"events" db:"events"`
	Secret    string     `json:"-" db:"secret"`
	Active    bool       `json:"active" db:"active"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// Subscribes reports whether the webhook wants the given event.
func (w Webhook) Subscribes(event string) bool {
	for _, e := range w.Events {
		if e == event {
			return true
		}
	}
	return false
}

// WebhookDelivery records the attempts to deliver one event to one webhook.
type WebhookDelivery struct {
	ID           string     `json:"id" db:"id"`
	WebhookID    string     `json:"webhook_id" db:"webhook_id"`
	Event        string     `json:"event" db:"event"`
	Payload      string     `json:"payload" db:"payload"`
	Status       string     `json:"status" db:"status"` // pending, success, failed
	Attempts     int        `json:"attempts" db:"attempts"`
	LastError    string     `json:"last_error,omitempty" db:"last_error"`
	ResponseCode int        `json:"response_code,omitempty" db:"response_code"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty" db:"delivered_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// WebhookPayload is the JSON body POSTed to webhook endpoints.
type WebhookPayload struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}
