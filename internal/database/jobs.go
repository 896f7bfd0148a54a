// jobs.go persists extraction jobs and the terminal write that publishes
// extracted fields onto a document.
//
// Every status change goes through advanceJob: the move must be legal per
// models.JobStatus.CanTransitionTo, and it is a conditional UPDATE on the
// expected current status, so two writers can never both move the same job
// forward.
package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Shimizu-Technology/docvault-api/internal/models"
)

// ErrStaleTransition is returned when a job is no longer in the status a
// transition expects (e.g. another worker already promoted it).
var ErrStaleTransition = errors.New("job is not in the expected state")

// CreateJob inserts a job. Callers set Status (QUEUED or RUNNING) and, for
// RUNNING, StartedAt.
func (db *DB) CreateJob(ctx context.Context, j *models.ExtractionJob) error {
	if !j.Status.Valid() || j.Status.IsTerminal() {
		return fmt.Errorf("cannot create job in status %q", j.Status)
	}
	j.ID = newID()
	j.CreatedAt = now()

	_, err := db.ExecContext(ctx, db.Rebind(`
		INSERT INTO extraction_jobs (id, owner_id, document_id, status, error_message, started_at, finished_at, created_at)
		VALUES (?, ?, ?, ?, NULL, ?, NULL, ?)`),
		j.ID, j.OwnerID, j.DocumentID, j.Status, j.StartedAt, j.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create extraction job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID regardless of owner.
func (db *DB) GetJob(ctx context.Context, id string) (*models.ExtractionJob, error) {
	var j models.ExtractionJob
	err := db.GetContext(ctx, &j, db.Rebind(`SELECT * FROM extraction_jobs WHERE id = ?`), id)
	if err != nil {
		return nil, notFound(err, "extraction job")
	}
	return &j, nil
}

// GetJobForOwner retrieves one of the owner's jobs.
func (db *DB) GetJobForOwner(ctx context.Context, ownerID, id string) (*models.ExtractionJob, error) {
	var j models.ExtractionJob
	err := db.GetContext(ctx, &j, db.Rebind(`
		SELECT * FROM extraction_jobs WHERE id = ? AND owner_id = ?`), id, ownerID)
	if err != nil {
		return nil, notFound(err, "extraction job")
	}
	return &j, nil
}

// ListJobs returns a page of the owner's jobs, newest first.
func (db *DB) ListJobs(ctx context.Context, params models.JobListParams) ([]models.ExtractionJob, int, error) {
	_, perPage, offset := PageBounds(params.Page, params.PerPage)

	conditions := []string{"owner_id = ?"}
	args := []interface{}{params.OwnerID}
	if params.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, params.Status)
	}
	if params.DocumentID != "" {
		conditions = append(conditions, "document_id = ?")
		args = append(args, params.DocumentID)
	}
	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := db.GetContext(ctx, &total, db.Rebind("SELECT COUNT(*) FROM extraction_jobs "+where), args...); err != nil {
		return nil, 0, fmt.Errorf("count query failed: %w", err)
	}

	var jobs []models.ExtractionJob
	err := db.SelectContext(ctx, &jobs,
		db.Rebind("SELECT * FROM extraction_jobs "+where+" ORDER BY created_at DESC, id LIMIT ? OFFSET ?"),
		append(args, perPage, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list query failed: %w", err)
	}
	return jobs, total, nil
}

// ListQueuedJobIDs returns IDs of jobs still waiting to run, oldest first.
// Used at startup to hand jobs left over from a previous process to the worker pool.
func (db *DB) ListQueuedJobIDs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1000
	}
	var ids []string
	err := db.SelectContext(ctx, &ids, db.Rebind(`
		SELECT id FROM extraction_jobs WHERE status = ? ORDER BY created_at, id LIMIT ?`),
		models.JobQueued, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list queued jobs: %w", err)
	}
	return ids, nil
}

// MarkJobRunning moves a QUEUED job to RUNNING and stamps started_at.
func (db *DB) MarkJobRunning(ctx context.Context, id string, startedAt time.Time) error {
	return advanceJob(ctx, db.DB, id, models.JobQueued, models.JobRunning,
		"started_at = ?", startedAt)
}

// advanceJob moves job id from one status to the next, also applying set
// (a comma-separated "column = ?" list bound to args). It refuses illegal
// transitions and returns ErrStaleTransition when the job is no longer in
// status from.
func advanceJob(ctx context.Context, ext sqlx.ExtContext, id string, from, to models.JobStatus, set string, args ...interface{}) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("illegal job transition %s -> %s", from, to)
	}
	query := "UPDATE extraction_jobs SET status = ?"
	if set != "" {
		query += ", " + set
	}
	query += " WHERE id = ? AND status = ?"

	bound := append([]interface{}{to}, args...)
	bound = append(bound, id, from)
	res, err := ext.ExecContext(ctx, ext.Rebind(query), bound...)
	if err != nil {
		return fmt.Errorf("failed to mark job %s: %w", strings.ToLower(string(to)), err)
	}
	if err := expectOne(res, "extraction job"); err != nil {
		return fmt.Errorf("job %s: %w", id, ErrStaleTransition)
	}
	return nil
}

// CompleteJob publishes extracted fields and moves the job RUNNING → SUCCESS
// in one transaction. Only title, author, page_count, content_text, md5 and
// is_processed are written on the document, so readers see either all of
// them updated or none.
func (db *DB) CompleteJob(ctx context.Context, jobID, documentID string, f models.ExtractedFields, finishedAt time.Time) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE documents
		SET title = ?, author = ?, page_count = ?, content_text = ?, md5 = ?, is_processed = ?
		WHERE id = ?`),
		f.Title, f.Author, f.PageCount, f.ContentText, f.MD5, true, documentID)
	if err != nil {
		return fmt.Errorf("failed to write extracted fields: %w", err)
	}
	if err := expectOne(res, "document"); err != nil {
		return err
	}

	err = advanceJob(ctx, tx, jobID, models.JobRunning, models.JobSuccess,
		"finished_at = ?, error_message = NULL", finishedAt)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit extraction result: %w", err)
	}
	return nil
}

// FailJob moves a RUNNING job to FAILED with the given message. The
// document is not touched.
func (db *DB) FailJob(ctx context.Context, jobID, message string, finishedAt time.Time) error {
	return advanceJob(ctx, db.DB, jobID, models.JobRunning, models.JobFailed,
		"error_message = ?, finished_at = ?", message, finishedAt)
}
