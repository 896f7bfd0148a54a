// Package extraction runs extraction jobs: it moves a job through
// QUEUED → RUNNING → SUCCESS/FAILED and publishes the extracted fields onto
// the job's document.
//
// Jobs run either synchronously on the caller's goroutine (RunSync) or
// later on a worker (Enqueue, then RunQueued). Both paths share run, which
// holds a per-document lock so two jobs for the same document never extract
// and commit at the same time.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Shimizu-Technology/docvault-api/internal/database"
	"github.com/Shimizu-Technology/docvault-api/internal/models"
)

// ErrJobNotQueued is returned by RunQueued when the job has already been
// picked up (or finished) by someone else.
var ErrJobNotQueued = errors.New("job is not queued")

// errDocumentGone is recorded on jobs whose document was deleted before
// the result could be written.
var errDocumentGone = errors.New("document no longer exists")

// Store is the persistence the runner needs. *database.DB implements it.
type Store interface {
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	GetJob(ctx context.Context, id string) (*models.ExtractionJob, error)
	CreateJob(ctx context.Context, j *models.ExtractionJob) error
	MarkJobRunning(ctx context.Context, id string, startedAt time.Time) error
	CompleteJob(ctx context.Context, jobID, documentID string, f models.ExtractedFields, finishedAt time.Time) error
	FailJob(ctx context.Context, jobID, message string, finishedAt time.Time) error
}

// Files materializes a stored file on local disk. storage.FileStore implements it.
type Files interface {
	LocalPath(ctx context.Context, key string) (string, func(), error)
}

// FieldExtractor computes the derived fields of a PDF. *pdf.Extractor implements it.
type FieldExtractor interface {
	Extract(ctx context.Context, path string) (models.ExtractedFields, error)
}

// Notifier is told about terminal job transitions. *webhook.Service implements it.
type Notifier interface {
	NotifyEvent(ctx context.Context, ownerID, event string, data interface{})
}

// Indexer receives documents after a successful extraction. *search.Index implements it.
type Indexer interface {
	IndexDocument(doc *models.Document) error
}

// Scheduler accepts queued job IDs for deferred execution. *worker.Pool implements it.
type Scheduler interface {
	Submit(jobID string) error
}

// Result is the outcome of one job run. Exactly one of Document and
// Failure is meaningful: Document is the refreshed document on success,
// Failure is the recorded error message otherwise.
type Result struct {
	Job      *models.ExtractionJob
	Document *models.Document
	Failure  string
}

// Succeeded reports whether the job reached SUCCESS.
func (r *Result) Succeeded() bool {
	return r.Job != nil && r.Job.Status == models.JobSuccess
}

// Runner executes extraction jobs.
type Runner struct {
	store     Store
	files     Files
	extractor FieldExtractor
	logger    *zap.Logger

	notifier  Notifier
	indexer   Indexer
	scheduler Scheduler
	timeout   time.Duration

	locks *keyedMutex
}

// NewRunner creates a runner. Optional collaborators are wired with the Set* methods.
func NewRunner(store Store, files Files, extractor FieldExtractor, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		store:     store,
		files:     files,
		extractor: extractor,
		logger:    logger,
		locks:     newKeyedMutex(),
	}
}

// SetNotifier wires the webhook service for extraction events.
func (r *Runner) SetNotifier(n Notifier) { r.notifier = n }

// SetIndexer wires the search index.
func (r *Runner) SetIndexer(i Indexer) { r.indexer = i }

// SetScheduler wires the worker pool used by Enqueue.
func (r *Runner) SetScheduler(s Scheduler) { r.scheduler = s }

// SetTimeout sets the wall-clock ceiling for a single job. Zero disables it.
func (r *Runner) SetTimeout(d time.Duration) { r.timeout = d }

// RunSync creates a RUNNING job for doc and runs it to completion on the
// calling goroutine. The returned error is non-nil only when the job could
// not be created or its outcome could not be recorded; an extraction
// failure is reported through Result.Failure.
func (r *Runner) RunSync(ctx context.Context, doc *models.Document) (*Result, error) {
	started := now()
	job := &models.ExtractionJob{
		OwnerID:    doc.OwnerID,
		DocumentID: &doc.ID,
		Status:     models.JobRunning,
		StartedAt:  &started,
	}
	if err := r.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	return r.run(ctx, job, doc)
}

// Enqueue creates a QUEUED job for doc and hands it to the scheduler. If
// the scheduler refuses it the job stays QUEUED and is picked up by the
// next recovery pass.
func (r *Runner) Enqueue(ctx context.Context, doc *models.Document) (*models.ExtractionJob, error) {
	job := &models.ExtractionJob{
		OwnerID:    doc.OwnerID,
		DocumentID: &doc.ID,
		Status:     models.JobQueued,
	}
	if err := r.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	if r.scheduler == nil {
		r.logger.Warn("no scheduler configured; job left queued", zap.String("job_id", job.ID))
		return job, nil
	}
	if err := r.scheduler.Submit(job.ID); err != nil {
		r.logger.Warn("failed to schedule job; left queued", zap.String("job_id", job.ID), zap.Error(err))
	}
	return job, nil
}

// RunQueued promotes a QUEUED job to RUNNING and runs it. Workers call this.
func (r *Runner) RunQueued(ctx context.Context, jobID string) (*Result, error) {
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobQueued {
		return nil, fmt.Errorf("job %s is %s: %w", jobID, job.Status, ErrJobNotQueued)
	}

	started := now()
	if err := r.store.MarkJobRunning(ctx, jobID, started); err != nil {
		if errors.Is(err, database.ErrStaleTransition) {
			return nil, fmt.Errorf("job %s: %w", jobID, ErrJobNotQueued)
		}
		return nil, err
	}
	job.Status = models.JobRunning
	job.StartedAt = &started

	if job.DocumentID == nil {
		return r.fail(ctx, job, errDocumentGone)
	}
	doc, err := r.store.GetDocument(ctx, *job.DocumentID)
	if errors.Is(err, database.ErrNotFound) {
		return r.fail(ctx, job, errDocumentGone)
	}
	if err != nil {
		return r.fail(ctx, job, fmt.Errorf("failed to load document: %w", err))
	}
	return r.run(ctx, job, doc)
}

// run extracts doc and records the terminal transition for a RUNNING job.
func (r *Runner) run(ctx context.Context, job *models.ExtractionJob, doc *models.Document) (*Result, error) {
	unlock := r.locks.Lock(doc.ID)
	defer unlock()

	log := r.logger.With(zap.String("job_id", job.ID), zap.String("document_id", doc.ID))
	log.Debug("extraction started")

	fields, err := r.extract(ctx, doc)
	if err != nil {
		log.Info("extraction failed", zap.Error(err))
		return r.fail(ctx, job, err)
	}

	finished := now()
	// The outcome must be recorded even if the caller has gone away.
	wctx := context.WithoutCancel(ctx)
	if err := r.store.CompleteJob(wctx, job.ID, doc.ID, fields, finished); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return r.fail(ctx, job, errDocumentGone)
		}
		if errors.Is(err, database.ErrStaleTransition) {
			return nil, err
		}
		return r.fail(ctx, job, fmt.Errorf("failed to save extraction result: %w", err))
	}

	job.Status = models.JobSuccess
	job.FinishedAt = &finished
	fields.Apply(doc)
	log.Info("extraction succeeded", zap.Int("page_count", fields.PageCount))

	if r.indexer != nil {
		if err := r.indexer.IndexDocument(doc); err != nil {
			log.Warn("failed to index document", zap.Error(err))
		}
	}
	r.notify(wctx, job, models.EventExtractionSucceeded)

	return &Result{Job: job, Document: doc}, nil
}

// extract runs the extractor on a local copy of the document's file,
// giving up when the context ends or the timeout expires.
func (r *Runner) extract(ctx context.Context, doc *models.Document) (models.ExtractedFields, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	path, cleanup, err := r.files.LocalPath(ctx, doc.FileKey)
	if err != nil {
		return models.ExtractedFields{}, fmt.Errorf("failed to read stored file: %w", err)
	}

	type outcome struct {
		fields models.ExtractedFields
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer cleanup()
		f, err := r.extractor.Extract(ctx, path)
		done <- outcome{f, err}
	}()

	select {
	case o := <-done:
		return o.fields, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && r.timeout > 0 {
			return models.ExtractedFields{}, fmt.Errorf("extraction timed out after %s", r.timeout)
		}
		return models.ExtractedFields{}, fmt.Errorf("extraction aborted: %w", ctx.Err())
	}
}

// fail records FAILED with cause's text. The document is not touched.
func (r *Runner) fail(ctx context.Context, job *models.ExtractionJob, cause error) (*Result, error) {
	finished := now()
	msg := cause.Error()
	wctx := context.WithoutCancel(ctx)
	if err := r.store.FailJob(wctx, job.ID, msg, finished); err != nil {
		return nil, fmt.Errorf("failed to record job failure (%s): %w", msg, err)
	}

	job.Status = models.JobFailed
	job.ErrorMessage = &msg
	job.FinishedAt = &finished
	r.notify(wctx, job, models.EventExtractionFailed)

	return &Result{Job: job, Failure: msg}, nil
}

func (r *Runner) notify(ctx context.Context, job *models.ExtractionJob, event string) {
	if r.notifier == nil {
		return
	}
	r.notifier.NotifyEvent(ctx, job.OwnerID, event, job)
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
