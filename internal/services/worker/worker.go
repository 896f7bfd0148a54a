// Package worker runs deferred extraction jobs on a pool of goroutines.
//
// Go Pattern: Goroutines and channels are Go's concurrency primitives.
// This worker pool pattern is very common in Go:
// 1. Create a buffered channel as a job queue
// 2. Spawn N worker goroutines that read from the channel
// 3. Send job IDs to the channel from your HTTP handlers
// 4. Workers process jobs concurrently
//
// Only job IDs travel through the channel. The job row in the database is
// the source of truth, so a job that never makes it into the channel (queue
// full, process restart) is still QUEUED and is picked up by Recover.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Shimizu-Technology/docvault-api/internal/services/extraction"
)

// ErrQueueFull is returned by Submit when the buffer is at capacity.
var ErrQueueFull = errors.New("job queue is full; try again later")

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("worker pool is stopped")

// JobRunner executes one queued job. *extraction.Runner implements it.
type JobRunner interface {
	RunQueued(ctx context.Context, jobID string) (*extraction.Result, error)
}

// QueuedJobLister lists jobs still waiting to run. *database.DB implements it.
type QueuedJobLister interface {
	ListQueuedJobIDs(ctx context.Context, limit int) ([]string, error)
}

// Pool manages a pool of worker goroutines.
type Pool struct {
	jobs    chan string
	workers int
	runner  JobRunner
	logger  *zap.Logger

	// mu guards stopped so Submit never sends on a closed channel.
	mu      sync.RWMutex
	stopped bool

	wg sync.WaitGroup

	// Go Pattern: context.Context with cancel for graceful shutdown.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPool creates a new worker pool.
func NewPool(workers, queueSize int, runner JobRunner, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		jobs:    make(chan string, queueSize),
		workers: workers,
		runner:  runner,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	p.logger.Info("starting extraction workers", zap.Int("workers", p.workers))
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop stops accepting jobs and waits for in-flight jobs to finish. Jobs
// still buffered are left QUEUED in the database for the next Recover.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
	p.logger.Info("all extraction workers stopped")
}

// Submit adds a job ID to the queue without blocking.
func (p *Pool) Submit(jobID string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}

	select {
	case p.jobs <- jobID:
		p.logger.Debug("job queued", zap.String("job_id", jobID))
		return nil
	default:
		return ErrQueueFull
	}
}

// Recover submits jobs left QUEUED by a previous process. It stops at the
// first full-queue error; the rest stay QUEUED.
func (p *Pool) Recover(ctx context.Context, lister QueuedJobLister) (int, error) {
	ids, err := lister.ListQueuedJobIDs(ctx, cap(p.jobs))
	if err != nil {
		return 0, fmt.Errorf("failed to list queued jobs: %w", err)
	}
	n := 0
	for _, id := range ids {
		if err := p.Submit(id); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		p.logger.Info("recovered queued jobs", zap.Int("count", n))
	}
	return n, nil
}

// QueueSize returns the current number of jobs in the queue.
func (p *Pool) QueueSize() int {
	return len(p.jobs)
}

// WorkerCount returns the number of workers.
func (p *Pool) WorkerCount() int {
	return p.workers
}

// worker is the main loop for each worker goroutine.
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	log := p.logger.With(zap.Int("worker", id))
	log.Debug("worker started")

	// Go Pattern: `range` over a channel reads values until the channel is closed.
	for jobID := range p.jobs {
		if p.ctx.Err() != nil {
			// Shutting down: leave the rest QUEUED.
			continue
		}
		p.process(log, jobID)
	}
	log.Debug("worker stopped")
}

func (p *Pool) process(log *zap.Logger, jobID string) {
	// A panic in one job must not take the worker down with it.
	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", zap.String("job_id", jobID), zap.Any("panic", r))
		}
	}()

	// In-flight jobs finish even during shutdown.
	res, err := p.runner.RunQueued(context.WithoutCancel(p.ctx), jobID)
	switch {
	case errors.Is(err, extraction.ErrJobNotQueued):
		log.Debug("job already taken", zap.String("job_id", jobID))
	case err != nil:
		log.Error("job failed to run", zap.String("job_id", jobID), zap.Error(err))
	case res.Succeeded():
		log.Info("job succeeded", zap.String("job_id", jobID))
	default:
		log.Info("job failed", zap.String("job_id", jobID), zap.String("error", res.Failure))
	}
}
