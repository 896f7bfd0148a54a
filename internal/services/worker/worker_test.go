package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shimizu-Technology/docvault-api/internal/models"
	"github.com/Shimizu-Technology/docvault-api/internal/services/extraction"
)

type fakeRunner struct {
	mu    sync.Mutex
	ran   []string
	block chan struct{}
	err   error
	panic bool
}

func (f *fakeRunner) RunQueued(_ context.Context, jobID string) (*extraction.Result, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.ran = append(f.ran, jobID)
	shouldPanic, err := f.panic, f.err
	f.mu.Unlock()
	if shouldPanic {
		panic("boom")
	}
	if err != nil {
		return nil, err
	}
	return &extraction.Result{Job: &models.ExtractionJob{ID: jobID, Status: models.JobSuccess}}, nil
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ran)
}

type fakeLister []string

func (f fakeLister) ListQueuedJobIDs(context.Context, int) ([]string, error) {
	return f, nil
}

func TestPoolRunsSubmittedJobs(t *testing.T) {
	runner := &fakeRunner{}
	p := NewPool(2, 10, runner, nil)
	p.Start()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, p.Submit(id))
	}
	assert.Eventually(t, func() bool { return runner.count() == 3 }, time.Second, 5*time.Millisecond)

	p.Stop()
	assert.ErrorIs(t, p.Submit("d"), ErrStopped)
	p.Stop() // idempotent
}

func TestSubmitIsNonBlockingWhenFull(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	p := NewPool(1, 1, runner, nil)
	// Not started: nothing drains the buffer.
	require.NoError(t, p.Submit("a"))
	assert.ErrorIs(t, p.Submit("b"), ErrQueueFull)
	assert.Equal(t, 1, p.QueueSize())
	assert.Equal(t, 1, p.WorkerCount())
	close(runner.block)
}

func TestWorkerSurvivesFailuresAndPanics(t *testing.T) {
	runner := &fakeRunner{panic: true}
	p := NewPool(1, 10, runner, nil)
	p.Start()
	defer p.Stop()

	require.NoError(t, p.Submit("a"))
	require.NoError(t, p.Submit("b"))
	assert.Eventually(t, func() bool { return runner.count() == 2 }, time.Second, 5*time.Millisecond)

	runner.mu.Lock()
	runner.panic = false
	runner.err = errors.New("db down")
	runner.mu.Unlock()
	require.NoError(t, p.Submit("c"))
	assert.Eventually(t, func() bool { return runner.count() == 3 }, time.Second, 5*time.Millisecond)
}

func TestRecover(t *testing.T) {
	runner := &fakeRunner{}
	p := NewPool(1, 10, runner, nil)
	p.Start()
	defer p.Stop()

	n, err := p.Recover(context.Background(), fakeLister{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Eventually(t, func() bool { return runner.count() == 2 }, time.Second, 5*time.Millisecond)
}
