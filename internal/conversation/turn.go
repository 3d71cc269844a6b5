package conversation

import (
	"context"
	"fmt"
	"sync"

	"github.com/bizassist/voicebridge/internal/engine"
)

// RunFailedError reports a run that reached a terminal Failed or Cancelled
// state on the engine side. Retrying is a caller decision.
type RunFailedError struct {
	Status engine.RunStatus
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("assistant run ended with status %s", e.Status)
}

// Turn is one transcript-in/response-out cycle. It owns the cancellation
// handle for its poll loop; the run handle (run id + last observed status) is
// written only by the poller.
type Turn struct {
	ID       string
	ThreadID string

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	runID  string
	status engine.RunStatus
	spoken int
	err    error
}

// RunID returns the engine-side run identity, immutable after creation.
func (t *Turn) RunID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runID
}

// Status returns the last run status observed by the poller.
func (t *Turn) Status() engine.RunStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Spoken returns how many response chunks the consumer synthesized. Valid
// once Wait has returned.
func (t *Turn) Spoken() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spoken
}

// Cancel stops the poll loop promptly (within one poll interval). Chunks
// already queued are still drained by the consumer; callers must still Wait
// before tearing down audio-out.
func (t *Turn) Cancel() {
	t.cancel()
}

// Wait blocks until the producer has stopped and the consumer has drained,
// then reports the turn outcome. A *RunFailedError marks a Failed/Cancelled
// run; local cancellation is not an error.
func (t *Turn) Wait(ctx context.Context) error {
	select {
	case <-t.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Turn) setRun(runID string, status engine.RunStatus) {
	t.mu.Lock()
	t.runID = runID
	t.status = status
	t.mu.Unlock()
}

func (t *Turn) setStatus(status engine.RunStatus) {
	t.mu.Lock()
	t.status = status
	t.mu.Unlock()
}

func (t *Turn) setErr(err error) {
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
}

func (t *Turn) finish(spoken int) {
	t.mu.Lock()
	t.spoken = spoken
	t.mu.Unlock()
	close(t.done)
}
