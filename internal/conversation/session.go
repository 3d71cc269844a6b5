// Package conversation owns one logical exchange with the assistant engine:
// a transcript goes in, a run is driven to completion, and the harvested
// response chunks are synthesized concurrently with the polling loop.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bizassist/voicebridge/internal/engine"
	"github.com/bizassist/voicebridge/internal/metrics"
)

const (
	// defaultPollInterval matches the original service's run poll delay.
	defaultPollInterval = 500 * time.Millisecond

	// chunkQueueDepth decouples poll latency from audio-out pacing; the
	// poller only blocks if synthesis falls this many chunks behind.
	chunkQueueDepth = 16
)

// Config wires a Session's collaborators. Engine, Synthesizer, AssistantID
// and Logger are required.
type Config struct {
	Engine       engine.Assistant
	Synthesizer  engine.Synthesizer
	AssistantID  string
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Session tracks a single engine-side thread identity across turns. The
// thread is a session-scoped resource: it is created on the first Submit and
// reused for the session's remaining lifetime.
type Session struct {
	engine       engine.Assistant
	synth        engine.Synthesizer
	assistantID  string
	pollInterval time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	threadID string
	emitted  int
}

func NewSession(cfg Config) *Session {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Session{
		engine:       cfg.Engine,
		synth:        cfg.Synthesizer,
		assistantID:  cfg.AssistantID,
		pollInterval: interval,
		logger:       cfg.Logger,
	}
}

// ThreadID returns the cached engine thread id, empty before the first
// successful Submit.
func (s *Session) ThreadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadID
}

// Submit posts the transcript to the session thread, starts a run, and
// spawns the poll/synthesis pipeline for it. Posting and run start are one
// logical step: any failure is returned here and no Turn exists. The thread
// id is cached as soon as creation succeeds, even if the post then fails, so
// a retry never creates a duplicate thread.
//
// ctx should be the session-lifetime context: cancelling it aborts both the
// poller and the synthesis consumer. Turn.Cancel stops only the poller and
// lets the consumer drain.
func (s *Session) Submit(ctx context.Context, transcript string) (*Turn, error) {
	threadID, err := s.ensureThread(ctx)
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}

	if err := s.engine.PostMessage(ctx, threadID, engine.RoleUser, transcript); err != nil {
		metrics.Errors.WithLabelValues("run", "post").Inc()
		return nil, fmt.Errorf("post transcript: %w", err)
	}

	pollCtx, cancel := context.WithCancel(ctx)
	poller := &runPoller{
		engine:      s.engine,
		threadID:    threadID,
		assistantID: s.assistantID,
		interval:    s.pollInterval,
		logger:      s.logger,
		// The thread accumulates messages across turns; start the
		// positional dedup past everything earlier turns surfaced.
		emitted: s.emittedCount(),
	}

	runID, err := poller.start(pollCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("start run: %w", err)
	}

	turn := &Turn{
		ID:       uuid.NewString(),
		ThreadID: threadID,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	turn.setRun(runID, engine.RunQueued)
	metrics.TurnsTotal.Inc()

	s.logger.Info("turn started", "turn_id", turn.ID, "thread_id", threadID, "run_id", runID)

	chunks := make(chan string, chunkQueueDepth)
	streamer := &responseStreamer{synth: s.synth, logger: s.logger}
	start := time.Now()

	go func() {
		defer close(chunks)
		if err := poller.drive(pollCtx, turn, chunks); err != nil {
			turn.setErr(err)
		}
		s.setEmitted(poller.emitted)
	}()

	go func() {
		// Drains on the session context, not pollCtx: a cancelled turn
		// still speaks the chunks queued before the cancel.
		spoken := streamer.consume(ctx, chunks)
		cancel()
		metrics.TurnDuration.Observe(time.Since(start).Seconds())
		s.logger.Info("turn finished", "turn_id", turn.ID, "run_id", runID, "status", turn.Status(), "chunks_spoken", spoken)
		turn.finish(spoken)
	}()

	return turn, nil
}

func (s *Session) emittedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitted
}

func (s *Session) setEmitted(n int) {
	s.mu.Lock()
	if n > s.emitted {
		s.emitted = n
	}
	s.mu.Unlock()
}

func (s *Session) ensureThread(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.threadID != "" {
		return s.threadID, nil
	}
	threadID, err := s.engine.CreateThread(ctx)
	if err != nil {
		return "", err
	}
	s.threadID = threadID
	s.logger.Info("thread created", "thread_id", threadID)
	return threadID, nil
}
