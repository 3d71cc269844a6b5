package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bizassist/voicebridge/internal/engine"
	"github.com/bizassist/voicebridge/internal/metrics"
)

// runPoller drives one assistant run to completion, harvesting incremental
// assistant messages into a chunk channel. The poll interval is fixed: voice
// latency favors a short constant period over throughput-shaped backoff.
type runPoller struct {
	engine      engine.Assistant
	threadID    string
	assistantID string
	interval    time.Duration
	logger      *slog.Logger

	runID   string
	emitted int
}

func (p *runPoller) start(ctx context.Context) (string, error) {
	runID, err := p.engine.StartRun(ctx, p.threadID, p.assistantID)
	if err != nil {
		metrics.Errors.WithLabelValues("run", "start").Inc()
		return "", err
	}
	p.runID = runID
	return runID, nil
}

// drive polls status and messages until the run is terminal or ctx is
// cancelled, sending fresh assistant chunks to out in backend order. It never
// closes out; the caller does once drive returns. Context cancellation stops
// polling within one interval and is not reported as an error.
func (p *runPoller) drive(ctx context.Context, turn *Turn, out chan<- string) error {
	status := engine.RunQueued

	for !status.Terminal() {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.interval):
		}

		var err error
		status, err = p.engine.RunStatus(ctx, p.threadID, p.runID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			metrics.Errors.WithLabelValues("run", "poll").Inc()
			return fmt.Errorf("poll run status: %w", err)
		}
		metrics.RunPolls.Inc()
		turn.setStatus(status)

		msgs, err := p.engine.ListMessages(ctx, p.threadID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			metrics.Errors.WithLabelValues("run", "messages").Inc()
			return fmt.Errorf("list messages: %w", err)
		}

		for _, chunk := range p.harvest(msgs) {
			select {
			case out <- chunk:
				metrics.ChunksEmitted.Inc()
			case <-ctx.Done():
				return nil
			}
		}
	}

	if status == engine.RunFailed || status == engine.RunCancelled {
		return &RunFailedError{Status: status}
	}
	return nil
}

// harvest returns the assistant chunks not yet surfaced in an earlier poll.
// Chunks have no identity beyond arrival order, so dedup is positional: the
// backend returns the full ordered list each poll and only the tail past the
// emitted count is new.
func (p *runPoller) harvest(msgs []engine.Message) []string {
	var texts []string
	for _, m := range msgs {
		if m.Role == engine.RoleAssistant && m.Text != "" {
			texts = append(texts, m.Text)
		}
	}
	if len(texts) <= p.emitted {
		return nil
	}
	fresh := texts[p.emitted:]
	p.emitted = len(texts)
	return fresh
}
