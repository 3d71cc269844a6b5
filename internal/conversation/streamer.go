package conversation

import (
	"context"
	"log/slog"
	"time"

	"github.com/bizassist/voicebridge/internal/engine"
	"github.com/bizassist/voicebridge/internal/metrics"
)

// responseStreamer is the consumer half of the turn pipeline: it drains the
// chunk channel and drives synthesis in arrival order while polling continues
// in the background. It keeps draining chunks already queued after the
// producer closes the channel, so a cancel never strands buffered audio, and
// it exits as soon as the closed channel is empty.
type responseStreamer struct {
	synth  engine.Synthesizer
	logger *slog.Logger
}

// consume speaks chunks until the channel is closed and drained, returning
// the number synthesized. A synthesis failure for one chunk is logged and the
// loop continues; the caller hears silence for that chunk instead of a
// dropped turn.
func (r *responseStreamer) consume(ctx context.Context, chunks <-chan string) int {
	spoken := 0
	for chunk := range chunks {
		if chunk == "" {
			continue
		}
		start := time.Now()
		if err := r.synth.Speak(ctx, chunk); err != nil {
			metrics.Errors.WithLabelValues("synthesis", "speak").Inc()
			r.logger.Error("synthesis failed, skipping chunk", "error", err, "chunk_len", len(chunk))
			continue
		}
		metrics.StageDuration.WithLabelValues("synthesis").Observe(time.Since(start).Seconds())
		spoken++
	}
	return spoken
}
