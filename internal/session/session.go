// Package session owns the duplex media channel: it decodes inbound frames,
// accumulates utterances, hands finalized utterances to recognition, and
// supervises the conversation turn spawned for each transcript. The socket is
// owned exclusively by the session; outbound audio goes through it only via
// the playback sink.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bizassist/voicebridge/internal/conversation"
	"github.com/bizassist/voicebridge/internal/engine"
	"github.com/bizassist/voicebridge/internal/media"
	"github.com/bizassist/voicebridge/internal/metrics"
)

// Conversation is the slice of conversation.Session the media session needs.
type Conversation interface {
	Submit(ctx context.Context, transcript string) (*conversation.Turn, error)
}

// Session supervises one duplex audio channel from accept to close.
type Session struct {
	id         string
	conn       *websocket.Conn
	recognizer engine.Recognizer
	conv       Conversation
	logger     *slog.Logger

	writeMu sync.Mutex

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc

	utt       media.UtteranceBuffer
	closeOnce sync.Once
	done      chan struct{}
}

func newSession(id string, conn *websocket.Conn, recognizer engine.Recognizer, logger *slog.Logger) *Session {
	return &Session{
		id:         id,
		conn:       conn,
		recognizer: recognizer,
		logger:     logger.With("session_id", id),
		state:      StateIdle,
		done:       make(chan struct{}),
	}
}

func (s *Session) setConversation(conv Conversation) {
	s.conv = conv
}

// ID returns the session identity.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run drives the session until the channel closes, an unrecoverable error
// occurs, or Stop is called. It returns only after all turn tasks have been
// awaited and the socket is closed; no background task outlives it.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyActive
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateOpen
	s.mu.Unlock()
	defer cancel()

	s.logger.Info("session open")

	// Defer the close handshake: the final utterance is recognized and the
	// response spoken back before we answer the peer's close frame.
	s.conn.SetCloseHandler(func(code int, text string) error { return nil })

	clean := s.receive(ctx)

	s.transition(StateClosing)
	if clean {
		if ctx.Err() == nil {
			// Call end with audio still buffered: finalize and run the
			// last turn before the channel goes away.
			s.runTurn(ctx)
		}
	} else {
		s.transition(StateError)
		cancel()
	}

	s.closeSocket()
	s.transition(StateClosed)
	close(s.done)
	s.logger.Info("session closed")
	return nil
}

// receive decodes inbound frames until the socket closes. It reports whether
// the session ended cleanly (close frame or Stop) as opposed to an I/O error.
func (s *Session) receive(ctx context.Context) bool {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("media channel closed by peer")
				return true
			}
			if ctx.Err() != nil || s.State() >= StateClosing {
				return true
			}
			s.logger.Warn("media channel read failed", "error", err)
			return false
		}
		if msgType != websocket.TextMessage {
			continue
		}

		frame, err := media.DecodeFrame(data)
		if err != nil {
			metrics.FramesDropped.Inc()
			s.logger.Warn("dropping malformed frame", "error", err)
			continue
		}
		metrics.FramesTotal.WithLabelValues(string(frame.Kind)).Inc()

		switch frame.Kind {
		case media.KindAudioData:
			if len(frame.Payload) == 0 {
				continue
			}
			s.markStreaming()
			s.utt.Append(frame.Payload)
		case media.KindStopAudio:
			s.runTurn(ctx)
		case media.KindAudioMetadata:
			// Format announcement; nothing to do.
		default:
			s.logger.Warn("unhandled frame kind", "kind", frame.Kind)
		}

		if ctx.Err() != nil {
			return true
		}
	}
}

// runTurn finalizes the current utterance and, when it holds audio, runs one
// full recognize→submit→drain cycle. Turn-scoped failures are logged and the
// session stays open for the next turn.
func (s *Session) runTurn(ctx context.Context) {
	audio := s.utt.Finalize()
	if len(audio) == 0 {
		return
	}

	transcript, err := s.recognizer.Recognize(ctx, audio)
	if err != nil {
		if errors.Is(err, engine.ErrNoSpeech) {
			s.logger.Info("utterance had no recognizable speech", "audio_bytes", len(audio))
			return
		}
		s.logger.Error("recognition failed", "error", err, "audio_bytes", len(audio))
		return
	}
	s.logger.Info("transcript", "text", transcript, "audio_bytes", len(audio))

	turn, err := s.conv.Submit(ctx, transcript)
	if err != nil {
		s.logger.Error("turn submit failed", "error", err)
		return
	}

	// Always await the drain: cancelling without the await would race a
	// synthesis call against the closing socket.
	if err := turn.Wait(context.Background()); err != nil {
		var rf *conversation.RunFailedError
		if errors.As(err, &rf) {
			s.logger.Error("assistant run failed", "turn_id", turn.ID, "status", rf.Status)
			return
		}
		s.logger.Error("turn failed", "turn_id", turn.ID, "error", err)
	}
}

// Stop ends the session from outside (call control, shutdown). It cancels
// in-flight work, closes the socket, and waits for Run to finish. Calling it
// on a closed session is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == StateClosed || s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.closeSocket()
	<-s.done
}

// WriteAudio frames synthesized audio for the outbound direction. It is the
// only write path besides the close handshake; the consumer task is its sole
// caller during a turn.
func (s *Session) WriteAudio(payload []byte) error {
	data, err := media.EncodeAudioFrame(payload, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) closeSocket() {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		deadline := time.Now().Add(time.Second)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"), deadline)
		s.writeMu.Unlock()
		if err := s.conn.Close(); err != nil {
			s.logger.Warn("socket close", "error", err)
		}
	})
}

func (s *Session) markStreaming() {
	s.mu.Lock()
	if s.state == StateOpen {
		s.state = StateStreaming
	}
	s.mu.Unlock()
}

func (s *Session) transition(to State) {
	s.mu.Lock()
	if s.state != StateClosed {
		s.state = to
	}
	s.mu.Unlock()
}
