package session

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bizassist/voicebridge/internal/conversation"
	"github.com/bizassist/voicebridge/internal/engine"
	"github.com/bizassist/voicebridge/internal/metrics"
	"github.com/bizassist/voicebridge/internal/speech"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandlerConfig holds the shared backend clients for all media sessions.
type HandlerConfig struct {
	Recognizer    engine.Recognizer
	Assistant     engine.Assistant
	Synthesis     *speech.SynthesisClient
	AssistantID   string
	PollInterval  time.Duration
	MaxConcurrent int
	Logger        *slog.Logger
}

// Handler upgrades media-streaming connections and runs one Session per
// connection, with admission control and a registry so call control can stop
// sessions when the call ends.
type Handler struct {
	cfg HandlerConfig
	sem chan struct{}

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewHandler creates a media handler with shared backend clients and a
// concurrency limit.
func NewHandler(cfg HandlerConfig) *Handler {
	maxConc := cfg.MaxConcurrent
	if maxConc <= 0 {
		maxConc = 100
	}
	return &Handler{
		cfg:      cfg,
		sem:      make(chan struct{}, maxConc),
		sessions: make(map[string]*Session),
	}
}

// ServeHTTP upgrades the connection and runs the media session to completion.
// Returns 503 at max concurrent capacity.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.cfg.Logger.Error("websocket upgrade failed", "error", err)
		return
	}

	metrics.SessionsActive.Inc()
	metrics.SessionsTotal.Inc()
	defer metrics.SessionsActive.Dec()

	sess := h.newSession(conn)
	h.register(sess)
	defer h.unregister(sess)

	if err := sess.Run(r.Context()); err != nil {
		h.cfg.Logger.Error("session ended with error", "session_id", sess.ID(), "error", err)
	}
}

// newSession wires one session: the session itself is the playback sink for
// its speaker, so the conversation is attached after construction.
func (h *Handler) newSession(conn *websocket.Conn) *Session {
	sess := newSession(uuid.NewString(), conn, h.cfg.Recognizer, h.cfg.Logger)
	speaker := speech.NewSpeaker(h.cfg.Synthesis, sess)
	sess.setConversation(conversation.NewSession(conversation.Config{
		Engine:       h.cfg.Assistant,
		Synthesizer:  speaker,
		AssistantID:  h.cfg.AssistantID,
		PollInterval: h.cfg.PollInterval,
		Logger:       sess.logger,
	}))
	return sess
}

// StopAll stops every active session; used when call control reports the
// call disconnected and on shutdown. Safe to call repeatedly.
func (h *Handler) StopAll() {
	h.mu.Lock()
	active := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		active = append(active, s)
	}
	h.mu.Unlock()

	for _, s := range active {
		s.Stop()
	}
}

// ActiveSessions reports how many sessions are currently registered.
func (h *Handler) ActiveSessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *Handler) register(s *Session) {
	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()
}

func (h *Handler) unregister(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s.id)
	h.mu.Unlock()
}
