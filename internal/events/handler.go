package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
)

// CallAnswerer answers an incoming call; the media stream then arrives on
// the session endpoint.
type CallAnswerer interface {
	Answer(ctx context.Context, incomingCallContext string) error
}

// SessionStopper stops active media sessions when the call ends.
type SessionStopper interface {
	StopAll()
}

// Handler serves the call-control webhook endpoints.
type Handler struct {
	answerer CallAnswerer
	sessions SessionStopper
	logger   *slog.Logger
}

func NewHandler(answerer CallAnswerer, sessions SessionStopper, logger *slog.Logger) *Handler {
	return &Handler{answerer: answerer, sessions: sessions, logger: logger}
}

// HandleIncoming processes subscription validation handshakes and
// incoming-call notifications.
func (h *Handler) HandleIncoming(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		http.Error(w, "empty request body", http.StatusBadRequest)
		return
	}

	evts, err := DecodeEvents(body)
	if err != nil {
		h.logger.Error("webhook decode failed", "error", err)
		http.Error(w, "malformed events", http.StatusBadRequest)
		return
	}

	for _, ev := range evts {
		switch ev.Kind {
		case KindValidation:
			h.logger.Info("subscription validation", "url", ev.Validation.ValidationURL)
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{
				"validationResponse": ev.Validation.ValidationCode,
			})
			return
		case KindIncomingCall:
			h.handleIncomingCall(r.Context(), ev.Call)
		default:
			h.logger.Warn("unknown event type", "type", ev.Type)
		}
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleIncomingCall(ctx context.Context, call *CallData) {
	caller := ""
	if call.From != nil && call.From.PhoneNumber != nil {
		caller = call.From.PhoneNumber.Value
	}
	h.logger.Info("incoming call", "caller", caller, "server_call_id", call.ServerCallID, "correlation_id", call.CorrelationID)

	if call.IncomingCallContext == "" {
		h.logger.Error("incoming call without call context")
		return
	}
	if err := h.answerer.Answer(ctx, call.IncomingCallContext); err != nil {
		h.logger.Error("answer call failed", "error", err)
	}
}

// HandleCallback processes mid-call connection callbacks. A disconnect stops
// the active media sessions; other events are informational.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		http.Error(w, "empty request body", http.StatusBadRequest)
		return
	}

	evts, err := DecodeCallbacks(body)
	if err != nil {
		h.logger.Error("callback decode failed", "error", err)
		http.Error(w, "malformed callback", http.StatusBadRequest)
		return
	}

	for _, ev := range evts {
		switch ev.Type {
		case TypeCallConnected:
			h.logger.Info("call connected", "call_connection_id", ev.Data.CallConnectionID)
		case TypeCallDisconnected:
			h.logger.Info("call disconnected, stopping sessions", "call_connection_id", ev.Data.CallConnectionID)
			h.sessions.StopAll()
		case TypeParticipantsUpdated:
			h.logger.Info("participants updated", "call_connection_id", ev.Data.CallConnectionID, "count", len(ev.Data.Participants))
		default:
			h.logger.Warn("unhandled callback type", "type", ev.Type)
		}
	}

	w.WriteHeader(http.StatusOK)
}
