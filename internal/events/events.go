// Package events decodes and routes the call-control webhooks: subscription
// validation and incoming-call notifications on one endpoint, mid-call
// connection callbacks on another. Each envelope is resolved to a tagged
// variant once at decode time; handlers dispatch on the kind only.
package events

import (
	"encoding/json"
	"fmt"
)

// Event type strings as the telephony platform sends them.
const (
	TypeValidation   = "Microsoft.EventGrid.SubscriptionValidationEvent"
	TypeIncomingCall = "Microsoft.Communication.IncomingCall"

	TypeCallConnected       = "Microsoft.Communication.CallConnected"
	TypeCallDisconnected    = "Microsoft.Communication.CallDisconnected"
	TypeParticipantsUpdated = "Microsoft.Communication.ParticipantsUpdated"
)

// Kind is the decoded variant of a grid event.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindIncomingCall
)

// ValidationData carries the subscription handshake code.
type ValidationData struct {
	ValidationCode string `json:"validationCode"`
	ValidationURL  string `json:"validationUrl"`
}

// PhoneNumber is a caller or callee number.
type PhoneNumber struct {
	Value string `json:"value"`
}

// CallEndpoint identifies one side of an incoming call.
type CallEndpoint struct {
	Kind        string       `json:"kind"`
	RawID       string       `json:"rawId"`
	PhoneNumber *PhoneNumber `json:"phoneNumber"`
}

// CallData is the payload of an incoming-call notification.
type CallData struct {
	To                  *CallEndpoint `json:"to"`
	From                *CallEndpoint `json:"from"`
	ServerCallID        string        `json:"serverCallId"`
	CallerDisplayName   string        `json:"callerDisplayName"`
	IncomingCallContext string        `json:"incomingCallContext"`
	CorrelationID       string        `json:"correlationId"`
}

// Event is one decoded grid envelope. Exactly one of Validation/Call is set,
// matching Kind; unknown types keep only the raw type string.
type Event struct {
	Kind       Kind
	Type       string
	Validation *ValidationData
	Call       *CallData
}

type gridEnvelope struct {
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
}

// DecodeEvents parses a webhook body holding either a single envelope or an
// array of them.
func DecodeEvents(body []byte) ([]Event, error) {
	var envelopes []gridEnvelope
	if err := json.Unmarshal(body, &envelopes); err != nil {
		var single gridEnvelope
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
		envelopes = []gridEnvelope{single}
	}

	events := make([]Event, 0, len(envelopes))
	for _, env := range envelopes {
		ev, err := decodeEnvelope(env)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func decodeEnvelope(env gridEnvelope) (Event, error) {
	switch env.EventType {
	case TypeValidation:
		var data ValidationData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return Event{}, fmt.Errorf("decode validation event: %w", err)
		}
		return Event{Kind: KindValidation, Type: env.EventType, Validation: &data}, nil
	case TypeIncomingCall:
		var data CallData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return Event{}, fmt.Errorf("decode incoming call event: %w", err)
		}
		return Event{Kind: KindIncomingCall, Type: env.EventType, Call: &data}, nil
	default:
		return Event{Kind: KindUnknown, Type: env.EventType}, nil
	}
}

// CallbackEvent is a mid-call connection callback (cloud-event shaped).
type CallbackEvent struct {
	ID   string       `json:"id"`
	Type string       `json:"type"`
	Data CallbackData `json:"data"`
}

// CallbackData carries the connection identity and, for participant
// updates, the roster.
type CallbackData struct {
	CallConnectionID string        `json:"callConnectionId"`
	ServerCallID     string        `json:"serverCallId"`
	CorrelationID    string        `json:"correlationId"`
	Participants     []Participant `json:"participants"`
}

// Participant is one member of the call roster.
type Participant struct {
	Identifier *CallEndpoint `json:"identifier"`
	IsMuted    bool          `json:"isMuted"`
}

// DecodeCallbacks parses a callback body holding one event or an array.
func DecodeCallbacks(body []byte) ([]CallbackEvent, error) {
	var events []CallbackEvent
	if err := json.Unmarshal(body, &events); err != nil {
		var single CallbackEvent
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, fmt.Errorf("decode callbacks: %w", err)
		}
		events = []CallbackEvent{single}
	}
	return events, nil
}
