package session

import "errors"

// ErrAlreadyActive is returned when opening a session whose duplex channel
// is already open or streaming.
var ErrAlreadyActive = errors.New("session already active")

// State is the duplex-session lifecycle. Closed is terminal and irreversible;
// Error absorbs from any state before teardown completes.
type State int32

const (
	StateIdle State = iota
	StateOpen
	StateStreaming
	StateClosing
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "open"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	}
	return "unknown"
}
