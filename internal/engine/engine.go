// Package engine defines the narrow contracts the bridge needs from its
// external collaborators: speech recognition, speech synthesis, and the
// assistant run engine. Concrete adapters live in subpackages and in
// internal/speech.
package engine

import (
	"context"
	"errors"
)

// ErrNoSpeech is returned by a Recognizer when the audio contained no
// recognizable speech. The caller treats it as an empty turn, not a failure.
var ErrNoSpeech = errors.New("no speech detected")

// Recognizer converts one finalized utterance to text.
type Recognizer interface {
	Recognize(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer speaks one chunk of assistant text. Any underlying audio-out
// resource is acquired for the duration of the call only.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// RunStatus is the lifecycle state of an assistant run.
type RunStatus string

const (
	RunQueued     RunStatus = "queued"
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
	RunCancelled  RunStatus = "cancelled"
)

// Terminal reports whether the run has finished and will not change again.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled:
		return true
	}
	return false
}

// Message roles as the run engine reports them.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry in a thread's message list, in backend order.
type Message struct {
	Role string
	Text string
}

// Assistant is the stateful run engine behind a conversation: threads
// accumulate messages across turns, runs are started against a thread and
// polled to completion.
type Assistant interface {
	CreateThread(ctx context.Context) (string, error)
	PostMessage(ctx context.Context, threadID, role, text string) error
	StartRun(ctx context.Context, threadID, assistantID string) (string, error)
	RunStatus(ctx context.Context, threadID, runID string) (RunStatus, error)
	ListMessages(ctx context.Context, threadID string) ([]Message, error)
}
