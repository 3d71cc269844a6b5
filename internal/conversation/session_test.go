package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bizassist/voicebridge/internal/engine"
)

// pollStep is what the fake engine reports for one poll cycle: the run
// status and the full ordered message list at that instant.
type pollStep struct {
	status engine.RunStatus
	msgs   []engine.Message
}

type fakeEngine struct {
	mu        sync.Mutex
	createErr error
	postErr   error
	startErr  error
	created   int
	posted    []string
	runs      int
	steps     []pollStep
	scripts   [][]pollStep
	idx       int
}

func (f *fakeEngine) CreateThread(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created++
	return fmt.Sprintf("thread_%d", f.created), nil
}

func (f *fakeEngine) PostMessage(ctx context.Context, threadID, role, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return f.postErr
	}
	f.posted = append(f.posted, text)
	return nil
}

func (f *fakeEngine) StartRun(ctx context.Context, threadID, assistantID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	f.runs++
	if len(f.scripts) > 0 {
		f.steps = f.scripts[0]
		f.scripts = f.scripts[1:]
	}
	f.idx = 0
	return fmt.Sprintf("run_%d", f.runs), nil
}

func (f *fakeEngine) RunStatus(ctx context.Context, threadID, runID string) (engine.RunStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step().status, nil
}

func (f *fakeEngine) ListMessages(ctx context.Context, threadID string) ([]engine.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.step().msgs
	if f.idx < len(f.steps)-1 {
		f.idx++
	}
	return msgs, nil
}

// step returns the current poll step, holding at the last one forever.
func (f *fakeEngine) step() pollStep {
	if f.idx >= len(f.steps) {
		return f.steps[len(f.steps)-1]
	}
	return f.steps[f.idx]
}

func (f *fakeEngine) threadsCreated() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

type fakeSynth struct {
	mu     sync.Mutex
	spoken []string
	failOn string
	delay  time.Duration
}

func (f *fakeSynth) Speak(ctx context.Context, text string) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if text == f.failOn {
		return errors.New("synthesis backend unavailable")
	}
	f.spoken = append(f.spoken, text)
	return nil
}

func (f *fakeSynth) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.spoken))
	copy(out, f.spoken)
	return out
}

func newTestSession(eng engine.Assistant, synth engine.Synthesizer) *Session {
	return NewSession(Config{
		Engine:       eng,
		Synthesizer:  synth,
		AssistantID:  "asst_test",
		PollInterval: 2 * time.Millisecond,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func waitTurn(t *testing.T, turn *Turn) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := turn.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("turn did not finish in time")
	}
	return err
}

func TestSubmitSpeaksChunksInArrivalOrder(t *testing.T) {
	eng := &fakeEngine{steps: []pollStep{
		{status: engine.RunInProgress, msgs: []engine.Message{
			{Role: engine.RoleUser, Text: "hi"},
			{Role: engine.RoleAssistant, Text: "Hello."},
		}},
		{status: engine.RunCompleted, msgs: []engine.Message{
			{Role: engine.RoleUser, Text: "hi"},
			{Role: engine.RoleAssistant, Text: "Hello."},
			{Role: engine.RoleAssistant, Text: "How can I help?"},
		}},
	}}
	synth := &fakeSynth{}
	sess := newTestSession(eng, synth)

	turn, err := sess.Submit(context.Background(), "hi")
	if err != nil {
		t.Fatalf("expected submit to succeed, got error: %v", err)
	}
	if err := waitTurn(t, turn); err != nil {
		t.Fatalf("expected clean turn, got error: %v", err)
	}

	want := []string{"Hello.", "How can I help?"}
	got := synth.all()
	if len(got) != len(want) {
		t.Fatalf("expected %d chunks spoken, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected chunk %d to be %q, got %q", i, want[i], got[i])
		}
	}
	if turn.Spoken() != 2 {
		t.Fatalf("expected 2 spoken chunks reported, got %d", turn.Spoken())
	}
	if turn.Status() != engine.RunCompleted {
		t.Fatalf("expected completed status, got %s", turn.Status())
	}
}

func TestChunksAlreadySeenAreNotRespoken(t *testing.T) {
	// The same leading chunk appears in every poll; only the tail past the
	// emitted count is new.
	eng := &fakeEngine{steps: []pollStep{
		{status: engine.RunInProgress, msgs: []engine.Message{
			{Role: engine.RoleAssistant, Text: "One."},
		}},
		{status: engine.RunInProgress, msgs: []engine.Message{
			{Role: engine.RoleAssistant, Text: "One."},
			{Role: engine.RoleAssistant, Text: "Two."},
		}},
		{status: engine.RunCompleted, msgs: []engine.Message{
			{Role: engine.RoleAssistant, Text: "One."},
			{Role: engine.RoleAssistant, Text: "Two."},
		}},
	}}
	synth := &fakeSynth{}
	sess := newTestSession(eng, synth)

	turn, err := sess.Submit(context.Background(), "count")
	if err != nil {
		t.Fatalf("expected submit to succeed, got error: %v", err)
	}
	if err := waitTurn(t, turn); err != nil {
		t.Fatalf("expected clean turn, got error: %v", err)
	}

	got := synth.all()
	if len(got) != 2 || got[0] != "One." || got[1] != "Two." {
		t.Fatalf("expected each chunk spoken exactly once in order, got %v", got)
	}
}

func TestThreadIsCreatedOnceAndReused(t *testing.T) {
	eng := &fakeEngine{steps: []pollStep{
		{status: engine.RunCompleted, msgs: []engine.Message{
			{Role: engine.RoleAssistant, Text: "ok"},
		}},
	}}
	sess := newTestSession(eng, &fakeSynth{})

	for i := 0; i < 3; i++ {
		turn, err := sess.Submit(context.Background(), "again")
		if err != nil {
			t.Fatalf("expected submit %d to succeed, got error: %v", i, err)
		}
		waitTurn(t, turn)
	}

	if eng.threadsCreated() != 1 {
		t.Fatalf("expected a single engine thread for the session, got %d", eng.threadsCreated())
	}
	if sess.ThreadID() != "thread_1" {
		t.Fatalf("expected cached thread id thread_1, got %q", sess.ThreadID())
	}
}

func TestSecondTurnSpeaksOnlyNewChunks(t *testing.T) {
	// The engine thread accumulates messages across turns; the second
	// turn's harvest must start past everything the first turn surfaced.
	eng := &fakeEngine{scripts: [][]pollStep{
		{{status: engine.RunCompleted, msgs: []engine.Message{
			{Role: engine.RoleUser, Text: "one"},
			{Role: engine.RoleAssistant, Text: "First answer."},
		}}},
		{{status: engine.RunCompleted, msgs: []engine.Message{
			{Role: engine.RoleUser, Text: "one"},
			{Role: engine.RoleAssistant, Text: "First answer."},
			{Role: engine.RoleUser, Text: "two"},
			{Role: engine.RoleAssistant, Text: "Second answer."},
		}}},
	}}
	synth := &fakeSynth{}
	sess := newTestSession(eng, synth)

	for _, transcript := range []string{"one", "two"} {
		turn, err := sess.Submit(context.Background(), transcript)
		if err != nil {
			t.Fatalf("expected submit %q to succeed, got error: %v", transcript, err)
		}
		if err := waitTurn(t, turn); err != nil {
			t.Fatalf("expected clean turn for %q, got error: %v", transcript, err)
		}
	}

	got := synth.all()
	if len(got) != 2 || got[0] != "First answer." || got[1] != "Second answer." {
		t.Fatalf("expected the second turn to speak only its own chunk, got %v", got)
	}
}

func TestThreadSurvivesFailedPost(t *testing.T) {
	eng := &fakeEngine{
		postErr: errors.New("transient"),
		steps: []pollStep{
			{status: engine.RunCompleted, msgs: nil},
		},
	}
	sess := newTestSession(eng, &fakeSynth{})

	if _, err := sess.Submit(context.Background(), "first"); err == nil {
		t.Fatal("expected submit to fail when the post fails")
	}
	if sess.ThreadID() == "" {
		t.Fatal("expected thread id to be cached despite the failed post")
	}

	eng.mu.Lock()
	eng.postErr = nil
	eng.mu.Unlock()

	turn, err := sess.Submit(context.Background(), "second")
	if err != nil {
		t.Fatalf("expected retry to succeed, got error: %v", err)
	}
	waitTurn(t, turn)

	if eng.threadsCreated() != 1 {
		t.Fatalf("expected the retry to reuse the thread, got %d threads", eng.threadsCreated())
	}
}

func TestFailedRunReportsErrorWithNothingSpoken(t *testing.T) {
	eng := &fakeEngine{steps: []pollStep{
		{status: engine.RunInProgress, msgs: nil},
		{status: engine.RunFailed, msgs: nil},
	}}
	synth := &fakeSynth{}
	sess := newTestSession(eng, synth)

	turn, err := sess.Submit(context.Background(), "hi")
	if err != nil {
		t.Fatalf("expected submit to succeed, got error: %v", err)
	}

	err = waitTurn(t, turn)
	var runErr *RunFailedError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected RunFailedError, got %v", err)
	}
	if runErr.Status != engine.RunFailed {
		t.Fatalf("expected failed status in error, got %s", runErr.Status)
	}
	if len(synth.all()) != 0 {
		t.Fatalf("expected nothing spoken for a failed run, got %v", synth.all())
	}
}

func TestCancelStopsPollingAndDrainsQueuedChunks(t *testing.T) {
	eng := &fakeEngine{steps: []pollStep{
		{status: engine.RunInProgress, msgs: []engine.Message{
			{Role: engine.RoleAssistant, Text: "Queued before cancel."},
		}},
	}}
	synth := &fakeSynth{delay: 5 * time.Millisecond}
	sess := newTestSession(eng, synth)

	turn, err := sess.Submit(context.Background(), "hi")
	if err != nil {
		t.Fatalf("expected submit to succeed, got error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(synth.all()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first chunk was never synthesized")
		}
		time.Sleep(time.Millisecond)
	}

	turn.Cancel()
	if err := waitTurn(t, turn); err != nil {
		t.Fatalf("expected local cancellation to be clean, got error: %v", err)
	}

	got := synth.all()
	if len(got) != 1 || got[0] != "Queued before cancel." {
		t.Fatalf("expected only the pre-cancel chunk spoken, got %v", got)
	}
}

func TestSynthesisFailureSkipsChunkAndContinues(t *testing.T) {
	eng := &fakeEngine{steps: []pollStep{
		{status: engine.RunCompleted, msgs: []engine.Message{
			{Role: engine.RoleAssistant, Text: "First."},
			{Role: engine.RoleAssistant, Text: "Broken."},
			{Role: engine.RoleAssistant, Text: "Third."},
		}},
	}}
	synth := &fakeSynth{failOn: "Broken."}
	sess := newTestSession(eng, synth)

	turn, err := sess.Submit(context.Background(), "hi")
	if err != nil {
		t.Fatalf("expected submit to succeed, got error: %v", err)
	}
	if err := waitTurn(t, turn); err != nil {
		t.Fatalf("expected turn to finish despite a synthesis failure, got error: %v", err)
	}

	got := synth.all()
	if len(got) != 2 || got[0] != "First." || got[1] != "Third." {
		t.Fatalf("expected the failing chunk to be skipped, got %v", got)
	}
	if turn.Spoken() != 2 {
		t.Fatalf("expected 2 spoken chunks reported, got %d", turn.Spoken())
	}
}

func TestStartRunFailureReturnsNoTurn(t *testing.T) {
	eng := &fakeEngine{
		startErr: errors.New("engine down"),
		steps:    []pollStep{{status: engine.RunCompleted}},
	}
	sess := newTestSession(eng, &fakeSynth{})

	if _, err := sess.Submit(context.Background(), "hi"); err == nil {
		t.Fatal("expected submit to fail when the run cannot start")
	}
}
