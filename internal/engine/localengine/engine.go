// Package localengine satisfies the engine.Assistant contract in process:
// threads live in memory and a run drives an agent over the thread
// transcript, surfacing the reply sentence by sentence so the poller can
// harvest it incrementally. It lets the bridge run without a deployed
// assistant backend.
package localengine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/nlpodyssey/openai-agents-go/agents"
	"github.com/nlpodyssey/openai-agents-go/modelsettings"
	"github.com/openai/openai-go/v2/packages/param"

	"github.com/bizassist/voicebridge/internal/engine"
)

// Config for the local engine. Model is required; a nil Provider selects
// the SDK's default model provider.
type Config struct {
	Provider     agents.ModelProvider
	Model        string
	Instructions string
	MaxTokens    int
	Logger       *slog.Logger
}

type thread struct {
	msgs []engine.Message
}

type run struct {
	threadID string
	status   engine.RunStatus
}

// Engine implements engine.Assistant with in-memory threads and
// agent-backed runs.
type Engine struct {
	cfg Config

	mu      sync.Mutex
	threads map[string]*thread
	runs    map[string]*run
	wg      sync.WaitGroup
}

func New(cfg Config) *Engine {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	return &Engine{
		cfg:     cfg,
		threads: make(map[string]*thread),
		runs:    make(map[string]*run),
	}
}

// Wait blocks until all in-flight runs have finished; used on shutdown.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) CreateThread(ctx context.Context) (string, error) {
	id := "thread_" + uuid.NewString()
	e.mu.Lock()
	e.threads[id] = &thread{}
	e.mu.Unlock()
	return id, nil
}

func (e *Engine) PostMessage(ctx context.Context, threadID, role, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	th, ok := e.threads[threadID]
	if !ok {
		return fmt.Errorf("unknown thread %q", threadID)
	}
	th.msgs = append(th.msgs, engine.Message{Role: role, Text: text})
	return nil
}

// StartRun spawns a goroutine that streams the agent's reply into the thread.
// The assistantID selects nothing locally; it is accepted for contract parity.
func (e *Engine) StartRun(ctx context.Context, threadID, assistantID string) (string, error) {
	e.mu.Lock()
	th, ok := e.threads[threadID]
	if !ok {
		e.mu.Unlock()
		return "", fmt.Errorf("unknown thread %q", threadID)
	}
	input := formatTranscript(th.msgs)
	id := "run_" + uuid.NewString()
	r := &run{threadID: threadID, status: engine.RunQueued}
	e.runs[id] = r
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		// The run outlives the StartRun call; detach from its deadline
		// but keep cancellation.
		e.execute(context.WithoutCancel(ctx), r, input)
	}()

	return id, nil
}

func (e *Engine) RunStatus(ctx context.Context, threadID, runID string) (engine.RunStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.runs[runID]
	if !ok || r.threadID != threadID {
		return "", fmt.Errorf("unknown run %q", runID)
	}
	return r.status, nil
}

func (e *Engine) ListMessages(ctx context.Context, threadID string) ([]engine.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	th, ok := e.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("unknown thread %q", threadID)
	}
	out := make([]engine.Message, len(th.msgs))
	copy(out, th.msgs)
	return out, nil
}

// execute streams the agent response, appending one assistant message per
// complete sentence so pollers see chunks arrive while the run is live.
func (e *Engine) execute(ctx context.Context, r *run, input string) {
	e.setStatus(r, engine.RunInProgress)

	agent := agents.New("assistant").
		WithInstructions(e.cfg.Instructions).
		WithModel(e.cfg.Model).
		WithModelSettings(modelsettings.ModelSettings{
			MaxTokens: param.NewOpt(int64(e.cfg.MaxTokens)),
		})

	runner := agents.Runner{Config: agents.RunConfig{
		ModelProvider:   e.cfg.Provider,
		MaxTurns:        1,
		TracingDisabled: true,
	}}

	events, errCh, err := runner.RunStreamedChan(ctx, agent, input)
	if err != nil {
		e.cfg.Logger.Error("local run start failed", "error", err)
		e.setStatus(r, engine.RunFailed)
		return
	}

	var sb sentenceBuffer
	for ev := range events {
		raw, ok := ev.(agents.RawResponsesStreamEvent)
		if !ok {
			continue
		}
		if raw.Data.Type != "response.output_text.delta" {
			continue
		}
		if sentence := sb.add(raw.Data.Delta); sentence != "" {
			e.appendAssistant(r.threadID, sentence)
		}
	}

	if streamErr := <-errCh; streamErr != nil {
		e.cfg.Logger.Error("local run stream failed", "error", streamErr)
		e.setStatus(r, engine.RunFailed)
		return
	}

	if remainder := sb.flush(); remainder != "" {
		e.appendAssistant(r.threadID, remainder)
	}
	e.setStatus(r, engine.RunCompleted)
}

func (e *Engine) appendAssistant(threadID, text string) {
	e.mu.Lock()
	if th, ok := e.threads[threadID]; ok {
		th.msgs = append(th.msgs, engine.Message{Role: engine.RoleAssistant, Text: text})
	}
	e.mu.Unlock()
}

func (e *Engine) setStatus(r *run, status engine.RunStatus) {
	e.mu.Lock()
	r.status = status
	e.mu.Unlock()
}

// formatTranscript flattens the thread into a prompt; the latest user
// message comes last.
func formatTranscript(msgs []engine.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		switch m.Role {
		case engine.RoleAssistant:
			fmt.Fprintf(&b, "Assistant: %s\n", m.Text)
		default:
			fmt.Fprintf(&b, "User: %s\n", m.Text)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
