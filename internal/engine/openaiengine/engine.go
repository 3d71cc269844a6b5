// Package openaiengine adapts the OpenAI Assistants API (threads, messages,
// runs) to the engine.Assistant contract.
package openaiengine

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/bizassist/voicebridge/internal/engine"
)

// Engine is a thin translation layer over the Assistants beta endpoints. It
// holds no per-conversation state; thread and run identity live with the
// caller.
type Engine struct {
	client openai.Client
}

// New creates an engine against the given endpoint. baseURL may point at an
// OpenAI-compatible deployment; leave it empty for the public API.
func New(baseURL, apiKey string) *Engine {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Engine{client: openai.NewClient(opts...)}
}

func (e *Engine) CreateThread(ctx context.Context) (string, error) {
	thread, err := e.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return thread.ID, nil
}

func (e *Engine) PostMessage(ctx context.Context, threadID, role, text string) error {
	msgRole := openai.BetaThreadMessageNewParamsRoleUser
	if role == engine.RoleAssistant {
		msgRole = openai.BetaThreadMessageNewParamsRoleAssistant
	}
	_, err := e.client.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role: msgRole,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	return nil
}

func (e *Engine) StartRun(ctx context.Context, threadID, assistantID string) (string, error) {
	run, err := e.client.Beta.Threads.Runs.New(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID: assistantID,
	})
	if err != nil {
		return "", fmt.Errorf("start run: %w", err)
	}
	return run.ID, nil
}

func (e *Engine) RunStatus(ctx context.Context, threadID, runID string) (engine.RunStatus, error) {
	run, err := e.client.Beta.Threads.Runs.Get(ctx, threadID, runID)
	if err != nil {
		return "", fmt.Errorf("get run: %w", err)
	}
	return mapStatus(run.Status), nil
}

// ListMessages returns the thread's messages oldest first, flattening text
// content blocks; non-text blocks are skipped.
func (e *Engine) ListMessages(ctx context.Context, threadID string) ([]engine.Message, error) {
	page, err := e.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
		Order: openai.BetaThreadMessageListParamsOrderAsc,
	})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	var msgs []engine.Message
	for _, m := range page.Data {
		role := engine.RoleUser
		if m.Role == openai.MessageRoleAssistant {
			role = engine.RoleAssistant
		}
		for _, content := range m.Content {
			if content.Type != "text" {
				continue
			}
			msgs = append(msgs, engine.Message{Role: role, Text: content.Text.Value})
		}
	}
	return msgs, nil
}

func mapStatus(status openai.RunStatus) engine.RunStatus {
	switch status {
	case openai.RunStatusQueued:
		return engine.RunQueued
	case openai.RunStatusInProgress, openai.RunStatusRequiresAction, openai.RunStatusCancelling:
		return engine.RunInProgress
	case openai.RunStatusCompleted:
		return engine.RunCompleted
	case openai.RunStatusCancelled:
		return engine.RunCancelled
	default:
		// failed, expired, incomplete
		return engine.RunFailed
	}
}
