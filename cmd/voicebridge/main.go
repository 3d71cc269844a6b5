package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bizassist/voicebridge/internal/assistant"
	"github.com/bizassist/voicebridge/internal/callauto"
	"github.com/bizassist/voicebridge/internal/engine"
	"github.com/bizassist/voicebridge/internal/engine/localengine"
	"github.com/bizassist/voicebridge/internal/engine/openaiengine"
	"github.com/bizassist/voicebridge/internal/events"
	"github.com/bizassist/voicebridge/internal/session"
	"github.com/bizassist/voicebridge/internal/speech"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file, using process environment")
	}

	cfg := loadConfig()

	eng, assistantID, local := buildEngine(cfg, logger)

	recognizer := speech.NewRecognizer(cfg.whisperURL, cfg.asrSampleRate, cfg.asrPoolSize)
	synthesis := speech.NewSynthesisClient(cfg.ttsURL, cfg.ttsAPIKey, cfg.ttsModel, cfg.ttsVoice, cfg.ttsPoolSize)

	media := session.NewHandler(session.HandlerConfig{
		Recognizer:    recognizer,
		Assistant:     eng,
		Synthesis:     synthesis,
		AssistantID:   assistantID,
		PollInterval:  cfg.pollInterval,
		MaxConcurrent: cfg.maxConcurrentCalls,
		Logger:        logger,
	})

	answerer := callauto.New(cfg.acsEndpoint, cfg.acsAccessKey, cfg.callbackURI, cfg.mediaURI)
	eventHandler := events.NewHandler(answerer, media, logger)

	addr := ":" + cfg.port
	srv := &http.Server{Addr: addr, Handler: newRouter(deps{media: media, events: eventHandler})}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		media.StopAll()
		if local != nil {
			local.Wait()
		}
		srv.Shutdown(ctx)
	}()

	slog.Info("voicebridge starting", "addr", addr, "max_concurrent", cfg.maxConcurrentCalls, "local_agent", local != nil)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("voicebridge stopped")
}

// buildEngine picks the assistant backend: a local in-process agent when
// LOCAL_AGENT_MODEL is set, otherwise the remote Assistants API with an
// assistant resolved from the name registry.
func buildEngine(cfg config, logger *slog.Logger) (engine.Assistant, string, *localengine.Engine) {
	if cfg.localModel != "" {
		eng := localengine.New(localengine.Config{
			Model:        cfg.localModel,
			Instructions: cfg.localInstructions,
			MaxTokens:    cfg.localMaxTokens,
			Logger:       logger,
		})
		return eng, "local", eng
	}

	reg, err := assistant.ParseRegistry(cfg.assistants)
	if err != nil {
		slog.Error("assistant registry", "error", err)
		os.Exit(1)
	}
	id := reg.Default()
	if cfg.assistantName != "" {
		id, err = reg.ID(cfg.assistantName)
		if err != nil {
			slog.Error("assistant lookup", "name", cfg.assistantName, "error", err)
			os.Exit(1)
		}
	}
	return openaiengine.New(cfg.openaiBaseURL, cfg.openaiAPIKey), id, nil
}
