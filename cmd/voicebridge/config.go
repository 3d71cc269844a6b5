package main

import (
	"time"

	"github.com/bizassist/voicebridge/internal/env"
)

const defaultInstructions = "You are a helpful voice assistant. Keep answers short and conversational; they are read aloud over a phone call."

type config struct {
	port string

	// Remote assistant engine (OpenAI-compatible Assistants API).
	openaiBaseURL string
	openaiAPIKey  string
	assistants    string
	assistantName string

	// Local agent engine; set localModel to bypass the remote engine.
	localModel        string
	localInstructions string
	localMaxTokens    int

	whisperURL    string
	asrSampleRate int
	asrPoolSize   int

	ttsURL      string
	ttsAPIKey   string
	ttsModel    string
	ttsVoice    string
	ttsPoolSize int

	pollInterval       time.Duration
	maxConcurrentCalls int

	// Call automation (answer + callbacks).
	acsEndpoint  string
	acsAccessKey string
	callbackURI  string
	mediaURI     string
}

func loadConfig() config {
	return config{
		port: env.Str("PORT", "8080"),

		openaiBaseURL: env.Str("OPENAI_BASE_URL", ""),
		openaiAPIKey:  env.Str("OPENAI_API_KEY", ""),
		assistants:    env.Str("ASSISTANTS", ""),
		assistantName: env.Str("ASSISTANT_NAME", ""),

		localModel:        env.Str("LOCAL_AGENT_MODEL", ""),
		localInstructions: env.Str("LOCAL_AGENT_INSTRUCTIONS", defaultInstructions),
		localMaxTokens:    env.Int("LOCAL_AGENT_MAX_TOKENS", 300),

		whisperURL:    env.Str("WHISPER_SERVER_URL", "http://localhost:8081"),
		asrSampleRate: env.Int("ASR_SAMPLE_RATE", 16000),
		asrPoolSize:   env.Int("ASR_POOL_SIZE", 50),

		ttsURL:      env.Str("TTS_URL", "http://localhost:5100"),
		ttsAPIKey:   env.Str("TTS_API_KEY", ""),
		ttsModel:    env.Str("TTS_MODEL", "tts-1"),
		ttsVoice:    env.Str("TTS_VOICE", "alloy"),
		ttsPoolSize: env.Int("TTS_POOL_SIZE", 50),

		pollInterval:       env.Dur("RUN_POLL_INTERVAL", 500*time.Millisecond),
		maxConcurrentCalls: env.Int("MAX_CONCURRENT_CALLS", 100),

		acsEndpoint:  env.Str("ACS_ENDPOINT", ""),
		acsAccessKey: env.Str("ACS_ACCESS_KEY", ""),
		callbackURI:  env.Str("CALLBACK_URI", ""),
		mediaURI:     env.Str("MEDIA_STREAMING_URI", ""),
	}
}
