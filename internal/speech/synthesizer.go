package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bizassist/voicebridge/internal/metrics"
)

// PlaybackSink receives synthesized audio for one chunk. The media session
// implements it over the outbound half of its socket.
type PlaybackSink interface {
	WriteAudio(payload []byte) error
}

// SynthesisClient produces audio from text against any server exposing the
// OpenAI /v1/audio/speech shape.
type SynthesisClient struct {
	url    string
	apiKey string
	model  string
	voice  string
	client *http.Client
}

func NewSynthesisClient(url, apiKey, model, voice string, poolSize int) *SynthesisClient {
	return &SynthesisClient{
		url:    url,
		apiKey: apiKey,
		model:  model,
		voice:  voice,
		client: NewPooledHTTPClient(poolSize, 30*time.Second),
	}
}

func (c *SynthesisClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(struct {
		Input          string `json:"input"`
		Model          string `json:"model"`
		Voice          string `json:"voice"`
		ResponseFormat string `json:"response_format"`
	}{Input: text, Model: c.model, Voice: c.voice, ResponseFormat: "pcm"})
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("synthesis", "http").Inc()
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.Errors.WithLabelValues("synthesis", "status").Inc()
		return nil, fmt.Errorf("synthesis status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// Speaker binds a synthesis client to one session's playback sink. Each Speak
// call acquires the sink for that chunk only; it holds no audio-out state
// between calls.
type Speaker struct {
	synth *SynthesisClient
	sink  PlaybackSink
}

func NewSpeaker(synth *SynthesisClient, sink PlaybackSink) *Speaker {
	return &Speaker{synth: synth, sink: sink}
}

func (s *Speaker) Speak(ctx context.Context, text string) error {
	audio, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	if err := s.sink.WriteAudio(audio); err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	return nil
}
