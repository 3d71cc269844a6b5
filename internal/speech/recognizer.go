// Package speech holds the concrete recognition and synthesis adapters: a
// whisper-compatible multipart HTTP recognizer and an OpenAI-compatible
// speech synthesizer that plays back onto the session's media socket.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/bizassist/voicebridge/internal/engine"
	"github.com/bizassist/voicebridge/internal/metrics"
)

// Recognizer sends one finalized utterance as multipart WAV to any
// whisper-compatible HTTP endpoint and returns the transcript.
type Recognizer struct {
	url        string
	endpoint   string
	sampleRate int
	client     *http.Client
}

// NewRecognizer creates a client for a whisper.cpp style server
// (/inference endpoint). Payload bytes are PCM16 mono at sampleRate.
func NewRecognizer(url string, sampleRate, poolSize int) *Recognizer {
	return &Recognizer{
		url:        url,
		endpoint:   "/inference",
		sampleRate: sampleRate,
		client:     NewPooledHTTPClient(poolSize, 30*time.Second),
	}
}

type whisperResponse struct {
	Text string `json:"text"`
}

// Recognize uploads the utterance and returns the transcript. An empty
// transcript maps to engine.ErrNoSpeech.
func (r *Recognizer) Recognize(ctx context.Context, audio []byte) (string, error) {
	start := time.Now()

	body, contentType, err := buildMultipartAudio(audio, r.sampleRate)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.url+r.endpoint, body)
	if err != nil {
		return "", fmt.Errorf("create recognition request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := r.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("recognition", "http").Inc()
		return "", fmt.Errorf("recognition request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		metrics.Errors.WithLabelValues("recognition", "status").Inc()
		return "", fmt.Errorf("recognition status %d: %s", resp.StatusCode, respBody)
	}

	var result whisperResponse
	if err = json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode recognition response: %w", err)
	}

	metrics.StageDuration.WithLabelValues("recognition").Observe(time.Since(start).Seconds())

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", engine.ErrNoSpeech
	}
	return text, nil
}

func buildMultipartAudio(pcm []byte, sampleRate int) (*bytes.Buffer, string, error) {
	wavData := pcmToWAV(pcm, sampleRate)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}

	if _, err = part.Write(wavData); err != nil {
		return nil, "", fmt.Errorf("write wav data: %w", err)
	}

	if err = writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close writer: %w", err)
	}

	return &body, writer.FormDataContentType(), nil
}
